// Package flatfile implements the base memory store: a mutex-guarded
// in-memory collection backed by append-only flat files, one file per
// lifetime type.
//
// Adds are purely in-memory; durability comes from Flush (called with drained
// batches by the write-back engine) and Save (flushes whatever has not been
// covered by a Flush yet). Files are only ever opened in append mode and are
// never truncated or rewritten.
package flatfile

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/becomeliminal/recall/memory"
)

// Store is the flat-file memory store. It implements memory.Store and is the
// batch sink of the write-back engine.
type Store struct {
	dir string

	mu    sync.RWMutex
	items []memory.Item // every item, insertion order
	dirty []memory.Item // added but not yet flushed, insertion order

	// Serializes file appends so concurrent Flush/Save calls cannot
	// interleave lines within one destination.
	fileMu sync.Mutex
}

// New opens a store rooted at dir, creating it if needed and loading any
// previously persisted items.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}

	s := &Store{dir: dir}
	if err := s.load(); err != nil {
		return nil, err
	}

	log.Printf("[FLATFILE] Opened store at %s with %d items", dir, len(s.items))
	return s, nil
}

// Path returns the destination file for a lifetime type.
func (s *Store) Path(typ memory.Type) string {
	return filepath.Join(s.dir, typ.String()+".mem")
}

// Add records an item in memory only. A read immediately after Add observes
// the item; persistence happens on Flush or Save.
func (s *Store) Add(item memory.Item) {
	s.mu.Lock()
	s.items = append(s.items, item)
	s.dirty = append(s.dirty, item)
	s.mu.Unlock()
}

// Flush persists the oldest len(batch) unflushed items. Callers hand it
// items in add order with nothing skipped (the write-back engine drains its
// queue FIFO), so those are exactly the batch items. The items are claimed
// under the lock before any I/O, which makes a concurrent Save unable to
// write the same items again; a claimed batch that fails to write is not
// restored (at-most-once persistence).
//
// The write is split by type and each destination file is opened and written
// independently, so one destination's failure does not block the other two;
// the combined error is returned for logging.
func (s *Store) Flush(batch []memory.Item) error {
	return s.write(s.claim(len(batch)))
}

// Save flushes every item not yet covered by a Flush.
func (s *Store) Save() error {
	return s.write(s.claim(-1))
}

// claim atomically removes and returns the oldest n unflushed items
// (everything when n is negative). Whoever claims an item is the only writer
// of its line.
func (s *Store) claim(n int) []memory.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n < 0 || n > len(s.dirty) {
		n = len(s.dirty)
	}
	if n == 0 {
		return nil
	}
	claimed := make([]memory.Item, n)
	copy(claimed, s.dirty[:n])
	s.dirty = s.dirty[n:]
	return claimed
}

func (s *Store) write(items []memory.Item) error {
	if len(items) == 0 {
		return nil
	}

	byType := make(map[memory.Type][]memory.Item, 3)
	for _, item := range items {
		byType[item.Type] = append(byType[item.Type], item)
	}

	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	var errs []error
	for _, typ := range []memory.Type{memory.Short, memory.Mid, memory.Long} {
		items := byType[typ]
		if len(items) == 0 {
			continue
		}
		if err := s.appendLines(typ, items); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// All returns a snapshot of every item in insertion order.
func (s *Store) All() []memory.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]memory.Item, len(s.items))
	copy(out, s.items)
	return out
}

// Count returns the number of items in memory.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Recent returns up to n items, most recent first.
func (s *Store) Recent(n int) []memory.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.items) == 0 {
		return nil
	}
	if n > len(s.items) {
		n = len(s.items)
	}

	out := make([]memory.Item, 0, n)
	for i := len(s.items) - 1; i >= len(s.items)-n; i-- {
		out = append(out, s.items[i])
	}
	return out
}

// Related returns up to n items whose content contains the query, newest
// first. This is the cheap fallback used when no semantic searcher is
// configured.
func (s *Store) Related(query string, n int) []memory.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return nil
	}

	needle := strings.ToLower(query)
	var out []memory.Item
	for i := len(s.items) - 1; i >= 0 && len(out) < n; i-- {
		if strings.Contains(strings.ToLower(s.items[i].Content), needle) {
			out = append(out, s.items[i])
		}
	}
	return out
}

func (s *Store) appendLines(typ memory.Type, items []memory.Item) error {
	f, err := os.OpenFile(s.Path(typ), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s destination: %w", typ, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, item := range items {
		if _, err := w.WriteString(item.Line() + "\n"); err != nil {
			return fmt.Errorf("append to %s destination: %w", typ, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("append to %s destination: %w", typ, err)
	}
	return nil
}

func (s *Store) load() error {
	for _, typ := range []memory.Type{memory.Short, memory.Mid, memory.Long} {
		f, err := os.Open(s.Path(typ))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("open %s destination: %w", typ, err)
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			item, err := memory.ParseLine(line, typ)
			if err != nil {
				log.Printf("[FLATFILE] Skipping malformed line in %s: %v", s.Path(typ), err)
				continue
			}
			s.items = append(s.items, item)
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return fmt.Errorf("read %s destination: %w", typ, err)
		}
	}

	// Per-file order is append order; restore a global order across the
	// three files by creation time.
	sort.SliceStable(s.items, func(i, j int) bool {
		return s.items[i].Timestamp < s.items[j].Timestamp
	})
	return nil
}
