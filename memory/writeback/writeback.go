// Package writeback provides the asynchronous batched persistence engine.
//
// The engine accepts items on the caller's goroutine without doing I/O: each
// add goes to the base store (so reads are immediately consistent) and to a
// pending queue owned by a single background worker. The worker drains the
// queue in batches of up to BatchSize, either when woken or on a fixed timer,
// and hands each batch to the Sink. Batches that fail to persist are logged
// and dropped, never retried (at-most-once persistence).
package writeback

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/becomeliminal/recall/memory"
)

const (
	// BatchSize is the maximum number of items drained into one batch and
	// the queue length that triggers an early flush.
	BatchSize = 100

	// FlushInterval is how long the worker waits before draining the
	// queue on its own.
	FlushInterval = 5 * time.Second
)

// Sink persists a drained batch. Implementations split the batch by type
// into independent destinations; flatfile.Store is the default Sink.
type Sink interface {
	Flush(batch []memory.Item) error
}

// Engine is the write-back engine. Create it with New; it owns one
// background goroutine until Stop is called.
type Engine struct {
	store memory.Store
	sink  Sink

	mu      sync.Mutex
	pending []memory.Item

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	saving  atomic.Bool
	stopped atomic.Bool
}

// New creates an engine over the given store and sink and starts its
// background worker.
func New(store memory.Store, sink Sink) *Engine {
	e := &Engine{
		store: store,
		sink:  sink,
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go e.run()
	log.Printf("[WRITEBACK] Engine started (batch=%d, interval=%s)", BatchSize, FlushInterval)
	return e
}

// Add stamps a new item and hands it to AddItem.
func (e *Engine) Add(content string, typ memory.Type, category memory.Category) {
	e.AddItem(memory.NewItem(content, typ, category))
}

// AddItem records the item synchronously in the base store and enqueues it
// for asynchronous persistence; the store copy and the persisted line carry
// the item's timestamp unchanged. It never blocks on I/O. Reaching BatchSize
// pending items requests an immediate asynchronous flush.
func (e *Engine) AddItem(item memory.Item) {
	e.store.Add(item)

	e.mu.Lock()
	e.pending = append(e.pending, item)
	full := len(e.pending) >= BatchSize
	e.mu.Unlock()

	e.signal()
	if full {
		e.AsyncSave()
	}
}

// Save synchronously drains the entire pending queue, persists every batch,
// then invokes the base store's own save. It is the strong durability point:
// when Save returns, everything accepted so far has been handed to the sink.
func (e *Engine) Save() error {
	e.drainAll()
	return e.store.Save()
}

// AsyncSave wakes the background worker so it drains sooner than its timer.
// Best effort: no return value, never blocks.
func (e *Engine) AsyncSave() {
	e.signal()
}

// IsSaving reports whether a batch persistence call is in flight.
func (e *Engine) IsSaving() bool {
	return e.saving.Load()
}

// Pending returns the current pending queue length.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Stop signals the worker, joins it, and performs one final drain of
// anything that accumulated after the worker's last pass. After Stop returns
// nothing accepted before it is left unpersisted. Idempotent.
func (e *Engine) Stop() {
	if !e.stopped.CompareAndSwap(false, true) {
		return
	}
	close(e.stop)
	<-e.done
	e.drainAll()
	log.Printf("[WRITEBACK] Engine stopped")
}

func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) run() {
	defer close(e.done)

	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			// Final drain before exiting; Stop drains once more for
			// anything racing in after this pass.
			e.drainAll()
			return
		case <-e.wake:
		case <-ticker.C:
		}
		e.drainAll()
	}
}

// drainAll removes and persists batches until the queue is empty. The queue
// lock is released before any I/O.
func (e *Engine) drainAll() {
	for {
		batch := e.takeBatch()
		if len(batch) == 0 {
			return
		}
		e.persist(batch)
	}
}

// takeBatch atomically removes up to BatchSize oldest items from the queue.
func (e *Engine) takeBatch() []memory.Item {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.pending)
	if n == 0 {
		return nil
	}
	if n > BatchSize {
		n = BatchSize
	}

	batch := make([]memory.Item, n)
	copy(batch, e.pending[:n])
	e.pending = e.pending[n:]
	return batch
}

func (e *Engine) persist(batch []memory.Item) {
	e.saving.Store(true)
	defer e.saving.Store(false)

	if err := e.sink.Flush(batch); err != nil {
		// At-most-once: the batch is dropped, not requeued.
		log.Printf("[WRITEBACK] Batch of %d dropped after save failure: %v", len(batch), err)
		return
	}
	log.Printf("[WRITEBACK] Batch saved: %d items", len(batch))
}
