package writeback

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/recall/memory"
	"github.com/becomeliminal/recall/memory/store/flatfile"
)

// captureSink records flushed batches and can be made to fail.
type captureSink struct {
	mu      sync.Mutex
	batches [][]memory.Item
	fail    bool
}

func (c *captureSink) Flush(batch []memory.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("disk on fire")
	}
	copied := make([]memory.Item, len(batch))
	copy(copied, batch)
	c.batches = append(c.batches, copied)
	return nil
}

func (c *captureSink) items() []memory.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []memory.Item
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func (c *captureSink) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func newEngine(t *testing.T, sink Sink) (*Engine, *flatfile.Store) {
	t.Helper()
	store, err := flatfile.New(t.TempDir())
	require.NoError(t, err)
	e := New(store, sink)
	t.Cleanup(e.Stop)
	return e, store
}

func TestAddIsNonBlockingAndReadable(t *testing.T) {
	sink := &captureSink{}
	e, store := newEngine(t, sink)

	e.Add("instant", memory.Short, memory.Work)

	// The in-memory store sees the item immediately, whether or not the
	// worker has persisted it yet.
	require.Len(t, store.All(), 1)
	assert.Equal(t, "instant", store.All()[0].Content)
}

func TestSaveDrainsEverything(t *testing.T) {
	sink := &captureSink{}
	e, _ := newEngine(t, sink)

	for i := 0; i < 10; i++ {
		e.Add(fmt.Sprintf("item-%02d", i), memory.Mid, memory.Other)
	}
	require.NoError(t, e.Save())

	assert.Equal(t, 0, e.Pending())
	items := sink.items()
	require.Len(t, items, 10)
	// FIFO drain order is preserved into the flushed batches.
	for i, item := range items {
		assert.Equal(t, fmt.Sprintf("item-%02d", i), item.Content)
	}
}

func TestBatchThresholdTriggersEarlyFlush(t *testing.T) {
	sink := &captureSink{}
	e, _ := newEngine(t, sink)

	for i := 0; i < BatchSize; i++ {
		e.Add(fmt.Sprintf("bulk-%d", i), memory.Short, memory.Other)
	}

	// Well before the 5 s timer, at least one batch must have drained.
	require.Eventually(t, func() bool {
		return sink.batchCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, b := range sink.batches {
		assert.LessOrEqual(t, len(b), BatchSize)
	}
}

func TestStopFlushesRemainder(t *testing.T) {
	sink := &captureSink{}
	store, err := flatfile.New(t.TempDir())
	require.NoError(t, err)
	e := New(store, sink)

	for i := 0; i < 7; i++ {
		e.Add(fmt.Sprintf("tail-%d", i), memory.Long, memory.Family)
	}
	e.Stop()

	assert.Equal(t, 0, e.Pending())
	assert.Len(t, sink.items(), 7)
}

func TestStopIdempotent(t *testing.T) {
	sink := &captureSink{}
	store, err := flatfile.New(t.TempDir())
	require.NoError(t, err)
	e := New(store, sink)

	e.Add("once", memory.Short, memory.Other)
	e.Stop()
	e.Stop() // must not panic or double-close

	assert.Len(t, sink.items(), 1)
}

func TestFailedBatchIsDropped(t *testing.T) {
	sink := &captureSink{fail: true}
	e, _ := newEngine(t, sink)

	e.Add("doomed", memory.Short, memory.Other)
	e.AsyncSave()

	require.Eventually(t, func() bool {
		return e.Pending() == 0
	}, 2*time.Second, 10*time.Millisecond)

	// At-most-once: the batch is gone, not requeued.
	sink.mu.Lock()
	sink.fail = false
	sink.mu.Unlock()
	require.NoError(t, e.Save())
	assert.Empty(t, sink.items())
}

// stallSink holds a drained batch in flight until released, then forwards it
// to the store.
type stallSink struct {
	store    *flatfile.Store
	inFlight chan struct{}
	release  chan struct{}
}

func (s *stallSink) Flush(batch []memory.Item) error {
	s.inFlight <- struct{}{}
	<-s.release
	return s.store.Flush(batch)
}

func TestSaveRacingInFlightBatchWritesOnce(t *testing.T) {
	store, err := flatfile.New(t.TempDir())
	require.NoError(t, err)
	sink := &stallSink{store: store, inFlight: make(chan struct{}), release: make(chan struct{})}
	e := New(store, sink)

	e.Add("only once", memory.Short, memory.Other)
	<-sink.inFlight // the worker now holds the batch inside the sink

	// A foreground save while the batch is in flight must not write the
	// same item a second time.
	require.NoError(t, e.Save())
	close(sink.release)
	e.Stop()

	data, err := os.ReadFile(store.Path(memory.Short))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "only once|"))
}

func TestDurabilityOnCleanShutdown(t *testing.T) {
	dir := t.TempDir()
	store, err := flatfile.New(dir)
	require.NoError(t, err)
	e := New(store, store)

	const n = 250
	for i := 0; i < n; i++ {
		typ := memory.Type(i % 3)
		e.Add(fmt.Sprintf("memo-%03d", i), typ, memory.Other)
	}
	e.Stop()

	reopened, err := flatfile.New(dir)
	require.NoError(t, err)
	assert.Equal(t, n, reopened.Count(), "every added item is on disk after a clean stop")
}
