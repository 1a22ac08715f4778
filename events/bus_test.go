package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDelivers(t *testing.T) {
	bus := NewBus(16)

	var mu sync.Mutex
	var got []Event
	bus.Subscribe(MemoryAdded, func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	bus.Start()
	defer bus.Stop()

	bus.Publish(New(MemoryAdded, "payload"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, MemoryAdded, got[0].Type)
	assert.Equal(t, "payload", got[0].Data)
	assert.NotEmpty(t, got[0].ID)
}

func TestPublishWhileStoppedIsDropped(t *testing.T) {
	bus := NewBus(16)

	delivered := make(chan Event, 1)
	bus.Subscribe(MemoryAdded, func(e Event) { delivered <- e })

	bus.Publish(New(MemoryAdded, nil)) // never started

	assert.Equal(t, uint64(1), bus.Statistics().Dropped)
	select {
	case <-delivered:
		t.Fatal("event delivered while stopped")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStopDrainsBufferedEvents(t *testing.T) {
	bus := NewBus(64)

	var mu sync.Mutex
	count := 0
	bus.Subscribe(MemorySearched, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Start()
	for i := 0; i < 20; i++ {
		bus.Publish(New(MemorySearched, i))
	}
	bus.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, count, "Stop delivers everything buffered before it")
}

func TestStartStopIdempotent(t *testing.T) {
	bus := NewBus(4)

	bus.Start()
	bus.Start() // no second dispatcher
	bus.Stop()
	bus.Stop() // no double close

	// And the bus can be cycled again.
	got := make(chan struct{}, 1)
	bus.Subscribe(SystemStarted, func(Event) { got <- struct{}{} })
	bus.Start()
	bus.Publish(New(SystemStarted, nil))
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("no delivery after restart")
	}
	bus.Stop()
}

func TestPanickingHandlerIsIsolated(t *testing.T) {
	bus := NewBus(16)

	bus.Subscribe(WeightUpdated, func(Event) {
		panic("bad payload decode")
	})
	healthy := make(chan struct{}, 2)
	bus.Subscribe(WeightUpdated, func(Event) { healthy <- struct{}{} })

	bus.Start()
	defer bus.Stop()

	bus.Publish(New(WeightUpdated, nil))
	bus.Publish(New(WeightUpdated, nil))

	for i := 0; i < 2; i++ {
		select {
		case <-healthy:
		case <-time.After(time.Second):
			t.Fatalf("healthy subscriber starved after %d deliveries", i)
		}
	}
}

func TestStatistics(t *testing.T) {
	bus := NewBus(16)
	bus.Subscribe(MemoryAdded, func(Event) {})
	bus.Subscribe(MemoryAdded, func(Event) {})

	bus.Start()
	bus.Publish(New(MemoryAdded, nil))
	bus.Stop()

	stats := bus.Statistics()
	assert.Equal(t, uint64(1), stats.Published)
	assert.Equal(t, uint64(2), stats.Delivered)
	assert.Equal(t, 2, stats.Subscribers)
}
