// Package events provides the in-process event bus of the memory subsystem.
//
// The bus is an explicitly constructed component, not a hidden global: the
// orchestrator owns one instance and ties its lifecycle to Start/Stop, and
// tests build isolated buses. Publishing is fire-and-forget: events go into a
// buffered channel drained by one dispatcher goroutine, and a full buffer or
// a stopped bus drops the event (counted) rather than blocking the caller.
package events

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event types published by the memory subsystem.
const (
	MemoryAdded    = "memory-added"
	MemorySearched = "memory-searched"
	WeightUpdated  = "weight-updated"
	SystemStarted  = "system-started"
	SystemStopped  = "system-stopped"
)

// Event is a single published occurrence. Data is event-type specific;
// handlers that unpack it must tolerate unexpected shapes.
type Event struct {
	ID        string
	Type      string
	Timestamp time.Time
	Data      any
}

// New creates an event of the given type carrying data.
func New(eventType string, data any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// Handler consumes a delivered event. Handlers run on the dispatcher
// goroutine; a panicking handler is recovered and logged without affecting
// other subscribers or later events.
type Handler func(Event)

// Statistics is the bus counter snapshot nested into system statistics.
type Statistics struct {
	Published   uint64
	Delivered   uint64
	Dropped     uint64
	Subscribers int
}

// Bus is the event bus. Create with NewBus. Start/Stop may be cycled; both
// are idempotent within a cycle.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler

	// ch outlives Start/Stop cycles; only the dispatcher goroutine comes
	// and goes.
	ch chan Event

	lifecycle sync.Mutex
	stopCh    chan struct{}
	done      chan struct{}
	running   atomic.Bool

	published atomic.Uint64
	delivered atomic.Uint64
	droppedN  atomic.Uint64
}

// NewBus creates a bus with the given publish buffer capacity.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{
		handlers: make(map[string][]Handler),
		ch:       make(chan Event, buffer),
	}
}

// Subscribe registers a handler for an event type. Subscriptions are
// accepted before or after Start.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()
}

// Start spawns the dispatcher goroutine. No-op if already running.
func (b *Bus) Start() {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	if b.running.Load() {
		return
	}
	b.stopCh = make(chan struct{})
	b.done = make(chan struct{})
	b.running.Store(true)
	go b.dispatch(b.stopCh, b.done)
	log.Printf("[EVENTS] Bus started")
}

// Stop delivers already-buffered events, then joins the dispatcher. No-op if
// not running. Events published while stopped are dropped.
func (b *Bus) Stop() {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	if !b.running.Load() {
		return
	}
	b.running.Store(false)
	close(b.stopCh)
	<-b.done
	log.Printf("[EVENTS] Bus stopped")
}

// Publish hands an event to the dispatcher. Never blocks: with the buffer
// full or the bus not running, the event is dropped and counted.
func (b *Bus) Publish(event Event) {
	if !b.running.Load() {
		b.droppedN.Add(1)
		return
	}
	select {
	case b.ch <- event:
		b.published.Add(1)
	default:
		b.droppedN.Add(1)
	}
}

// Statistics returns a snapshot of the bus counters.
func (b *Bus) Statistics() Statistics {
	b.mu.RLock()
	subs := 0
	for _, hs := range b.handlers {
		subs += len(hs)
	}
	b.mu.RUnlock()

	return Statistics{
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
		Dropped:     b.droppedN.Load(),
		Subscribers: subs,
	}
}

func (b *Bus) dispatch(stopCh, done chan struct{}) {
	defer close(done)

	for {
		select {
		case event := <-b.ch:
			b.fanOut(event)
		case <-stopCh:
			// Drain what was buffered before the stop.
			for {
				select {
				case event := <-b.ch:
					b.fanOut(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) fanOut(event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type]))
	copy(handlers, b.handlers[event.Type])
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, event)
	}
}

// deliver runs one handler with panic isolation: a broken handler or a
// malformed payload must not take down the dispatcher or other subscribers.
func (b *Bus) deliver(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[EVENTS] Handler panic on %s event: %v", event.Type, r)
		}
	}()
	h(event)
	b.delivered.Add(1)
}
