// Package engine provides the top-level memory manager: it composes the
// write-back engine, the query cache, the weight collaborator, an optional
// semantic searcher, and the event bus behind one start/stop lifecycle.
package engine

import (
	"context"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/becomeliminal/recall/events"
	"github.com/becomeliminal/recall/memory"
	"github.com/becomeliminal/recall/memory/weights"
	"github.com/becomeliminal/recall/memory/writeback"
)

const (
	// DefaultSearchThreshold is the minimum similarity for semantic results.
	DefaultSearchThreshold = 0.5

	// DefaultCacheSize is the query cache capacity.
	DefaultCacheSize = 1000

	defaultMaintenanceInterval = 5 * time.Minute
)

// Manager is the orchestrator. Create it with New, then Start it; every
// mutating API refuses (with a logged warning) while the manager is stopped.
type Manager struct {
	store    memory.Store
	sink     writeback.Sink
	weights  *weights.Manager
	searcher memory.Searcher
	bus      *events.Bus

	mu        sync.RWMutex
	queue     *writeback.Engine
	cache     *lru.Cache[string, memory.Item]
	cacheSize int
	threshold float64

	maintenanceEvery time.Duration
	running          atomic.Bool
	stopCh           chan struct{}
	loopDone         chan struct{}

	totalSearches atomic.Uint64
	cacheHits     atomic.Uint64
	cacheMisses   atomic.Uint64
	searchNanos   atomic.Int64
}

// Option configures the manager.
type Option func(*Manager)

// WithSearcher sets the semantic search collaborator. Without one, searches
// fall back to the store's related-memories heuristic.
func WithSearcher(s memory.Searcher) Option {
	return func(m *Manager) {
		m.searcher = s
	}
}

// WithBus sets the event bus. Defaults to a fresh bus per manager.
func WithBus(b *events.Bus) Option {
	return func(m *Manager) {
		m.bus = b
	}
}

// WithSink overrides the batch persistence destination of the write-back
// engine. Defaults to the store itself when it implements writeback.Sink.
func WithSink(s writeback.Sink) Option {
	return func(m *Manager) {
		m.sink = s
	}
}

// WithWeightConfig sets the weight collaborator's configuration.
func WithWeightConfig(cfg weights.Config) Option {
	return func(m *Manager) {
		m.weights = weights.New(cfg)
	}
}

// WithSearchThreshold sets the semantic similarity threshold.
func WithSearchThreshold(t float64) Option {
	return func(m *Manager) {
		m.threshold = t
	}
}

// WithCacheSize sets the query cache capacity.
func WithCacheSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.cacheSize = n
		}
	}
}

// WithMaintenanceInterval overrides the background maintenance period.
func WithMaintenanceInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.maintenanceEvery = d
		}
	}
}

// New creates a stopped manager over the given store.
func New(store memory.Store, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:            store,
		weights:          weights.New(weights.DefaultConfig()),
		cacheSize:        DefaultCacheSize,
		threshold:        DefaultSearchThreshold,
		maintenanceEvery: defaultMaintenanceInterval,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.sink == nil {
		if sink, ok := store.(writeback.Sink); ok {
			m.sink = sink
		} else {
			m.sink = discardSink{}
			log.Printf("[ENGINE] Store has no batch sink; persistence disabled")
		}
	}
	if m.bus == nil {
		m.bus = events.NewBus(256)
	}

	cache, err := lru.New[string, memory.Item](m.cacheSize)
	if err != nil {
		return nil, err
	}
	m.cache = cache
	return m, nil
}

// Start transitions to Running: starts the event bus, the write-back engine,
// and the maintenance loop, and publishes a system-started event. No-op when
// already Running.
func (m *Manager) Start() {
	if !m.running.CompareAndSwap(false, true) {
		return
	}

	m.bus.Start()

	m.mu.Lock()
	m.queue = writeback.New(m.store, m.sink)
	m.stopCh = make(chan struct{})
	m.loopDone = make(chan struct{})
	m.mu.Unlock()
	go m.maintenanceLoop(m.stopCh, m.loopDone)

	m.bus.Publish(events.New(events.SystemStarted, nil))
	log.Printf("[ENGINE] Memory manager started")
}

// Stop transitions to Stopped: joins the maintenance loop, stops the
// write-back engine (which flushes everything pending), publishes
// system-stopped, and stops the bus. No-op when already Stopped.
func (m *Manager) Stop() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}

	m.mu.Lock()
	stopCh, loopDone := m.stopCh, m.loopDone
	queue := m.queue
	m.queue = nil
	m.mu.Unlock()

	close(stopCh)
	<-loopDone
	if queue != nil {
		queue.Stop()
	}

	// Published before the bus stops so subscribers still see it; Stop
	// drains the buffer.
	m.bus.Publish(events.New(events.SystemStopped, nil))
	m.bus.Stop()
	log.Printf("[ENGINE] Memory manager stopped")
}

// IsRunning reports the lifecycle state.
func (m *Manager) IsRunning() bool {
	return m.running.Load()
}

// IsSaving reports whether the write-back engine has a persistence call in
// flight.
func (m *Manager) IsSaving() bool {
	m.mu.RLock()
	queue := m.queue
	m.mu.RUnlock()
	return queue != nil && queue.IsSaving()
}

// Save synchronously persists everything pending. Usable as an explicit
// durability point while Running.
func (m *Manager) Save() error {
	m.mu.RLock()
	queue := m.queue
	m.mu.RUnlock()
	if queue == nil {
		return m.store.Save()
	}
	return queue.Save()
}

// AddMemory accepts a new fact. With category Other the classifier picks one
// from the content. The item is readable immediately and persisted
// asynchronously; the call never waits on I/O.
func (m *Manager) AddMemory(content string, typ memory.Type, category memory.Category) {
	if !m.running.Load() {
		log.Printf("[ENGINE] Not running, refusing to add memory")
		return
	}
	if content == "" {
		return
	}
	if category == memory.Other {
		category = memory.Classify(content)
	}

	m.mu.RLock()
	queue := m.queue
	m.mu.RUnlock()
	if queue == nil {
		return
	}

	// One item, one timestamp: the store copy, the persisted line, the
	// weight record, the search index, and the event all agree.
	item := memory.NewItem(content, typ, category)
	queue.AddItem(item)
	m.weights.RecordAccess(content, item.Timestamp)

	if m.searcher != nil {
		if err := m.searcher.Index(context.Background(), item); err != nil {
			log.Printf("[ENGINE] Semantic index failed for %q: %v", content, err)
		}
	}

	m.bus.Publish(events.New(events.MemoryAdded, item))
}

// SearchMemories is the primary read path: exact-text cache, then semantic
// search (or the store's related fallback), caching the first result. The
// returned slice may be empty, never an error.
func (m *Manager) SearchMemories(query string, maxResults int) []memory.Item {
	start := time.Now()

	m.mu.RLock()
	cache := m.cache
	threshold := m.threshold
	m.mu.RUnlock()

	if item, ok := cache.Get(query); ok {
		m.cacheHits.Add(1)
		// Cache hits still count toward total searches and latency.
		m.recordSearch(start)
		return []memory.Item{item}
	}
	m.cacheMisses.Add(1)

	var results []memory.Item
	if m.searcher != nil {
		scored, err := m.searcher.Search(context.Background(), query, maxResults, threshold)
		if err != nil {
			log.Printf("[ENGINE] Semantic search failed for %q: %v", query, err)
		}
		for _, s := range scored {
			results = append(results, s.Item)
		}
	} else {
		results = m.store.Related(query, maxResults)
	}

	m.recordSearch(start)

	if len(results) > 0 {
		cache.Add(query, results[0])
	}

	m.bus.Publish(events.New(events.MemorySearched, query))
	return results
}

// RecentMemories returns up to count items, most recent first.
func (m *Manager) RecentMemories(count int) []memory.Item {
	return m.store.Recent(count)
}

// TopMemories returns up to count items ranked by the weight collaborator's
// importance score. Empty store or no tracked weights yields an empty slice.
func (m *Manager) TopMemories(count int) []memory.Item {
	contents := m.weights.Top(count)
	if len(contents) == 0 {
		return nil
	}

	byContent := make(map[string]memory.Item)
	for _, item := range m.store.All() {
		byContent[item.Content] = item
	}

	out := make([]memory.Item, 0, len(contents))
	for _, content := range contents {
		if item, ok := byContent[content]; ok {
			out = append(out, item)
		}
	}
	return out
}

// UpdateMemoryWeight sets an explicit importance for the content and
// publishes a weight-updated event.
func (m *Manager) UpdateMemoryWeight(content string, weight float64) {
	if !m.running.Load() {
		log.Printf("[ENGINE] Not running, refusing weight update")
		return
	}

	m.weights.UpdateMemoryWeight(content, weight)
	m.bus.Publish(events.New(events.WeightUpdated, WeightChange{Content: content, Weight: weight}))
}

// WeightChange is the payload of weight-updated events.
type WeightChange struct {
	Content string
	Weight  float64
}

// RecordMemoryAccess notes an access to existing content, boosting its
// weight.
func (m *Manager) RecordMemoryAccess(content string) {
	if !m.running.Load() {
		log.Printf("[ENGINE] Not running, refusing access record")
		return
	}
	m.weights.RecordAccess(content, memory.Now())
}

// CleanupExpiredMemories drops expired entries from the semantic searcher
// (when present) and purges expired weight records. Idempotent; runs both on
// demand and from the maintenance loop.
func (m *Manager) CleanupExpiredMemories() {
	dropped := 0
	if m.searcher != nil {
		dropped = m.searcher.CleanupExpired()
	}
	purged := m.weights.CleanupExpired()
	if dropped > 0 || purged > 0 {
		log.Printf("[ENGINE] Cleanup: %d search entries, %d weight records", dropped, purged)
	}
}

// BatchItem is one entry of AddMemoriesBatch.
type BatchItem struct {
	Content string
	Type    memory.Type
}

// AddMemoriesBatch adds each entry in order with an auto-classified
// category. Not atomic: entries added before a refusal stay added.
func (m *Manager) AddMemoriesBatch(items []BatchItem) {
	if !m.running.Load() {
		log.Printf("[ENGINE] Not running, refusing batch add")
		return
	}
	for _, it := range items {
		m.AddMemory(it.Content, it.Type, memory.Other)
	}
	log.Printf("[ENGINE] Batch added %d memories", len(items))
}

// SearchMemoriesBatch runs SearchMemories per query and returns the combined
// results deduplicated by content. The result is content-sorted, not
// relevance-ordered.
func (m *Manager) SearchMemoriesBatch(queries []string, maxResults int) []memory.Item {
	var all []memory.Item
	for _, q := range queries {
		all = append(all, m.SearchMemories(q, maxResults)...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Content < all[j].Content
	})

	deduped := all[:0]
	for i, item := range all {
		if i == 0 || item.Content != all[i-1].Content {
			deduped = append(deduped, item)
		}
	}
	return deduped
}

// SetSearchThreshold changes the semantic similarity threshold.
func (m *Manager) SetSearchThreshold(t float64) {
	m.mu.Lock()
	m.threshold = t
	m.mu.Unlock()
	log.Printf("[ENGINE] Search threshold set to %.2f", t)
}

// SetCacheSize rebuilds the query cache with a new capacity. The previous
// cache contents are dropped; that loss is the documented cost of
// reconfiguration.
func (m *Manager) SetCacheSize(n int) {
	if n <= 0 {
		return
	}
	cache, err := lru.New[string, memory.Item](n)
	if err != nil {
		log.Printf("[ENGINE] Cache rebuild failed: %v", err)
		return
	}

	m.mu.Lock()
	m.cache = cache
	m.cacheSize = n
	m.mu.Unlock()
	log.Printf("[ENGINE] Query cache rebuilt with capacity %d", n)
}

// SetWeightConfig forwards new scoring parameters to the weight
// collaborator.
func (m *Manager) SetWeightConfig(cfg weights.Config) {
	m.weights.SetConfig(cfg)
	log.Printf("[ENGINE] Weight configuration updated")
}

// Statistics assembles a fresh snapshot of all counters. Fields are read
// independently; no cross-field consistency is implied.
func (m *Manager) Statistics() Statistics {
	stats := Statistics{
		TotalMemories: len(m.store.All()),
		TotalSearches: m.totalSearches.Load(),
		Weights:       m.weights.Statistics(),
		Events:        m.bus.Statistics(),
	}

	if searches := stats.TotalSearches; searches > 0 {
		stats.AverageSearchTime = time.Duration(m.searchNanos.Load() / int64(searches))
	}

	hits := m.cacheHits.Load()
	misses := m.cacheMisses.Load()
	if total := hits + misses; total > 0 {
		stats.CacheHitRate = hits * 100 / total
	}

	if m.searcher != nil {
		stats.Search = m.searcher.Statistics()
	}
	return stats
}

// Statistics is the on-demand system snapshot.
type Statistics struct {
	TotalMemories     int
	TotalSearches     uint64
	AverageSearchTime time.Duration
	CacheHitRate      uint64 // percent, truncated
	Weights           weights.Statistics
	Search            memory.SearchStatistics
	Events            events.Statistics
}

func (m *Manager) recordSearch(start time.Time) {
	m.searchNanos.Add(time.Since(start).Nanoseconds())
	m.totalSearches.Add(1)
}

// maintenanceLoop periodically expires stale data and recomputes weights
// over the full snapshot. It exits only via the stop channel; a failing
// iteration is logged and the loop continues.
func (m *Manager) maintenanceLoop(stopCh, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.maintenanceEvery)
	defer ticker.Stop()

	for {
		m.maintain()
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) maintain() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ENGINE] Maintenance iteration failed: %v", r)
		}
	}()

	m.CleanupExpiredMemories()

	items := m.store.All()
	if len(items) > 0 {
		m.weights.UpdateWeights(items, memory.Now())
	}
}

// discardSink is used when the store cannot persist batches; items stay in
// memory only.
type discardSink struct{}

func (discardSink) Flush([]memory.Item) error { return nil }
