// Package search implements the semantic search collaborator over chromem-go,
// an embedded pure-Go vector database. Embeddings come from a memory.Embedder
// and are memoized in a ristretto cache so re-indexing or repeated queries do
// not re-run the model.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/recall/memory"
)

const collectionName = "memories"

var _ memory.Searcher = (*Semantic)(nil)

// Option configures the searcher.
type Option func(*Semantic)

// WithTTL sets how long an indexed item stays findable before CleanupExpired
// drops it. Zero means items never expire.
func WithTTL(ttl time.Duration) Option {
	return func(s *Semantic) {
		s.ttl = ttl
	}
}

// WithEmbedCacheSize sets the capacity of the embedding cache.
func WithEmbedCacheSize(n int64) Option {
	return func(s *Semantic) {
		s.cacheSize = n
	}
}

type entry struct {
	item      memory.Item
	embedding []float32
	addedAt   time.Time
}

// Semantic is a memory.Searcher backed by chromem-go. Safe for concurrent
// use.
type Semantic struct {
	embedder  memory.Embedder
	ttl       time.Duration
	cacheSize int64

	mu   sync.RWMutex
	db   *chromem.DB
	col  *chromem.Collection
	docs map[string]entry // doc ID -> indexed entry

	embedCache *ristretto.Cache

	searches atomic.Uint64
	dropped  atomic.Uint64
}

// New creates a searcher using the given embedder.
func New(embedder memory.Embedder, opts ...Option) (*Semantic, error) {
	s := &Semantic{
		embedder:  embedder,
		ttl:       30 * 24 * time.Hour,
		cacheSize: 4096,
		docs:      make(map[string]entry),
	}
	for _, opt := range opts {
		opt(s)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: s.cacheSize * 10,
		MaxCost:     s.cacheSize,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embed cache: %w", err)
	}
	s.embedCache = cache

	if err := s.resetCollection(); err != nil {
		return nil, err
	}
	return s, nil
}

// Index makes an item findable by similarity search. Indexing the same
// content again replaces the previous entry.
func (s *Semantic) Index(ctx context.Context, item memory.Item) error {
	embedding, err := s.embed(ctx, item.Content)
	if err != nil {
		return fmt.Errorf("embed memory: %w", err)
	}

	id := docID(item.Content)
	doc := chromem.Document{
		ID:        id,
		Content:   item.Content,
		Embedding: embedding,
		Metadata: map[string]string{
			"type":      strconv.Itoa(int(item.Type)),
			"category":  strconv.Itoa(item.Category.Code()),
			"timestamp": item.Timestamp,
		},
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	s.docs[id] = entry{item: item, embedding: embedding, addedAt: time.Now()}
	return nil
}

// Search returns up to maxResults items with similarity at or above the
// threshold, best first.
func (s *Semantic) Search(ctx context.Context, query string, maxResults int, threshold float64) ([]memory.Scored, error) {
	s.searches.Add(1)

	s.mu.RLock()
	col := s.col
	indexed := len(s.docs)
	s.mu.RUnlock()

	if indexed == 0 || maxResults <= 0 {
		return nil, nil
	}

	embedding, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// chromem-go rejects nResults larger than the collection.
	n := maxResults
	if n > indexed {
		n = indexed
	}

	results, err := col.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]memory.Scored, 0, len(results))
	for _, res := range results {
		if float64(res.Similarity) < threshold {
			continue
		}
		e, ok := s.docs[res.ID]
		if !ok {
			// Dropped by a concurrent cleanup; the collection rebuild
			// will catch up.
			continue
		}
		out = append(out, memory.Scored{Item: e.item, Score: res.Similarity})
	}
	return out, nil
}

// CleanupExpired drops entries older than the TTL and returns how many were
// removed. chromem-go has no per-document delete, so the collection is
// rebuilt from the surviving entries.
func (s *Semantic) CleanupExpired() int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.ttl)
	expired := 0
	for id, e := range s.docs {
		if e.addedAt.Before(cutoff) {
			delete(s.docs, id)
			expired++
		}
	}
	if expired == 0 {
		return 0
	}

	if err := s.rebuildLocked(); err != nil {
		log.Printf("[SEARCH] Collection rebuild after cleanup failed: %v", err)
	}
	s.dropped.Add(uint64(expired))
	log.Printf("[SEARCH] Dropped %d expired entries", expired)
	return expired
}

// Statistics returns a snapshot of the search counters.
func (s *Semantic) Statistics() memory.SearchStatistics {
	s.mu.RLock()
	indexed := len(s.docs)
	s.mu.RUnlock()

	return memory.SearchStatistics{
		IndexedMemories: indexed,
		TotalSearches:   s.searches.Load(),
		EmbedCacheHits:  s.embedCache.Metrics.Hits(),
		ExpiredDropped:  s.dropped.Load(),
	}
}

func (s *Semantic) embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := s.embedCache.Get(text); ok {
		if embedding, ok := cached.([]float32); ok {
			return embedding, nil
		}
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	// Best effort: a rejected Set just means re-embedding on the next use.
	s.embedCache.Set(text, embedding, 1)
	return embedding, nil
}

func (s *Semantic) resetCollection() error {
	s.db = chromem.NewDB()
	col, err := s.db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	s.col = col
	return nil
}

func (s *Semantic) rebuildLocked() error {
	if err := s.resetCollection(); err != nil {
		return err
	}
	for id, e := range s.docs {
		doc := chromem.Document{
			ID:        id,
			Content:   e.item.Content,
			Embedding: e.embedding,
			Metadata: map[string]string{
				"type":      strconv.Itoa(int(e.item.Type)),
				"category":  strconv.Itoa(e.item.Category.Code()),
				"timestamp": e.item.Timestamp,
			},
		}
		if err := s.col.AddDocument(context.Background(), doc); err != nil {
			return fmt.Errorf("re-add document: %w", err)
		}
	}
	return nil
}

func docID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:16])
}
