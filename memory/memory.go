package memory

import "context"

// Store is the synchronous base layer: an in-memory collection of items plus
// a flush-to-disk operation. Implementations must make concurrent
// add/read/flush safe; the write-back engine and the orchestrator share one
// Store instance.
//
// Implementations: flatfile.Store (append-only flat files, one per Type).
type Store interface {
	// Add records an item in memory. It must not perform I/O; a read
	// immediately after Add observes the item.
	Add(item Item)

	// Save flushes everything not yet persisted to durable storage.
	Save() error

	// All returns a snapshot of every item, in insertion order.
	All() []Item

	// Recent returns up to n items, most recent first.
	Recent(n int) []Item

	// Related returns up to n items matching the query by a cheap
	// recency/keyword heuristic. It is the fallback when no semantic
	// searcher is configured.
	Related(query string, n int) []Item
}

// Scored is a search result: an item with its similarity score.
type Scored struct {
	Item  Item
	Score float32
}

// Searcher is the optional semantic search collaborator. The system must
// function with it absent; the orchestrator falls back to Store.Related.
//
// Implementations: search.Semantic (chromem-go backed).
type Searcher interface {
	// Index makes an item findable by similarity search.
	Index(ctx context.Context, item Item) error

	// Search returns up to maxResults items with similarity above the
	// threshold, ranked best first.
	Search(ctx context.Context, query string, maxResults int, threshold float64) ([]Scored, error)

	// CleanupExpired drops entries past the searcher's expiry policy and
	// returns how many were dropped. Idempotent.
	CleanupExpired() int

	// Statistics returns a snapshot of search counters.
	Statistics() SearchStatistics
}

// SearchStatistics is the Searcher counter snapshot nested into the system
// statistics.
type SearchStatistics struct {
	IndexedMemories int
	TotalSearches   uint64
	EmbedCacheHits  uint64
	ExpiredDropped  uint64
}

// Embedder converts text to vector embeddings.
// Implementations: embedder/mock (deterministic, for tests and the CLI),
// embedder/onnx (all-MiniLM-L6-v2 behind the onnx build tag).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
