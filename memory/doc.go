// Package memory defines the core types of the recall memory subsystem.
//
// A memory is a short text fact with a lifetime type (short/mid/long), a
// category, and a creation timestamp. The package holds the item model, the
// keyword classifier, and the contracts the orchestration layer composes:
//
//   - Store: synchronous in-memory collection with a flush-to-disk operation
//   - Searcher: optional semantic similarity search over indexed items
//   - Embedder: text-to-vector conversion used by Searcher implementations
//
// The concurrency machinery lives in the subpackages:
//   - memory/writeback: asynchronous batched persistence over a Store
//   - memory/store/flatfile: the append-only flat-file Store
//   - memory/weights: importance scoring with decay
//   - memory/search: chromem-go backed Searcher
package memory
