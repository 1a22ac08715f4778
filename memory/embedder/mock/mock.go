// Package mock provides a deterministic embedder for tests and the CLI.
// No model files are needed: each token is hashed into a few buckets of the
// vector, so identical texts embed identically and texts sharing words score
// a nonzero similarity.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/becomeliminal/recall/memory"
)

const bucketsPerToken = 4

// Embedder is the deterministic hash embedder.
type Embedder struct {
	dimensions int
}

var _ memory.Embedder = (*Embedder)(nil)

// New creates an embedder with 384 dimensions (matching all-MiniLM-L6-v2, so
// it is a drop-in stand-in for the ONNX embedder).
func New() *Embedder {
	return &Embedder{dimensions: 384}
}

// NewWithDimensions creates an embedder with a custom vector size.
func NewWithDimensions(n int) *Embedder {
	return &Embedder{dimensions: n}
}

// Embed produces a normalized bag-of-words embedding. Pure: the same text
// always yields the same vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embedding := make([]float32, e.dimensions)

	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		tokens = []string{text}
	}

	for _, token := range tokens {
		h := fnv.New64a()
		h.Write([]byte(token))
		seed := h.Sum64()

		for i := 0; i < bucketsPerToken; i++ {
			// LCG step per bucket; low bit picks the sign.
			seed = seed*6364136223846793005 + 1442695040888963407
			idx := int(seed % uint64(e.dimensions))
			if seed&1 == 0 {
				embedding[idx] += 1
			} else {
				embedding[idx] -= 1
			}
		}
	}

	return normalize(embedding), nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
