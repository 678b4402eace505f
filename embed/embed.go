// Package embed implements the Embedder (C1): a deterministic map from text
// to a fixed-dimension real vector, referentially transparent within a
// process lifetime (§4.1).
//
// Grounded on the teacher's memory.HashEmbedder (memory/embedder.go):
// the hashing and normalization scheme is kept verbatim as the default
// in-process implementation, generalized only to apply §4.1's input
// normalization (lowercase, trim) before hashing so that "Foo " and "foo"
// embed identically.
package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/agentplexus/hybridtable"
)

// DefaultDimensions is used when a caller requests dimensions <= 0.
const DefaultDimensions = 384

// HashEmbedder is a deterministic, dependency-free embedder suitable for
// development, tests, and deployments without a model-serving dependency.
// It is explicitly not a semantic embedding: texts that share no tokens can
// still land close together by hash coincidence. Swap in a model-backed
// Embedder (e.g. an HTTP client to an embedding service) for production
// semantic recall; HashEmbedder satisfies the same hybridtable.Embedder
// contract so callers need no code change.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder constructs a HashEmbedder with the given vector width,
// falling back to DefaultDimensions when dimensions <= 0.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Dimensions implements hybridtable.Embedder.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Embed implements hybridtable.Embedder. Input is normalized per §4.1
// before hashing, so repeated calls for differently-cased or
// whitespace-padded variants of the same text produce the same vector.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))

	embedding := make([]float32, e.dimensions)

	h := fnv.New64a()
	h.Write([]byte(normalized))
	seed := h.Sum64()

	for i := 0; i < e.dimensions; i++ {
		shift := uint(i % 64) //nolint:gosec // i%64 is always in [0,63], safe for uint
		val := float64((seed>>shift)&0xFF) / 255.0
		embedding[i] = float32(val*2 - 1)
	}

	var norm float64
	for _, v := range embedding {
		norm += float64(v * v)
	}
	if norm > 0 {
		norm = 1.0 / math.Sqrt(norm)
		for i := range embedding {
			embedding[i] *= float32(norm)
		}
	}

	return embedding, nil
}

var _ hybridtable.Embedder = (*HashEmbedder)(nil)
