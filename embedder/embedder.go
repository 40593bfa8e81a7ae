// Package embedder defines the embedding contract and its providers.
// Vectors are always unit-norm so cosine similarity reduces to a dot
// product downstream.
package embedder

import (
	"context"
	"math"
)

// Embedder turns text into fixed-dimension unit vectors.
type Embedder interface {
	// Embed encodes a batch of texts, one row per input.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery encodes a single query text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the vector dimension.
	Dimension() int

	// Close releases resources.
	Close() error
}

// Normalize scales a vector to unit length in place and returns it.
// Zero vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// Dot returns the dot product of two equal-length vectors. For unit-norm
// inputs this is the cosine similarity.
func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
