package embed

import (
	"context"
	"hash/fnv"
	"math"
)

// Mock is a deterministic news.Embedder: the same text always yields the
// same unit vector. Lets index, indexer, and gateway run without an
// embedding service.
type Mock struct {
	dimensions int

	// EmbedTextFunc overrides the default behavior when set.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)
}

// NewMock builds a mock embedder with the given vector width.
func NewMock(dimensions int) *Mock {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &Mock{dimensions: dimensions}
}

func (m *Mock) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return deterministicVector(text, m.dimensions), nil
}

// deterministicVector expands an FNV hash of the text through an LCG and
// normalizes the result to unit length.
func deterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text)) //nolint:errcheck // never fails
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223
		vector[i] = float32(seed%2000)/1000.0 - 1.0
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares > 0 {
		norm := float32(1.0 / math.Sqrt(sumSquares))
		for i := range vector {
			vector[i] *= norm
		}
	}
	return vector
}
