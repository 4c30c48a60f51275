package testutil

import (
	"context"
	"hash/fnv"
)

// FakeEmbedder produces deterministic embeddings without a provider.
// Exact-text overrides in Vectors take priority; other inputs get a
// hash-seeded vector so identical text always embeds identically.
type FakeEmbedder struct {
	Dim     int // default 768, matching the document_chunks schema
	Vectors map[string][]float32
	Err     error
}

func (f *FakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if v, ok := f.Vectors[text]; ok {
		return v, nil
	}

	dim := f.Dim
	if dim == 0 {
		dim = 768
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, dim)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000)/1000 - 0.5
	}
	return vec, nil
}

// BasisVector returns a unit vector of the given dimension with a 1 at
// index. Useful for constructing orthogonal test embeddings.
func BasisVector(dim, index int) []float32 {
	vec := make([]float32, dim)
	vec[index] = 1
	return vec
}
