// Package testutils holds shared fakes for package tests.
package testutils

import (
	"context"
	"fmt"

	"github.com/tonearmlabs/tonearm/pkg/tensor"
)

// MockEmbedder is a test embedder returning canned embeddings per audio
// path, so suites never need a model file or audio fixtures.
type MockEmbedder struct {
	// Dim is the vector length the fake claims to produce.
	Dim int

	// Embeddings maps audio paths to canned results.
	Embeddings map[string]*tensor.Embedding

	// FailOn causes Embed to return an error when the path matches.
	FailOn string

	// Calls counts Embed invocations, to assert on cache hits.
	Calls int
}

// NewMockEmbedder creates a mock with the given vector length.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{
		Dim:        dim,
		Embeddings: make(map[string]*tensor.Embedding),
	}
}

// Embed returns the canned embedding for path, or a two-segment constant
// embedding when none is registered.
func (m *MockEmbedder) Embed(_ context.Context, path string) (*tensor.Embedding, error) {
	m.Calls++

	if m.FailOn != "" && path == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", path)
	}

	if emb, ok := m.Embeddings[path]; ok {
		return emb, nil
	}

	rows := make([][]float32, 2)
	for s := range rows {
		row := make([]float32, m.Dim)
		for j := range row {
			row[j] = float32(j+1) / float32(m.Dim)
		}
		rows[s] = row
	}
	return tensor.FromRows(rows)
}

// Dimensions returns the configured vector length.
func (m *MockEmbedder) Dimensions() int {
	return m.Dim
}

// Close is a no-op.
func (m *MockEmbedder) Close() error {
	return nil
}
