// Package embeddings defines the audio embedding provider boundary.
//
// A provider turns one audio file into a 2-D (segments x dim) float32
// tensor. Providers differ in vector length and segmenting semantics; the
// store treats them as named, pluggable capabilities selected through the
// registry in this package.
package embeddings

import (
	"context"

	"github.com/tonearmlabs/tonearm/pkg/tensor"
)

// Embedder produces per-segment embedding tensors for audio files.
type Embedder interface {
	// Embed computes the embedding tensor for one audio file. The result
	// has one row per time segment and Dimensions() columns.
	Embed(ctx context.Context, audioPath string) (*tensor.Embedding, error)

	// Dimensions returns the provider-fixed vector length.
	Dimensions() int

	// Close releases any resources held by the embedder.
	Close() error
}
