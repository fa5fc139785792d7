//go:build !cgo
// +build !cgo

package vggish

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tonearmlabs/tonearm/pkg/tensor"
)

// Embedder stub type when built without CGO (see vggish.go for the real
// implementation).
type Embedder struct{}

// New returns an error when built without CGO.
func New(Config, *slog.Logger) (*Embedder, error) {
	return nil, errors.New("vggish embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

func (e *Embedder) Embed(context.Context, string) (*tensor.Embedding, error) {
	return nil, errors.New("vggish embedder not available without CGO")
}

func (e *Embedder) Dimensions() int { return VectorLength }

func (e *Embedder) Close() error { return nil }
