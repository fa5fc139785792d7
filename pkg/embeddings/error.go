package embeddings

import "errors"

var (
	// ErrUnknownProvider is returned when a provider name is not registered.
	ErrUnknownProvider = errors.New("unknown embedding provider")

	// ErrEmbedding is returned when embedding computation fails for an
	// audio source.
	ErrEmbedding = errors.New("embedding failed")
)
