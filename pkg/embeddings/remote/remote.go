// Package remote implements the audio embedding provider against an HTTP
// inference service.
//
// The service contract is one POST of raw audio bytes to /v1/embeddings,
// answered with the per-segment vectors as JSON. Any model that produces a
// rectangular (segments x dim) response can sit behind it, which is how
// providers other than the built-in VGGish model are used without linking
// their runtimes.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/tonearmlabs/tonearm/pkg/tensor"
)

// DefaultBaseURL is the default inference service URL.
const DefaultBaseURL = "http://localhost:8090"

const embedPath = "/v1/embeddings"

// Embedder calls a remote audio embedding service.
type Embedder struct {
	baseURL    string
	dimensions int
	logger     *slog.Logger
	httpClient *http.Client
}

// Config holds configuration for the remote embedder.
type Config struct {
	// BaseURL is the inference service URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Dimensions is the vector length the service produces. Required;
	// responses with a different width are rejected.
	Dimensions int
}

// embedResponse is the service's response body.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// New creates an embedder against a remote inference service.
func New(cfg Config, logger *slog.Logger) (*Embedder, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("remote embedder requires configured dimensions")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Embedder{
		baseURL:    baseURL,
		dimensions: cfg.Dimensions,
		logger:     logger,
		httpClient: &http.Client{
			// Model inference on a long track can take a while.
			Timeout: 300 * time.Second,
		},
	}, nil
}

// Embed posts the audio file to the service and returns its per-segment
// embedding tensor.
func (e *Embedder) Embed(ctx context.Context, audioPath string) (*tensor.Embedding, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", audioPath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+embedPath, bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embedding service at %s: %w", e.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var parsed embedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing embed response: %w", err)
	}
	if len(parsed.Embeddings) == 0 {
		return nil, fmt.Errorf("embedding service returned no segments for %s", audioPath)
	}
	for i, row := range parsed.Embeddings {
		if len(row) != e.dimensions {
			return nil, fmt.Errorf("embedding service returned %d floats for segment %d, want %d",
				len(row), i, e.dimensions)
		}
	}

	emb, err := tensor.FromRows(parsed.Embeddings)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("embedded audio remotely",
		"path", audioPath,
		"segments", emb.Segments(),
	)
	return emb, nil
}

// Dimensions returns the configured vector length.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client holds no persistent resources.
func (e *Embedder) Close() error {
	return nil
}
