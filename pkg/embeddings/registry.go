package embeddings

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/tonearmlabs/tonearm/pkg/embeddings/remote"
	"github.com/tonearmlabs/tonearm/pkg/embeddings/vggish"
	"github.com/tonearmlabs/tonearm/pkg/logger"
)

// Config carries provider construction settings. Providers read the fields
// they need and ignore the rest.
type Config struct {
	// ModelPath is the on-disk model file for local inference providers.
	ModelPath string

	// Device selects the compute device for local inference ("cpu" or
	// "cuda").
	Device string

	// Target is the base URL for remote inference providers.
	Target string

	// Dimensions overrides the vector length for providers whose length is
	// not fixed (the remote provider requires it).
	Dimensions int

	// Logger receives provider diagnostics. Defaults to logger.Nop().
	Logger *slog.Logger
}

type entry struct {
	dimensions func(Config) (int, error)
	build      func(Config) (Embedder, error)
}

// The provider set is closed: names are rejected at construction time
// rather than resolved dynamically.
var registry = map[string]entry{
	"vggish": {
		dimensions: func(Config) (int, error) { return vggish.VectorLength, nil },
		build: func(cfg Config) (Embedder, error) {
			return vggish.New(vggish.Config{
				ModelPath: cfg.ModelPath,
				Device:    cfg.Device,
			}, cfg.Logger)
		},
	},
	"remote": {
		dimensions: func(cfg Config) (int, error) {
			if cfg.Dimensions <= 0 {
				return 0, fmt.Errorf("remote provider requires configured dimensions")
			}
			return cfg.Dimensions, nil
		},
		build: func(cfg Config) (Embedder, error) {
			return remote.New(remote.Config{
				BaseURL:    cfg.Target,
				Dimensions: cfg.Dimensions,
			}, cfg.Logger)
		},
	},
}

// New constructs the named provider. Unknown names fail immediately.
func New(name string, cfg Config) (Embedder, error) {
	e, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownProvider, name, Names())
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return e.build(cfg)
}

// Dimensions reports the vector length the named provider produces, without
// constructing it. This lets the store create its indices before the model
// is ever loaded.
func Dimensions(name string, cfg Config) (int, error) {
	e, ok := registry[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q (have %v)", ErrUnknownProvider, name, Names())
	}
	return e.dimensions(cfg)
}

// Names lists the registered provider names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
