package config

const (
	defaultMetric   = "cosine"
	defaultProvider = "vggish"

	defaultDevice = "cpu"

	defaultEventsProvider = "none"
	defaultEventsTopic    = "tonearm.items"
)

// NewDefaultConfig returns a Config with defaults for all fields. This is
// the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Store: StoreConfig{
			Metric:   defaultMetric,
			Provider: defaultProvider,
		},
		Embedding: EmbeddingConfig{
			Device: defaultDevice,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
