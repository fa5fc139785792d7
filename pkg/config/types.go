// Package config loads and persists tonearm configuration.
//
// A store directory may carry a config.toml pinning the scheme it was
// created with (metric, provider, embedding settings) so later sessions
// reopen it consistently. Values resolve with the usual precedence: CLI
// flags, then TONEARM_ environment variables, then the file, then defaults.
package config

// Config is the persistent tonearm configuration stored as config.toml in
// the store directory.
type Config struct {
	Version   int             `toml:"version" mapstructure:"version"`
	Store     StoreConfig     `toml:"store" mapstructure:"store"`
	Embedding EmbeddingConfig `toml:"embedding" mapstructure:"embedding"`
	Events    EventsConfig    `toml:"events" mapstructure:"events"`
	Log       LogConfig       `toml:"log" mapstructure:"log"`
}

// StoreConfig pins the scheme identity of a store directory.
type StoreConfig struct {
	Metric   string `toml:"metric,omitempty" mapstructure:"metric"`
	Provider string `toml:"provider,omitempty" mapstructure:"provider"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// ModelPath is the ONNX model file for local inference providers.
	ModelPath string `toml:"model_path,omitempty" mapstructure:"model_path"`

	// Device selects the inference device ("cpu" or "cuda").
	Device string `toml:"device,omitempty" mapstructure:"device"`

	// Target is the base URL for the remote provider.
	Target string `toml:"target,omitempty" mapstructure:"target"`

	// Dimensions is the vector length for providers that need it
	// configured (the remote provider).
	Dimensions int `toml:"dimensions,omitempty" mapstructure:"dimensions"`
}

// EventsConfig holds ingest event stream settings.
type EventsConfig struct {
	// Provider selects the publisher backend: "none" or "kafka".
	Provider string `toml:"provider,omitempty" mapstructure:"provider"`

	Brokers []string `toml:"brokers,omitempty" mapstructure:"brokers"`
	Topic   string   `toml:"topic,omitempty" mapstructure:"topic"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Debug bool `toml:"debug,omitempty" mapstructure:"debug"`
	JSON  bool `toml:"json,omitempty" mapstructure:"json"`
}
