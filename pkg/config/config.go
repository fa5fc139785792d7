package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

// Load resolves the effective configuration for a store directory:
// defaults, overlaid by config.toml in the directory (if present), overlaid
// by TONEARM_ environment variables.
func Load(storeDir string) (*Config, error) {
	v, err := initViper(storeDir)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// initViper creates a *viper.Viper with defaults registered, the store's
// config.toml read when it exists, and TONEARM_ env binding
// (TONEARM_STORE_METRIC, TONEARM_EMBEDDING_MODEL_PATH, ...).
func initViper(storeDir string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	if storeDir != "" {
		v.AddConfigPath(storeDir)
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("TONEARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() under dotted
// keys, keeping defaults.go the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("store.metric", d.Store.Metric)
	v.SetDefault("store.provider", d.Store.Provider)

	v.SetDefault("embedding.model_path", d.Embedding.ModelPath)
	v.SetDefault("embedding.device", d.Embedding.Device)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	v.SetDefault("log.debug", d.Log.Debug)
	v.SetDefault("log.json", d.Log.JSON)
}

// Save writes cfg as config.toml in the store directory, creating the
// directory if needed.
func Save(storeDir string, cfg *Config) error {
	if storeDir == "" {
		return fmt.Errorf("store directory is required to save config")
	}
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	path := filepath.Join(storeDir, configFile)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Path returns the config file path for a store directory.
func Path(storeDir string) string {
	return filepath.Join(storeDir, configFile)
}
