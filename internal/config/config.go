package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"stripecache/pkg/store"
)

// Config holds all configuration for a stripecache process.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Logger LoggerConfig `yaml:"logger"`
}

// EngineConfig maps one-to-one onto store.Config.
type EngineConfig struct {
	Shards          int    `yaml:"shards"`
	InitialCapacity int    `yaml:"initial_capacity"`
	SweepIntervalMs int    `yaml:"sweep_interval_ms"`
	HashSeed        uint64 `yaml:"hash_seed"`
	MaxKeyBytes     int    `yaml:"max_key_bytes"`
	MaxValueBytes   int    `yaml:"max_value_bytes"`
}

// LoggerConfig selects the slog handler and level.
type LoggerConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Shards:          store.DefaultShardCount,
			InitialCapacity: store.DefaultInitialCapacity,
			SweepIntervalMs: int(store.DefaultSweepInterval / time.Millisecond),
			MaxKeyBytes:     store.DefaultMaxKeyBytes,
			MaxValueBytes:   store.DefaultMaxValueBytes,
		},
		Logger: LoggerConfig{Level: "INFO"},
	}
}

// Load reads a YAML config from path. A missing file is not an error:
// the default config is returned instead.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// StoreConfig converts the engine section into the store's config.
func (e EngineConfig) StoreConfig() store.Config {
	return store.Config{
		ShardCount:      e.Shards,
		InitialCapacity: e.InitialCapacity,
		SweepInterval:   time.Duration(e.SweepIntervalMs) * time.Millisecond,
		HashSeed:        e.HashSeed,
		MaxKeyBytes:     e.MaxKeyBytes,
		MaxValueBytes:   e.MaxValueBytes,
	}
}
