// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate for an unusable configuration
var ErrInvalid = errors.New("invalid config")

// Config holds the tunables of an editing session
type Config struct {
	History   HistoryConfig   `yaml:"history"`
	AI        AIConfig        `yaml:"ai"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Journal   JournalConfig   `yaml:"journal"`
	LogLevel  string          `yaml:"log_level"`
}

type HistoryConfig struct {
	MaxSize int `yaml:"max_size"`
}

type AIConfig struct {
	MaxRecords int `yaml:"max_records"`
}

// OptimizerConfig controls snapshot strategy. CompressionLevel 0 disables
// packing of cold snapshots.
type OptimizerConfig struct {
	FullEvery        int      `yaml:"full_every"`
	MaxPartialPaths  int      `yaml:"max_partial_paths"`
	SharedKeys       []string `yaml:"shared_keys"`
	KeepRecent       int      `yaml:"keep_recent"`
	HotWindow        int      `yaml:"hot_window"`
	CompressionLevel int      `yaml:"compression_level"`
}

// JournalConfig points at the audit database. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		History: HistoryConfig{MaxSize: 50},
		AI:      AIConfig{MaxRecords: 100},
		Optimizer: OptimizerConfig{
			FullEvery:        10,
			MaxPartialPaths:  32,
			SharedKeys:       []string{"characters"},
			KeepRecent:       20,
			HotWindow:        10,
			CompressionLevel: 3,
		},
		LogLevel: "info",
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse is Load for YAML already in memory
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks limits and the log level
func (c *Config) Validate() error {
	switch {
	case c.History.MaxSize <= 0:
		return fmt.Errorf("%w: history.max_size must be positive", ErrInvalid)
	case c.AI.MaxRecords <= 0:
		return fmt.Errorf("%w: ai.max_records must be positive", ErrInvalid)
	case c.Optimizer.FullEvery <= 0:
		return fmt.Errorf("%w: optimizer.full_every must be positive", ErrInvalid)
	case c.Optimizer.MaxPartialPaths <= 0:
		return fmt.Errorf("%w: optimizer.max_partial_paths must be positive", ErrInvalid)
	case c.Optimizer.KeepRecent < 0:
		return fmt.Errorf("%w: optimizer.keep_recent must not be negative", ErrInvalid)
	case c.Optimizer.HotWindow < 0:
		return fmt.Errorf("%w: optimizer.hot_window must not be negative", ErrInvalid)
	case c.Optimizer.CompressionLevel < 0 || c.Optimizer.CompressionLevel > 22:
		return fmt.Errorf("%w: optimizer.compression_level must be within 0..22", ErrInvalid)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalid, c.LogLevel)
	}
	return nil
}

// Clone returns a deep copy
func (c *Config) Clone() *Config {
	out := *c
	out.Optimizer.SharedKeys = append([]string(nil), c.Optimizer.SharedKeys...)
	return &out
}

// SlogLevel maps LogLevel onto slog, defaulting to info
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
