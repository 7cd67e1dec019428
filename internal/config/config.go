package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/khautala/swingmaster/internal/signals"
)

// Config is the engine configuration. CLI flags override file values,
// file values override defaults.
type Config struct {
	// DB is the row-store DSN: a SQLite file path, or a postgres:// URL.
	DB string `yaml:"db"`
	// OHLCTable names the market-data table.
	OHLCTable string `yaml:"ohlc_table"`

	EngineVersion string `yaml:"engine_version"`
	PolicyVersion string `yaml:"policy_version"`
	SignalVersion string `yaml:"signal_version"`

	// MetricsAddr, when set, serves prometheus metrics (e.g. ":9184").
	MetricsAddr string `yaml:"metrics_addr"`

	Provider signals.Config `yaml:"provider"`
}

// Default returns the production configuration.
func Default() Config {
	return Config{
		DB:            "swingmaster.db",
		OHLCTable:     "ohlc_daily",
		EngineVersion: "dev",
		PolicyVersion: "v3",
		SignalVersion: "v3",
		Provider:      signals.DefaultConfig(),
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Provider.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
