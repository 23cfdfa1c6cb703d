// Package config handles optional tool-level configuration for crategate.
// The policy document itself is separate and always JSON; this file only
// tunes how the tool runs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root tool configuration.
type Config struct {
	LogLevel    string      `yaml:"log_level,omitempty"`
	Workspace   string      `yaml:"workspace,omitempty"`
	RulesDir    string      `yaml:"rules_dir,omitempty"`
	HistoryPath string      `yaml:"history_path,omitempty"`
	Concurrency int         `yaml:"concurrency,omitempty"`
	Watch       WatchConfig `yaml:"watch,omitempty"`
	OTEL        OTELConfig  `yaml:"otel,omitempty"`
}

// WatchConfig tunes daemon mode.
type WatchConfig struct {
	IntervalStr string `yaml:"interval,omitempty"`
	Interval    time.Duration `yaml:"-"`
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// OTELConfig holds OpenTelemetry export settings for watch mode.
type OTELConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	Insecure bool   `yaml:"insecure,omitempty"`
	Traces   bool   `yaml:"traces,omitempty"`
	Metrics  bool   `yaml:"metrics,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Watch: WatchConfig{
			Interval:    15 * time.Minute,
			MetricsAddr: ":9090",
		},
	}
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate normalizes and checks the configuration.
func (c *Config) Validate() error {
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	if c.Watch.IntervalStr != "" {
		interval, err := time.ParseDuration(c.Watch.IntervalStr)
		if err != nil {
			return fmt.Errorf("invalid watch interval %q: %w", c.Watch.IntervalStr, err)
		}
		if interval <= 0 {
			return fmt.Errorf("watch interval must be positive")
		}
		c.Watch.Interval = interval
	}
	if c.Watch.MetricsAddr == "" {
		c.Watch.MetricsAddr = ":9090"
	}
	return nil
}
