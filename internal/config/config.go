package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.wascrape/config.toml.
type Config struct {
	DefaultProfile string  `toml:"default_profile"`
	Browser        Browser `toml:"browser"`
	Scrape         Scrape  `toml:"scrape"`
	Queue          Queue   `toml:"queue"`
	Writer         Writer  `toml:"writer"`
}

// Browser controls the chromedp-driven browser session.
type Browser struct {
	Headless          bool `toml:"headless"`
	NavTimeoutSeconds int  `toml:"nav_timeout_seconds"`
}

// Scrape controls the chat walk.
type Scrape struct {
	MaxChats            int `toml:"max_chats"`
	Retry               int `toml:"retry"`
	BackoffBaseMillis   int `toml:"backoff_base_ms"`
	BackoffCapMillis    int `toml:"backoff_cap_ms"`
	WalkIntervalSeconds int `toml:"walk_interval_seconds"`
}

// Queue controls the persistence queue.
type Queue struct {
	HighWater int `toml:"high_water"`
}

// Writer controls the batch writer.
type Writer struct {
	BatchSize           int `toml:"batch_size"`
	FlushIntervalMillis int `toml:"flush_interval_ms"`
}

// Default returns a config with every tunable set to its default.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		Browser: Browser{
			Headless:          true,
			NavTimeoutSeconds: 60,
		},
		Scrape: Scrape{
			MaxChats:            20,
			Retry:               3,
			BackoffBaseMillis:   500,
			BackoffCapMillis:    8000,
			WalkIntervalSeconds: 300,
		},
		Queue: Queue{
			HighWater: 1024,
		},
		Writer: Writer{
			BatchSize:           100,
			FlushIntervalMillis: 2000,
		},
	}
}

// Load reads config from the given path, overlaying defaults.
// Returns an error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault reads config from path, falling back to defaults when
// the file does not exist yet.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		return Default()
	}
	return cfg
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// BackoffBase returns the backoff base as a duration.
func (s Scrape) BackoffBase() time.Duration {
	return time.Duration(s.BackoffBaseMillis) * time.Millisecond
}

// BackoffCap returns the backoff cap as a duration.
func (s Scrape) BackoffCap() time.Duration {
	return time.Duration(s.BackoffCapMillis) * time.Millisecond
}

// NavTimeout returns the browser navigation timeout as a duration.
func (b Browser) NavTimeout() time.Duration {
	return time.Duration(b.NavTimeoutSeconds) * time.Second
}

// FlushInterval returns the writer flush interval as a duration.
func (w Writer) FlushInterval() time.Duration {
	return time.Duration(w.FlushIntervalMillis) * time.Millisecond
}

// WalkInterval returns the pause between walk passes as a duration.
func (s Scrape) WalkInterval() time.Duration {
	return time.Duration(s.WalkIntervalSeconds) * time.Second
}
