package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration.
type Config struct {
	Listen    string       `yaml:"listen"`
	DBPath    string       `yaml:"db_path"`
	UploadDir string       `yaml:"upload_dir"`
	LogLevel  string       `yaml:"log_level"`
	MaxFileMB int          `yaml:"max_file_mb"`
	MaxPages  int          `yaml:"max_pages"`
	Worker    WorkerConfig `yaml:"worker"`
}

// WorkerConfig tunes the comparison worker.
type WorkerConfig struct {
	PollIntervalMS int `yaml:"poll_interval_ms"`
	Concurrency    int `yaml:"concurrency"`
	MaxRetries     int `yaml:"max_retries"`
	RetryDelayS    int `yaml:"retry_delay_s"`
	JobTimeoutS    int `yaml:"job_timeout_s"`
	VisibilityS    int `yaml:"visibility_s"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:    ":8080",
		DBPath:    "data/jobs.db",
		UploadDir: "data/uploads",
		LogLevel:  "info",
		MaxFileMB: 50,
		MaxPages:  500,
		Worker: WorkerConfig{
			PollIntervalMS: 1000,
			Concurrency:    4,
			MaxRetries:     3,
			RetryDelayS:    60,
			JobTimeoutS:    600,
			VisibilityS:    600,
		},
	}
}

// LoadConfig reads a YAML config file merged over DefaultConfig, then applies
// environment overrides. path may be empty: defaults plus environment only.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// applyEnv lets deployment-level settings override the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Listen = ":" + v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		c.UploadDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("upload_dir is required")
	}
	if c.MaxFileMB <= 0 {
		return fmt.Errorf("max_file_mb must be > 0")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max_pages must be > 0")
	}
	if c.Worker.Concurrency < 0 {
		return fmt.Errorf("worker.concurrency must be >= 0")
	}
	return nil
}

// MaxFileBytes returns the per-document size cap in bytes.
func (c *Config) MaxFileBytes() int64 { return int64(c.MaxFileMB) * 1024 * 1024 }

// PollInterval returns the worker poll interval as a duration.
func (w WorkerConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMS) * time.Millisecond
}

// RetryDelay returns the retry backoff as a duration.
func (w WorkerConfig) RetryDelay() time.Duration {
	return time.Duration(w.RetryDelayS) * time.Second
}

// JobTimeout returns the per-execution wall-clock budget as a duration.
func (w WorkerConfig) JobTimeout() time.Duration {
	return time.Duration(w.JobTimeoutS) * time.Second
}

// Visibility returns the claim visibility window as a duration.
func (w WorkerConfig) Visibility() time.Duration {
	return time.Duration(w.VisibilityS) * time.Second
}
