package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultHost is the metrics API the scraper talks to.
const DefaultHost = "https://api.glassnode.com"

// Config defines configuration for the scrub CLI.
type Config struct {
	Host    string `yaml:"host"`
	APIKey  string `yaml:"api_key"`
	Output  string `yaml:"output"`
	Workers int    `yaml:"workers"`

	BatchSize     int           `yaml:"batch_size"`
	BatchInterval time.Duration `yaml:"batch_interval"`
	JobDelay      time.Duration `yaml:"job_delay"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimit      float64       `yaml:"rate_limit"`
	Retry          RetryConfig   `yaml:"retry"`

	Resolutions []string `yaml:"resolutions"`

	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	LogFile     string `yaml:"log_file"`
	Progress    bool   `yaml:"progress"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// RetryConfig defines how failed jobs are paced and retried.
// Only timeouts are ever retried.
type RetryConfig struct {
	Delay             time.Duration `yaml:"delay"`
	ErrorDelay        time.Duration `yaml:"error_delay"`
	MaxTimeoutRetries int           `yaml:"max_timeout_retries"`
}

// DefaultResolutions is the preference order used to pick one resolution
// per endpoint, finest first.
func DefaultResolutions() []string {
	return []string{"10m", "1h", "24h", "1w", "1month"}
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Host:           DefaultHost,
		Output:         "./data",
		Workers:        18,
		BatchSize:      8,
		BatchInterval:  500 * time.Millisecond,
		JobDelay:       300 * time.Millisecond,
		RequestTimeout: 5 * time.Minute,
		Retry: RetryConfig{
			Delay:      time.Second,
			ErrorDelay: time.Second,
		},
		Resolutions: DefaultResolutions(),
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// fileConfig is used for file unmarshaling with string durations.
type fileConfig struct {
	Host           string          `yaml:"host" toml:"host"`
	APIKey         string          `yaml:"api_key" toml:"api_key"`
	Output         string          `yaml:"output" toml:"output"`
	Workers        int             `yaml:"workers" toml:"workers"`
	BatchSize      int             `yaml:"batch_size" toml:"batch_size"`
	BatchInterval  string          `yaml:"batch_interval" toml:"batch_interval"`
	JobDelay       string          `yaml:"job_delay" toml:"job_delay"`
	RequestTimeout string          `yaml:"request_timeout" toml:"request_timeout"`
	RateLimit      float64         `yaml:"rate_limit" toml:"rate_limit"`
	Retry          fileRetryConfig `yaml:"retry" toml:"retry"`
	Resolutions    []string        `yaml:"resolutions" toml:"resolutions"`
	LogLevel       string          `yaml:"log_level" toml:"log_level"`
	LogFormat      string          `yaml:"log_format" toml:"log_format"`
	LogFile        string          `yaml:"log_file" toml:"log_file"`
	Progress       bool            `yaml:"progress" toml:"progress"`
	MetricsAddr    string          `yaml:"metrics_addr" toml:"metrics_addr"`
}

type fileRetryConfig struct {
	Delay             string `yaml:"delay" toml:"delay"`
	ErrorDelay        string `yaml:"error_delay" toml:"error_delay"`
	MaxTimeoutRetries int    `yaml:"max_timeout_retries" toml:"max_timeout_retries"`
}

// LoadFromFile loads configuration from a YAML or TOML file.
// TOML is selected by a .toml extension; anything else is parsed as YAML.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &fc)
	} else {
		err = yaml.Unmarshal(data, &fc)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if fc.Host != "" {
		cfg.Host = fc.Host
	}
	if fc.APIKey != "" {
		cfg.APIKey = fc.APIKey
	}
	if fc.Output != "" {
		cfg.Output = fc.Output
	}
	if fc.Workers != 0 {
		cfg.Workers = fc.Workers
	}
	if fc.BatchSize != 0 {
		cfg.BatchSize = fc.BatchSize
	}
	if fc.RateLimit != 0 {
		cfg.RateLimit = fc.RateLimit
	}
	if len(fc.Resolutions) > 0 {
		cfg.Resolutions = fc.Resolutions
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.LogFormat != "" {
		cfg.LogFormat = fc.LogFormat
	}
	if fc.LogFile != "" {
		cfg.LogFile = fc.LogFile
	}
	cfg.Progress = fc.Progress
	if fc.MetricsAddr != "" {
		cfg.MetricsAddr = fc.MetricsAddr
	}
	if fc.Retry.MaxTimeoutRetries != 0 {
		cfg.Retry.MaxTimeoutRetries = fc.Retry.MaxTimeoutRetries
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"batch_interval", fc.BatchInterval, &cfg.BatchInterval},
		{"job_delay", fc.JobDelay, &cfg.JobDelay},
		{"request_timeout", fc.RequestTimeout, &cfg.RequestTimeout},
		{"retry.delay", fc.Retry.Delay, &cfg.Retry.Delay},
		{"retry.error_delay", fc.Retry.ErrorDelay, &cfg.Retry.ErrorDelay},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = v
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the SCRUB_ prefix. The API key is also read
// from GLASSNODE_API_KEY, with SCRUB_API_KEY taking precedence.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("GLASSNODE_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("SCRUB_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("SCRUB_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("SCRUB_OUTPUT"); v != "" {
		c.Output = v
	}
	if v := os.Getenv("SCRUB_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SCRUB_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("SCRUB_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SCRUB_BATCH_SIZE: %w", err)
		}
		c.BatchSize = n
	}
	if v := os.Getenv("SCRUB_BATCH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse SCRUB_BATCH_INTERVAL: %w", err)
		}
		c.BatchInterval = d
	}
	if v := os.Getenv("SCRUB_JOB_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse SCRUB_JOB_DELAY: %w", err)
		}
		c.JobDelay = d
	}
	if v := os.Getenv("SCRUB_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse SCRUB_REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	if v := os.Getenv("SCRUB_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse SCRUB_RATE_LIMIT: %w", err)
		}
		c.RateLimit = f
	}
	if v := os.Getenv("SCRUB_RETRY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse SCRUB_RETRY_DELAY: %w", err)
		}
		c.Retry.Delay = d
	}
	if v := os.Getenv("SCRUB_MAX_TIMEOUT_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SCRUB_MAX_TIMEOUT_RETRIES: %w", err)
		}
		c.Retry.MaxTimeoutRetries = n
	}
	if v := os.Getenv("SCRUB_RESOLUTIONS"); v != "" {
		c.Resolutions = splitList(v)
	}
	if v := os.Getenv("SCRUB_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SCRUB_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("SCRUB_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("SCRUB_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("config: host is required")
	}
	if c.APIKey == "" {
		return errors.New("config: api key is required")
	}
	if c.Output == "" {
		return errors.New("config: output is required")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.BatchSize <= 0 {
		return errors.New("config: batch_size must be positive")
	}
	if c.BatchInterval < 0 || c.JobDelay < 0 || c.Retry.Delay < 0 || c.Retry.ErrorDelay < 0 {
		return errors.New("config: delays must not be negative")
	}
	if c.RateLimit < 0 {
		return errors.New("config: rate_limit must not be negative")
	}
	if c.Retry.MaxTimeoutRetries < 0 {
		return errors.New("config: retry.max_timeout_retries must not be negative")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Host != "" {
		c.Host = override.Host
	}
	if override.APIKey != "" {
		c.APIKey = override.APIKey
	}
	if override.Output != "" {
		c.Output = override.Output
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.BatchSize != 0 {
		c.BatchSize = override.BatchSize
	}
	if override.BatchInterval != 0 {
		c.BatchInterval = override.BatchInterval
	}
	if override.JobDelay != 0 {
		c.JobDelay = override.JobDelay
	}
	if override.RequestTimeout != 0 {
		c.RequestTimeout = override.RequestTimeout
	}
	if override.RateLimit != 0 {
		c.RateLimit = override.RateLimit
	}
	if override.Retry.Delay != 0 {
		c.Retry.Delay = override.Retry.Delay
	}
	if override.Retry.ErrorDelay != 0 {
		c.Retry.ErrorDelay = override.Retry.ErrorDelay
	}
	if override.Retry.MaxTimeoutRetries != 0 {
		c.Retry.MaxTimeoutRetries = override.Retry.MaxTimeoutRetries
	}
	if len(override.Resolutions) > 0 {
		c.Resolutions = override.Resolutions
	}
	if override.LogLevel != "" {
		c.LogLevel = override.LogLevel
	}
	if override.LogFormat != "" {
		c.LogFormat = override.LogFormat
	}
	if override.LogFile != "" {
		c.LogFile = override.LogFile
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.MetricsAddr != "" {
		c.MetricsAddr = override.MetricsAddr
	}
	return c
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
