package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Workers != 18 {
		t.Errorf("expected default workers 18, got %d", cfg.Workers)
	}
	if cfg.BatchSize != 8 {
		t.Errorf("expected default batch size 8, got %d", cfg.BatchSize)
	}
	if cfg.BatchInterval != 500*time.Millisecond {
		t.Errorf("expected default batch interval 500ms, got %v", cfg.BatchInterval)
	}
	if cfg.JobDelay != 300*time.Millisecond {
		t.Errorf("expected default job delay 300ms, got %v", cfg.JobDelay)
	}
	if cfg.Retry.Delay != time.Second {
		t.Errorf("expected default retry delay 1s, got %v", cfg.Retry.Delay)
	}
	if cfg.Retry.MaxTimeoutRetries != 0 {
		t.Errorf("expected unbounded timeout retries by default, got %d", cfg.Retry.MaxTimeoutRetries)
	}
	if cfg.Output != "./data" {
		t.Errorf("expected default output ./data, got %s", cfg.Output)
	}
	if !reflect.DeepEqual(cfg.Resolutions, []string{"10m", "1h", "24h", "1w", "1month"}) {
		t.Errorf("unexpected default resolutions %v", cfg.Resolutions)
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
host: https://api.example.com
output: s3://bucket/prefix
workers: 4
batch_size: 16
batch_interval: 2s
job_delay: 100ms
progress: true
resolutions: [1h, 24h]
retry:
  delay: 3s
  max_timeout_retries: 7
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Host != "https://api.example.com" {
		t.Errorf("expected host override, got %s", cfg.Host)
	}
	if cfg.Output != "s3://bucket/prefix" {
		t.Errorf("expected output override, got %s", cfg.Output)
	}
	if cfg.Workers != 4 {
		t.Errorf("expected workers 4, got %d", cfg.Workers)
	}
	if cfg.BatchSize != 16 {
		t.Errorf("expected batch size 16, got %d", cfg.BatchSize)
	}
	if cfg.BatchInterval != 2*time.Second {
		t.Errorf("expected batch interval 2s, got %v", cfg.BatchInterval)
	}
	if cfg.JobDelay != 100*time.Millisecond {
		t.Errorf("expected job delay 100ms, got %v", cfg.JobDelay)
	}
	if !cfg.Progress {
		t.Error("expected progress true")
	}
	if !reflect.DeepEqual(cfg.Resolutions, []string{"1h", "24h"}) {
		t.Errorf("expected resolutions [1h 24h], got %v", cfg.Resolutions)
	}
	if cfg.Retry.Delay != 3*time.Second {
		t.Errorf("expected retry delay 3s, got %v", cfg.Retry.Delay)
	}
	if cfg.Retry.ErrorDelay != time.Second {
		t.Errorf("expected default error delay preserved, got %v", cfg.Retry.ErrorDelay)
	}
	if cfg.Retry.MaxTimeoutRetries != 7 {
		t.Errorf("expected max timeout retries 7, got %d", cfg.Retry.MaxTimeoutRetries)
	}
}

func TestLoadFromTOML(t *testing.T) {
	tomlContent := `
workers = 6
job_delay = "1s"
log_format = "json"

[retry]
error_delay = "250ms"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "scrub.toml")
	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Workers != 6 {
		t.Errorf("expected workers 6, got %d", cfg.Workers)
	}
	if cfg.JobDelay != time.Second {
		t.Errorf("expected job delay 1s, got %v", cfg.JobDelay)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("expected log format json, got %s", cfg.LogFormat)
	}
	if cfg.Retry.ErrorDelay != 250*time.Millisecond {
		t.Errorf("expected error delay 250ms, got %v", cfg.Retry.ErrorDelay)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GLASSNODE_API_KEY", "from-glassnode")
	t.Setenv("SCRUB_WORKERS", "64")
	t.Setenv("SCRUB_BATCH_INTERVAL", "1s")
	t.Setenv("SCRUB_RATE_LIMIT", "2.5")
	t.Setenv("SCRUB_RESOLUTIONS", "24h, 1w")
	t.Setenv("SCRUB_MAX_TIMEOUT_RETRIES", "3")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.APIKey != "from-glassnode" {
		t.Errorf("expected api key from GLASSNODE_API_KEY, got %q", cfg.APIKey)
	}
	if cfg.Workers != 64 {
		t.Errorf("expected workers 64, got %d", cfg.Workers)
	}
	if cfg.BatchInterval != time.Second {
		t.Errorf("expected batch interval 1s, got %v", cfg.BatchInterval)
	}
	if cfg.RateLimit != 2.5 {
		t.Errorf("expected rate limit 2.5, got %v", cfg.RateLimit)
	}
	if !reflect.DeepEqual(cfg.Resolutions, []string{"24h", "1w"}) {
		t.Errorf("expected resolutions [24h 1w], got %v", cfg.Resolutions)
	}
	if cfg.Retry.MaxTimeoutRetries != 3 {
		t.Errorf("expected max timeout retries 3, got %d", cfg.Retry.MaxTimeoutRetries)
	}
}

func TestLoadFromEnvScrubKeyWins(t *testing.T) {
	t.Setenv("GLASSNODE_API_KEY", "a")
	t.Setenv("SCRUB_API_KEY", "b")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.APIKey != "b" {
		t.Errorf("expected SCRUB_API_KEY to win, got %q", cfg.APIKey)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("SCRUB_WORKERS", "many")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("expected error for non-numeric SCRUB_WORKERS")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.APIKey = "key"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing host", mutate: func(c *Config) { c.Host = "" }, wantErr: true},
		{name: "missing api key", mutate: func(c *Config) { c.APIKey = "" }, wantErr: true},
		{name: "missing output", mutate: func(c *Config) { c.Output = "" }, wantErr: true},
		{name: "invalid workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: true},
		{name: "invalid batch size", mutate: func(c *Config) { c.BatchSize = -1 }, wantErr: true},
		{name: "negative delay", mutate: func(c *Config) { c.JobDelay = -time.Second }, wantErr: true},
		{name: "negative rate limit", mutate: func(c *Config) { c.RateLimit = -1 }, wantErr: true},
		{name: "zero delays allowed", mutate: func(c *Config) {
			c.BatchInterval, c.JobDelay, c.Retry.Delay, c.Retry.ErrorDelay = 0, 0, 0, 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	base.APIKey = "key"
	base.Output = "/tmp/out"

	override := Config{
		Workers: 32,
		Retry:   RetryConfig{MaxTimeoutRetries: 2},
	}

	merged := base.Merge(override)

	if merged.APIKey != "key" {
		t.Errorf("expected APIKey preserved, got %s", merged.APIKey)
	}
	if merged.Output != "/tmp/out" {
		t.Errorf("expected Output preserved, got %s", merged.Output)
	}
	if merged.BatchSize != 8 {
		t.Errorf("expected BatchSize preserved, got %d", merged.BatchSize)
	}
	if merged.Retry.Delay != time.Second {
		t.Errorf("expected Retry.Delay preserved, got %v", merged.Retry.Delay)
	}

	if merged.Workers != 32 {
		t.Errorf("expected Workers overridden to 32, got %d", merged.Workers)
	}
	if merged.Retry.MaxTimeoutRetries != 2 {
		t.Errorf("expected MaxTimeoutRetries overridden to 2, got %d", merged.Retry.MaxTimeoutRetries)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("job_delay: soon\n"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid duration")
	}
}
