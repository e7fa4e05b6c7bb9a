// Package config defines configuration structures for the scrub CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (SCRUB_ prefix, plus GLASSNODE_API_KEY)
//   - YAML or TOML configuration file
//
// A Config is built once at startup and passed by value to every component
// that needs it; nothing reads configuration from package state.
//
// # Structure
//
//	type Config struct {
//	    Host, APIKey, Output string
//	    Workers              int
//	    BatchSize            int
//	    BatchInterval        time.Duration
//	    JobDelay             time.Duration
//	    RequestTimeout       time.Duration
//	    RateLimit            float64
//	    Retry                RetryConfig
//	    Resolutions          []string
//	    ...
//	}
//
//	type RetryConfig struct {
//	    Delay             time.Duration
//	    ErrorDelay        time.Duration
//	    MaxTimeoutRetries int
//	}
package config
