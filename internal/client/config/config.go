// Package config loads settings for the trackkeeper CLI: defaults, then an
// optional JSON file (-c/-config), then TRACKKEEPER_CLI_* environment
// variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Config holds runtime settings for the CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the auth gRPC endpoint.
//   - SessionDBPath: SQLite file that keeps the current session between runs.
//   - RequestTimeout: deadline applied to every call to the server.
//   - LogLevel: level of the diagnostic log written to stderr.
type Config struct {
	ServerEndpointAddr string        `env:"SERVER_ADDR"`
	SessionDBPath      string        `env:"SESSION_DB"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT"`
	LogLevel           string        `env:"LOG_LEVEL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.SessionDBPath = "session.db"
	c.RequestTimeout = 10 * time.Second
	c.LogLevel = "warn"
}

// Validate rejects settings the CLI cannot run with.
func (c *Config) Validate() error {
	if c.ServerEndpointAddr == "" {
		return errors.New("server address must not be empty")
	}
	if c.SessionDBPath == "" {
		return errors.New("session database path must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	return nil
}

// LoadConfig constructs a Config from os.Args. Later sources take precedence
// over earlier ones.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load is LoadConfig over an explicit argument list.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, fmt.Errorf("json config: %w", err)
	}
	if err := parseEnv(cfg); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
