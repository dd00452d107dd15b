package server

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the HTTP API settings.
type Config struct {
	Addr              string        `koanf:"addr" yaml:"addr" json:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" yaml:"read_header_timeout" json:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxBodyBytes      int64         `koanf:"max_body_bytes" yaml:"max_body_bytes" json:"max_body_bytes"`
}

// Default server settings.
const (
	DefaultAddr              = ":8080"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second
	DefaultMaxBodyBytes      = 1 << 20
)

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{
		Addr:              DefaultAddr,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		ShutdownTimeout:   DefaultShutdownTimeout,
		MaxBodyBytes:      DefaultMaxBodyBytes,
	}
}

// Validate checks the server settings.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("addr is required")
	case c.ReadHeaderTimeout <= 0:
		return fmt.Errorf("read_header_timeout must be positive")
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("shutdown_timeout must be positive")
	case c.MaxBodyBytes <= 0:
		return fmt.Errorf("max_body_bytes must be positive")
	}
	return nil
}
