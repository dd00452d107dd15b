// Package config loads tsqlfmt configuration.
//
// Values are merged from four layers, later layers winning:
//
//  1. built-in defaults
//  2. a YAML config file (--config, or .tsqlfmt.yaml found upward from the
//     working directory)
//  3. TSQLFMT_* environment variables, with "__" separating nested keys
//     (TSQLFMT_FORMAT__MAX_LINE_WIDTH=120)
//  4. command-line flags that were explicitly set
package config

import (
	"github.com/leapstack-labs/tsqlfmt/internal/server"
	"github.com/leapstack-labs/tsqlfmt/pkg/format"
)

// Config holds all CLI and server configuration.
type Config struct {
	LogLevel    string         `koanf:"log_level" yaml:"log_level" json:"log_level"`
	Verbose     bool           `koanf:"verbose" yaml:"-" json:"-"`
	Concurrency int            `koanf:"concurrency" yaml:"concurrency" json:"concurrency"`
	Format      format.Options `koanf:"format" yaml:"format" json:"format"`
	Server      server.Config  `koanf:"server" yaml:"server" json:"server"`
}

// DefaultLogLevel is used when no log level is configured.
const DefaultLogLevel = "info"

// ConfigFileNames are searched for, in order, in each directory.
var ConfigFileNames = []string{".tsqlfmt.yaml", ".tsqlfmt.yml", "tsqlfmt.yaml"}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Format:   format.DefaultOptions(),
		Server:   server.DefaultConfig(),
	}
}
