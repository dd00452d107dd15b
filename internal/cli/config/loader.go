package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/leapstack-labs/tsqlfmt/pkg/format"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "TSQLFMT_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// Context keys shared by the cli and commands packages.
type (
	loggerKey struct{}
	configKey struct{}
)

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
)

// configIn returns the first config file present in dir.
func configIn(dir string) string {
	for _, name := range ConfigFileNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// findConfigFileUpward searches upward from startDir for a config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findConfigFileUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if path := configIn(dir); path != "" {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// findConfigFile finds the config file to use.
// Priority: explicit path > nearest config file at or above the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return findConfigFileUpward(cwd)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
}

// LoadConfig loads configuration from defaults, the config file, environment
// variables and flags. Precedence (highest to lowest): flags > env vars >
// config file > defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	ResetConfig()

	// 1. Defaults
	defaults, err := toMap(Defaults())
	if err != nil {
		return nil, fmt.Errorf("failed to build defaults: %w", err)
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Each user layer resolves its own shorthands before it is merged, so a
	// legacy key in a higher layer still beats the modern key in a lower one.
	user := koanf.New(".")

	// 2. Config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := loadLayer(user, file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment: TSQLFMT_FORMAT__MAX_LINE_WIDTH -> format.max_line_width
	if err := loadLayer(user, env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set
	if flags != nil {
		keys := flagKeys(defaults)
		provider := posflag.ProviderWithFlag(flags, ".", nil, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := keys(f.Name)
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := loadLayer(user, provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	if err := k.Merge(user); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	var cfg Config
	if err := unmarshal(k, &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// flagKeys maps a flag name to its config key. Root and server settings
// have fixed names; any other flag whose snake_case name is a formatting
// option lands under "format.".
func flagKeys(defaults map[string]interface{}) func(string) (string, bool) {
	formatKeys := map[string]bool{"indent": true, "uppercase_keywords": true}
	if m, ok := defaults["format"].(map[string]interface{}); ok {
		for key := range m {
			formatKeys[key] = true
		}
	}
	fixed := map[string]string{
		"log_level":           "log_level",
		"verbose":             "verbose",
		"concurrency":         "concurrency",
		"addr":                "server.addr",
		"read_header_timeout": "server.read_header_timeout",
		"shutdown_timeout":    "server.shutdown_timeout",
		"max_body_bytes":      "server.max_body_bytes",
	}

	return func(name string) (string, bool) {
		name = strings.ReplaceAll(name, "-", "_")
		if key, ok := fixed[name]; ok {
			return key, true
		}
		if formatKeys[name] {
			return "format." + name, true
		}
		return "", false
	}
}

// loadLayer loads one configuration source, resolves its shorthands and
// merges it over dst.
func loadLayer(dst *koanf.Koanf, p koanf.Provider, pa koanf.Parser) error {
	layer := koanf.New(".")
	if err := layer.Load(p, pa); err != nil {
		return err
	}
	if err := resolveShorthands(layer); err != nil {
		return err
	}
	return dst.Merge(layer)
}

// resolveShorthands turns "indent" and the legacy "uppercase_keywords"
// into the options they stand for. Within one layer the explicit option
// wins over its shorthand.
func resolveShorthands(u *koanf.Koanf) error {
	if u.Exists("format.indent") {
		unit, err := format.IndentFromSpec(u.String("format.indent"))
		if err != nil {
			return fmt.Errorf("format.indent: %w", err)
		}
		if err := u.Set("format.indent_unit", unit); err != nil {
			return err
		}
		u.Delete("format.indent")
	}

	if u.Exists("format.uppercase_keywords") {
		if !u.Exists("format.keyword_casing") {
			casing := format.CasingLower
			if u.Bool("format.uppercase_keywords") {
				casing = format.CasingUpper
			}
			if err := u.Set("format.keyword_casing", casing.String()); err != nil {
				return err
			}
		}
		u.Delete("format.uppercase_keywords")
	}
	return nil
}

func unmarshal(ko *koanf.Koanf, cfg *Config) error {
	return ko.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           cfg,
			WeaklyTypedInput: true,
			TagName:          "koanf",
		},
	})
}

// toMap converts a Config to the nested map shape koanf works with, using
// the YAML names of every field.
func toMap(cfg Config) (map[string]interface{}, error) {
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := yamlv3.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yamlv3.Marshal(cfg)
}

// ErrConfigExists is returned by WriteDefault when the target file exists.
var ErrConfigExists = errors.New("config file already exists")

// WriteDefault writes the default configuration to path. An existing file
// is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}
	cfg := Defaults()
	data, err := Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	header := "# tsqlfmt configuration\n# Environment variables (TSQLFMT_FORMAT__MAX_LINE_WIDTH=120) and flags override these values.\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// NewLogger creates a text logger writing to w at the given level.
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the config from the command context, or the defaults
// when none was stored.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	cfg := Defaults()
	return &cfg
}
