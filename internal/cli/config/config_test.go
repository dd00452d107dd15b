package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/tsqlfmt/internal/server"
	"github.com/leapstack-labs/tsqlfmt/pkg/format"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, Defaults(), *cfg)
	assert.Empty(t, GetConfigFileUsed())
}

func TestLoadConfig_FileSearchedUpward(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".tsqlfmt.yaml"), `
log_level: warn
format:
  max_line_width: 100
  keyword_casing: lower
  trailing_commas: true
server:
  addr: ":9090"
  shutdown_timeout: 30s
`)
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	t.Chdir(sub)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 100, cfg.Format.MaxLineWidth)
	assert.Equal(t, format.CasingLower, cfg.Format.KeywordCasing)
	assert.True(t, cfg.Format.TrailingCommas)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

	// Untouched values keep their defaults.
	assert.Equal(t, "\t", cfg.Format.IndentUnit)
	assert.Equal(t, server.DefaultReadHeaderTimeout, cfg.Server.ReadHeaderTimeout)

	resolved, err := filepath.EvalSymlinks(GetConfigFileUsed())
	require.NoError(t, err)
	expected, err := filepath.EvalSymlinks(filepath.Join(root, ".tsqlfmt.yaml"))
	require.NoError(t, err)
	assert.Equal(t, expected, resolved)
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, "format:\n  indent: 2\n  datatype_casing: capitalize\n")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "  ", cfg.Format.IndentUnit)
	assert.Equal(t, format.CasingCapitalize, cfg.Format.DataTypeCasing)
	assert.Equal(t, path, GetConfigFileUsed())
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := LoadConfig("does-not-exist.yaml", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadConfig_LegacyUppercaseKeywords(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected format.Casing
	}{
		{
			name:     "false means lower",
			content:  "format:\n  uppercase_keywords: false\n",
			expected: format.CasingLower,
		},
		{
			name:     "true means upper",
			content:  "format:\n  uppercase_keywords: true\n",
			expected: format.CasingUpper,
		},
		{
			name:     "keyword_casing wins",
			content:  "format:\n  uppercase_keywords: false\n  keyword_casing: capitalize\n",
			expected: format.CasingCapitalize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			writeFile(t, filepath.Join(dir, ".tsqlfmt.yml"), tt.content)

			cfg, err := LoadConfig("", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.Format.KeywordCasing)
		})
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, filepath.Join(dir, "tsqlfmt.yaml"), `
format:
  max_line_width: 100
  expand_in_lists_threshold: 5
  spaces_per_tab: 2
`)
	t.Setenv("TSQLFMT_FORMAT__MAX_LINE_WIDTH", "120")
	t.Setenv("TSQLFMT_FORMAT__EXPAND_IN_LISTS_THRESHOLD", "7")
	t.Setenv("TSQLFMT_LOG_LEVEL", "error")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("max-line-width", 999, "")
	flags.Int("expand-in-lists-threshold", 3, "")
	flags.Bool("write", false, "")
	flags.String("keyword-casing", "upper", "")
	require.NoError(t, flags.Parse([]string{"--max-line-width=80", "--write", "--keyword-casing=lower"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, 80, cfg.Format.MaxLineWidth, "flag beats env and file")
	assert.Equal(t, 7, cfg.Format.ExpandInListsThreshold, "env beats file, unset flag ignored")
	assert.Equal(t, 2, cfg.Format.SpacesPerTab, "file beats defaults")
	assert.Equal(t, format.CasingLower, cfg.Format.KeywordCasing)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadConfig_ShorthandsPerLayer(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		args       []string
		wantCasing format.Casing
		wantIndent string
	}{
		{
			name:       "file only",
			wantCasing: format.CasingCapitalize,
			wantIndent: "    ",
		},
		{
			name:       "legacy env beats file keyword_casing",
			env:        map[string]string{"TSQLFMT_FORMAT__UPPERCASE_KEYWORDS": "true"},
			wantCasing: format.CasingUpper,
			wantIndent: "    ",
		},
		{
			name:       "legacy flag beats env keyword_casing",
			env:        map[string]string{"TSQLFMT_FORMAT__KEYWORD_CASING": "upper"},
			args:       []string{"--uppercase-keywords=false"},
			wantCasing: format.CasingLower,
			wantIndent: "    ",
		},
		{
			name:       "indent flag beats file indent_unit",
			args:       []string{"--indent=tab"},
			wantCasing: format.CasingCapitalize,
			wantIndent: "\t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			writeFile(t, filepath.Join(dir, ".tsqlfmt.yaml"),
				"format:\n  keyword_casing: capitalize\n  indent_unit: \"    \"\n")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
			flags.Bool("uppercase-keywords", true, "")
			flags.String("indent", "", "")
			require.NoError(t, flags.Parse(tt.args))

			cfg, err := LoadConfig("", flags)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCasing, cfg.Format.KeywordCasing)
			assert.Equal(t, tt.wantIndent, cfg.Format.IndentUnit)
		})
	}
}

func TestLoadConfig_VerboseAndServerFlags(t *testing.T) {
	t.Chdir(t.TempDir())

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.BoolP("verbose", "v", false, "")
	flags.String("addr", server.DefaultAddr, "")
	flags.Duration("shutdown-timeout", server.DefaultShutdownTimeout, "")
	flags.String("indent", "tab", "")
	require.NoError(t, flags.Parse([]string{"-v", "--addr=127.0.0.1:9999", "--shutdown-timeout=1m", "--indent=4"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.Equal(t, time.Minute, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "    ", cfg.Format.IndentUnit)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		errSubstr string
	}{
		{name: "negative width", content: "format:\n  max_line_width: -1\n", errSubstr: "max_line_width"},
		{name: "bad casing", content: "format:\n  keyword_casing: shouting\n", errSubstr: "unknown casing"},
		{name: "bad indent", content: "format:\n  indent: wide\n", errSubstr: "format.indent"},
		{name: "bad log level", content: "log_level: loud\n", errSubstr: "log_level"},
		{name: "empty addr", content: "server:\n  addr: \"\"\n", errSubstr: "addr is required"},
		{name: "bad duration", content: "server:\n  shutdown_timeout: soon\n", errSubstr: "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			writeFile(t, filepath.Join(dir, ".tsqlfmt.yaml"), tt.content)

			_, err := LoadConfig("", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestWriteDefault(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, ".tsqlfmt.yaml")

	require.NoError(t, WriteDefault(path, false))
	assert.ErrorIs(t, WriteDefault(path, false), ErrConfigExists)
	require.NoError(t, WriteDefault(path, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "keyword_casing: upper")
	assert.Contains(t, string(data), "shutdown_timeout: 5s")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "format.max_line_width", envKey("TSQLFMT_FORMAT__MAX_LINE_WIDTH"))
	assert.Equal(t, "log_level", envKey("TSQLFMT_LOG_LEVEL"))
	assert.Equal(t, "server.addr", envKey("TSQLFMT_SERVER__ADDR"))
}

func TestFlagKeys(t *testing.T) {
	defaults, err := toMap(Defaults())
	require.NoError(t, err)
	keys := flagKeys(defaults)

	tests := []struct {
		flag string
		key  string
		ok   bool
	}{
		{flag: "max-line-width", key: "format.max_line_width", ok: true},
		{flag: "datatype-casing", key: "format.datatype_casing", ok: true},
		{flag: "indent", key: "format.indent", ok: true},
		{flag: "log-level", key: "log_level", ok: true},
		{flag: "addr", key: "server.addr", ok: true},
		{flag: "write", ok: false},
		{flag: "config", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			key, ok := keys(tt.flag)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestLoggerAndConfigContext(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, GetLogger(ctx))
	assert.Equal(t, Defaults(), *GetConfig(ctx))

	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn")
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	ctx = WithLogger(ctx, logger)
	assert.Same(t, logger, GetLogger(ctx))

	cfg := Defaults()
	cfg.LogLevel = "debug"
	ctx = WithConfig(ctx, &cfg)
	assert.Same(t, &cfg, GetConfig(ctx))

	_, err = NewLogger(&buf, "nope")
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	for input, expected := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLogLevel(input)
		require.NoError(t, err)
		assert.Equal(t, expected, got)
	}
}
