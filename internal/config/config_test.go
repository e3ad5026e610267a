package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("server", "", "")
	fs.StringSlice("modules", nil, "")
	fs.String("log-level", "info", "")
	fs.Bool("verbose", false, "")
	fs.Bool("csv", false, "")
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", newFlags())
	require.NoError(t, err)
	require.Empty(t, cfg.Server)
	require.Empty(t, cfg.Modules)
	require.Equal(t, "info", cfg.LogLevel)
	require.False(t, cfg.Verbose)
	require.False(t, cfg.CSV)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"server: \"127.0.0.1:5433\"\nlog_level: debug\nmodules:\n  - /opt/mods\n"), 0o644))

	cfg, err := Load(path, newFlags())
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:5433", cfg.Server)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, []string{"/opt/mods"}, cfg.Modules)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), newFlags())
	require.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o644))
	t.Setenv("SQLHILD_LOG_LEVEL", "error")

	cfg, err := Load(path, newFlags())
	require.NoError(t, err)
	require.Equal(t, "error", cfg.LogLevel)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SQLHILD_LOG_LEVEL", "error")

	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--log-level", "debug"}))
	cfg, err := Load("", fs)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestUnchangedFlagsDoNotOverride(t *testing.T) {
	t.Setenv("SQLHILD_LOG_LEVEL", "error")

	// The flag default "info" must not clobber the environment value.
	cfg, err := Load("", newFlags())
	require.NoError(t, err)
	require.Equal(t, "error", cfg.LogLevel)
}

func TestSlogLevel(t *testing.T) {
	require.Equal(t, slog.LevelInfo, (&Config{}).SlogLevel())
	require.Equal(t, slog.LevelDebug, (&Config{LogLevel: "debug"}).SlogLevel())
	require.Equal(t, slog.LevelWarn, (&Config{LogLevel: "WARNING"}).SlogLevel())
	require.Equal(t, slog.LevelError, (&Config{LogLevel: "error"}).SlogLevel())
	require.Equal(t, slog.LevelDebug, (&Config{LogLevel: "error", Verbose: true}).SlogLevel())
}
