// Package config loads application configuration. Precedence, highest to
// lowest: command-line flags, SQLHILD_* environment variables, the config
// file, built-in defaults.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config file names probed in the working directory when no explicit path
// is given.
var configFileNames = []string{"sqlhild.yaml", "sqlhild.yml"}

// Config holds everything the CLI and server need to start.
type Config struct {
	// Server is the pgwire listen address. Empty means one-shot CLI mode.
	Server string `koanf:"server"`
	// Modules are the search roots for provider modules.
	Modules []string `koanf:"modules"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// Verbose raises the log level to debug regardless of LogLevel.
	Verbose bool `koanf:"verbose"`
	// CSV switches CLI result rendering from table to CSV.
	CSV bool `koanf:"csv"`
}

// SlogLevel maps LogLevel (and Verbose) to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load builds the config from defaults, an optional config file, the
// environment, and the flag set. An explicitly named config file must
// exist; the default names are probed silently.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"server":    "",
		"modules":   []string{},
		"log_level": "info",
		"verbose":   false,
		"csv":       false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	path := cfgFile
	if path == "" {
		for _, name := range configFileNames {
			if _, err := os.Stat(name); err == nil {
				path = name
				break
			}
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	// SQLHILD_LOG_LEVEL -> log_level
	if err := k.Load(env.Provider("SQLHILD_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "SQLHILD_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
