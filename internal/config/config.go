// Package config resolves depgraph settings from flags, environment and an
// optional .depgraph.yaml in the project root.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultRoot      = "."
	DefaultMaxRounds = 10

	// EnvPrefix prefixes environment overrides, e.g. DEPGRAPH_DB.
	EnvPrefix = "DEPGRAPH"
	// FileName is the config file looked up in the project root.
	FileName = ".depgraph"
)

// Config holds the resolved settings.
type Config struct {
	Root      string
	DB        string // empty selects the per-project default location
	LogLevel  string
	LogFormat string
	// Include globs select the sources of the current compilation chunk.
	Include []string
	Exclude []string
	// Affect globs limit which sources a build may schedule as affected.
	Affect      []string
	Propagation string
	MaxRounds   int
	// Editor overrides $EDITOR for the browser.
	Editor string
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root", DefaultRoot)
	v.SetDefault("db", "")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("include", []string{})
	v.SetDefault("exclude", []string{})
	v.SetDefault("affect", []string{})
	v.SetDefault("propagation", "shape")
	v.SetDefault("max-rounds", DefaultMaxRounds)
	v.SetDefault("editor", "")
}

// Load resolves the configuration held by v. Flags bound to v win over the
// environment, which wins over the config file.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := expandHome(v.GetString("root"))
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(root)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Root:        root,
		DB:          expandHome(v.GetString("db")),
		LogLevel:    v.GetString("log-level"),
		LogFormat:   v.GetString("log-format"),
		Include:     v.GetStringSlice("include"),
		Exclude:     v.GetStringSlice("exclude"),
		Affect:      v.GetStringSlice("affect"),
		Propagation: v.GetString("propagation"),
		MaxRounds:   v.GetInt("max-rounds"),
		Editor:      v.GetString("editor"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated and numeric settings.
func (c *Config) Validate() error {
	switch c.Propagation {
	case "shape", "any":
	default:
		return fmt.Errorf("propagation must be shape or any, got %q", c.Propagation)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log-format must be text or json, got %q", c.LogFormat)
	}
	if c.MaxRounds < 1 {
		return fmt.Errorf("max-rounds must be positive, got %d", c.MaxRounds)
	}
	return nil
}

// expandHome expands a leading ~ to the home directory
func expandHome(p string) string {
	if strings.HasPrefix(p, "~") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, p[1:])
	}
	return p
}
