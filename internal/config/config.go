// Package config loads calcsync settings from flags, environment and an
// optional YAML file.
//
// Precedence, highest first: explicitly set flags, CALCSYNC_* environment
// variables, the config file, defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultConfigName is the file searched for in the working directory when
// no config path is given.
const DefaultConfigName = "calcsync.yaml"

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CALCSYNC"

// Config is the root configuration.
type Config struct {
	// DB is the sqlite database used by the local reference service.
	DB string `json:"db" mapstructure:"db"`
	// Addr is the listen address of the HTTP service.
	Addr string `json:"addr" mapstructure:"addr"`
	// ServiceURL selects a remote HTTP service instead of the local store.
	ServiceURL string `json:"service_url,omitempty" mapstructure:"service_url"`
	// Templates is a CUE file or directory of templates.
	Templates string `json:"templates" mapstructure:"templates"`
	Format    string `json:"format"    mapstructure:"format"`
	Verbose   bool   `json:"verbose"   mapstructure:"verbose"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		DB:        "calcsync.db",
		Addr:      "127.0.0.1:8080",
		Templates: "templates",
		Format:    "text",
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"db":        "db",
	"addr":      "addr",
	"url":       "service_url",
	"templates": "templates",
	"format":    "format",
	"verbose":   "verbose",
}

// Load resolves the configuration. path names a config file that must
// exist; when empty, DefaultConfigName is read if present. flags may be nil;
// flags it does not define are skipped.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()

	d := Defaults()
	v.SetDefault("db", d.DB)
	v.SetDefault("addr", d.Addr)
	v.SetDefault("service_url", d.ServiceURL)
	v.SetDefault("templates", d.Templates)
	v.SetDefault("format", d.Format)
	v.SetDefault("verbose", d.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultConfigName, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind %s flag: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that have a fixed set of choices.
func (c Config) Validate() error {
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be text or json, got %q", c.Format)
	}
	if c.ServiceURL != "" && !strings.HasPrefix(c.ServiceURL, "http://") && !strings.HasPrefix(c.ServiceURL, "https://") {
		return fmt.Errorf("service_url must be an http or https URL, got %q", c.ServiceURL)
	}
	return nil
}

// Remote reports whether calculations should use an HTTP service rather
// than the local database.
func (c Config) Remote() bool { return c.ServiceURL != "" }
