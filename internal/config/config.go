// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package config loads service configuration. Sources are merged in
// ascending precedence: built-in defaults, a YAML file, ACCOUNTD_*
// environment variables, then command-line flags.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/accountd/accountd/internal/account"
)

const envPrefix = "ACCOUNTD_"

// Config is the full service configuration.
type Config struct {
	BaseURL  string         `koanf:"base_url"`
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	SMTP     SMTPConfig     `koanf:"smtp"`
	GeoIP    GeoIPConfig    `koanf:"geoip"`
	Account  AccountConfig  `koanf:"account"`
}

// ServerConfig controls the account API HTTP server.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Format string `koanf:"format"` // "json" or "text"
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// MetricsConfig controls the observability HTTP server.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// SMTPConfig holds mail transport settings. When Enabled is false,
// messages are logged instead of sent.
type SMTPConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

// GeoIPConfig holds the ipinfo.io API token. An empty token uses
// unauthenticated rate limits.
type GeoIPConfig struct {
	Token string `koanf:"token"`
}

// AccountConfig holds lifecycle policy knobs.
type AccountConfig struct {
	MinSecretLength int `koanf:"min_secret_length"`
}

func defaults() map[string]any {
	return map[string]any{
		"base_url":                  "http://localhost:8080",
		"server.addr":               ":8080",
		"log.format":                "json",
		"database.url":              "postgres://localhost:5432/accountd?sslmode=disable",
		"metrics.addr":              ":9090",
		"smtp.enabled":              false,
		"smtp.port":                 587,
		"smtp.from":                 "no-reply@localhost",
		"account.min_secret_length": account.DefaultMinSecretLength,
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty or the file does not exist), ACCOUNTD_* environment
// variables, and flags. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, oops.Code("CONFIG_LOAD_FAILED").
					With("source", "file").
					With("path", path).
					Wrap(err)
			}
		} else if !os.IsNotExist(err) {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", path).
				Wrap(err)
		}
	}

	// ACCOUNTD_SMTP_HOST becomes smtp.host: the first underscore separates
	// the section. base_url is the one top-level key without a section.
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		if key == "base_url" {
			return key, value
		}
		return strings.Replace(key, "_", ".", 1), value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that koanf cannot express.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}
	if c.BaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("base_url is required")
	}
	if c.Server.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server.addr is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("format", c.Log.Format).
			Errorf("log.format must be json or text")
	}
	if c.Account.MinSecretLength < 1 {
		return oops.Code("CONFIG_INVALID").
			With("min_secret_length", c.Account.MinSecretLength).
			Errorf("account.min_secret_length must be positive")
	}
	if c.SMTP.Enabled {
		if c.SMTP.Host == "" {
			return oops.Code("CONFIG_INVALID").Errorf("smtp.host is required when smtp is enabled")
		}
		if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
			return oops.Code("CONFIG_INVALID").
				With("port", c.SMTP.Port).
				Errorf("smtp.port must be in 1..65535")
		}
		if c.SMTP.From == "" {
			return oops.Code("CONFIG_INVALID").Errorf("smtp.from is required when smtp is enabled")
		}
	}
	return nil
}
