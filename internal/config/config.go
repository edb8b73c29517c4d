// Package config loads the siterequest CLI configuration from the
// environment and lets command-line flags override it.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Log formats.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Config holds every knob of the CLI.
type Config struct {
	// CatalogPath points at a YAML or JSON catalog file.
	CatalogPath string `env:"SITEREQUEST_CATALOG"`
	// FieldSchemaPath points at an OpenAPI document describing content type
	// fields. It takes precedence over catalog fields.
	FieldSchemaPath string `env:"SITEREQUEST_FIELD_SCHEMA"`
	// SourceURL points at the site request HTTP service. When set it serves
	// reference data and alias checks and receives submissions.
	SourceURL     string            `env:"SITEREQUEST_SOURCE_URL"`
	SourceHeaders map[string]string `env:"SITEREQUEST_SOURCE_HEADERS"`

	DatabasePath   string        `env:"SITEREQUEST_DB" envDefault:"siterequest.db"`
	RequireAlias   bool          `env:"SITEREQUEST_REQUIRE_ALIAS"`
	RequestTimeout time.Duration `env:"SITEREQUEST_REQUEST_TIMEOUT" envDefault:"15s"`

	LogLevel  string `env:"SITEREQUEST_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"SITEREQUEST_LOG_FORMAT" envDefault:"console"`

	MetricsAddr string `env:"SITEREQUEST_METRICS_ADDR"`
}

// Load reads the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// LoadFrom reads the given environment instead of the process one.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// BindFlags registers flags on fs whose defaults are the current values, so
// explicit flags override the environment.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.CatalogPath, "catalog", c.CatalogPath, "Path to the division/template catalog (YAML or JSON)")
	fs.StringVar(&c.FieldSchemaPath, "fields", c.FieldSchemaPath, "Path to an OpenAPI document describing content type fields")
	fs.StringVar(&c.SourceURL, "source", c.SourceURL, "Base URL of the site request service; requests are then submitted there instead of the local database")
	fs.StringVar(&c.DatabasePath, "db", c.DatabasePath, "SQLite database storing submitted requests")
	fs.BoolVar(&c.RequireAlias, "require-alias", c.RequireAlias, "Refuse to save until the alias has been validated")
	fs.DurationVar(&c.RequestTimeout, "timeout", c.RequestTimeout, "Timeout applied to each source request")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (trace, debug, info, warn, error)")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format (console or json)")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Address serving Prometheus metrics; empty disables it")
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.CatalogPath) == "" && strings.TrimSpace(c.SourceURL) == "" {
		errs = append(errs, errors.New("config: a catalog path or a source url is required"))
	}
	errs = append(errs, c.storageErrors()...)
	return errors.Join(errs...)
}

// ValidateStorage checks only what reading stored requests needs.
func (c Config) ValidateStorage() error {
	return errors.Join(c.storageErrors()...)
}

func (c Config) storageErrors() []error {
	var errs []error
	if strings.TrimSpace(c.DatabasePath) == "" {
		errs = append(errs, errors.New("config: database path is required"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("config: request timeout must be positive, got %s", c.RequestTimeout))
	}
	switch c.LogFormat {
	case LogFormatConsole, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("config: unknown log format %q", c.LogFormat))
	}
	return errs
}
