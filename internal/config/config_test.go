package config

import (
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Config{
		DatabasePath:   "siterequest.db",
		RequestTimeout: 15 * time.Second,
		LogLevel:       "info",
		LogFormat:      LogFormatConsole,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromValues(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"SITEREQUEST_SOURCE_URL":      "https://requests.example.com/api",
		"SITEREQUEST_SOURCE_HEADERS":  "X-Tenant:contoso,X-Env:prod",
		"SITEREQUEST_REQUIRE_ALIAS":   "true",
		"SITEREQUEST_REQUEST_TIMEOUT": "3s",
		"SITEREQUEST_LOG_FORMAT":      "json",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SourceURL != "https://requests.example.com/api" || !cfg.RequireAlias || cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if diff := cmp.Diff(map[string]string{"X-Tenant": "contoso", "X-Env": "prod"}, cfg.SourceHeaders); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadFromError(t *testing.T) {
	_, err := LoadFrom(map[string]string{"SITEREQUEST_REQUEST_TIMEOUT": "soon"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestBindFlagsOverride(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"SITEREQUEST_CATALOG": "env.yaml", "SITEREQUEST_LOG_LEVEL": "warn"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	fs := flag.NewFlagSet("siterequest", flag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse([]string{"-catalog", "flag.yaml", "-require-alias"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfg.CatalogPath != "flag.yaml" || cfg.LogLevel != "warn" || !cfg.RequireAlias {
		t.Fatalf("unexpected config after flags %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	err := Config{LogFormat: "xml"}.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, fragment := range []string{"catalog path or a source url", "database path", "request timeout", "unknown log format"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %v", fragment, err)
		}
	}
}
