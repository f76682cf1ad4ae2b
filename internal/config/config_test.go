package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_ACCESS_SECRET", strings.Repeat("s", 32))
	t.Setenv("REFRESH_TOKEN_PEPPER", strings.Repeat("p", 16))
	t.Setenv("CONFIG_FILE", "")
}

func TestLoadDefaults(t *testing.T) {
	validEnv(t)
	cfg, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.Profile != "dev" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.AccessTokenTTL != 15*time.Minute || cfg.RefreshTokenTTL != 7*24*time.Hour {
		t.Fatalf("unexpected token TTLs: %v / %v", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	}
	if len(cfg.PublicPathPrefixes) != 2 {
		t.Fatalf("public prefixes=%v", cfg.PublicPathPrefixes)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	validEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("http_addr: \":9999\"\naccess_token_ttl: 10m\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("HTTP_ADDR", ":7777")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":7777" {
		t.Fatalf("env must win over file, got %q", cfg.HTTPAddr)
	}
	if cfg.AccessTokenTTL != 10*time.Minute {
		t.Fatalf("file value lost: %v", cfg.AccessTokenTTL)
	}
}

func TestPublicPathPrefixesFromEnv(t *testing.T) {
	validEnv(t)
	t.Setenv("PUBLIC_PATH_PREFIXES", "/health, /api/v1/auth , /metrics")
	cfg, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"/health", "/api/v1/auth", "/metrics"}
	if len(cfg.PublicPathPrefixes) != len(want) {
		t.Fatalf("prefixes=%v", cfg.PublicPathPrefixes)
	}
	for i, p := range want {
		if cfg.PublicPathPrefixes[i] != p {
			t.Fatalf("prefixes=%v want %v", cfg.PublicPathPrefixes, want)
		}
	}
}

func TestValidateRejections(t *testing.T) {
	cases := map[string]func(*Config){
		"short secret":          func(c *Config) { c.JWTAccessSecret = "short" },
		"short pepper":          func(c *Config) { c.RefreshTokenPepper = "short" },
		"unknown profile":       func(c *Config) { c.Profile = "staging" },
		"unknown driver":        func(c *Config) { c.DatabaseDriver = "oracle" },
		"access outlives fresh": func(c *Config) { c.AccessTokenTTL = c.RefreshTokenTTL },
		"zero sweep":            func(c *Config) { c.SweepInterval = 0 },
		"events without broker": func(c *Config) { c.EventsEnabled = true; c.EventsAMQPURL = "" },
		"prod without dsn":      func(c *Config) { c.Profile = "prod"; c.DatabaseDSN = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.JWTAccessSecret = strings.Repeat("s", 32)
			cfg.RefreshTokenPepper = strings.Repeat("p", 16)
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateAccepts(t *testing.T) {
	cfg := Default()
	cfg.JWTAccessSecret = strings.Repeat("s", 32)
	cfg.RefreshTokenPepper = strings.Repeat("p", 16)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
