package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "STORE_BACKEND", "RETENTION_CAP", "OSINT_TOOL_COMMAND", "OSINT_SCAN_TIMEOUT", "CORS_ALLOWED_ORIGINS", "BEDROCK_MODEL_ID"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.StoreBackend != "memory" {
		t.Fatalf("expected memory store by default, got %s", cfg.StoreBackend)
	}
	if cfg.RetentionCap != 50 {
		t.Fatalf("expected retention cap 50, got %d", cfg.RetentionCap)
	}
	if cfg.BedrockModelID != "" {
		t.Fatalf("expected default bedrock model empty, got %s", cfg.BedrockModelID)
	}
	if cfg.OSINTScanTimeout != 3*time.Minute {
		t.Fatalf("expected default osint scan timeout, got %s", cfg.OSINTScanTimeout)
	}
	if cfg.OSINTFetchTimeout != 5*time.Second {
		t.Fatalf("expected default fetch timeout, got %s", cfg.OSINTFetchTimeout)
	}
	if len(cfg.OSINTToolCommand) != 2 || cfg.OSINTToolCommand[1] != "brib.py" {
		t.Fatalf("unexpected default tool command %v", cfg.OSINTToolCommand)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "chrome-extension://*" {
		t.Fatalf("unexpected default origins %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("STORE_BACKEND", " Postgres ")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("RETENTION_CAP", "10")
	t.Setenv("OSINT_TOOL_COMMAND", "/opt/venv/bin/python  brib.py")
	t.Setenv("OSINT_SCAN_TIMEOUT", "45s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RATE_LIMIT_PERIOD", "2m")
	t.Setenv("REDIS_TLS", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.StoreBackend != "postgres" {
		t.Fatalf("expected normalized backend, got %q", cfg.StoreBackend)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.RetentionCap != 10 {
		t.Fatalf("expected retention override, got %d", cfg.RetentionCap)
	}
	if len(cfg.OSINTToolCommand) != 2 || cfg.OSINTToolCommand[0] != "/opt/venv/bin/python" {
		t.Fatalf("unexpected tool command %v", cfg.OSINTToolCommand)
	}
	if cfg.OSINTScanTimeout != 45*time.Second {
		t.Fatalf("expected scan timeout override, got %s", cfg.OSINTScanTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitPeriod != 2*time.Minute {
		t.Fatalf("expected rate limit period override, got %s", cfg.RateLimitPeriod)
	}
	if !cfg.RedisTLS {
		t.Fatalf("expected redis tls enabled")
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("RETENTION_CAP", "lots")
	t.Setenv("OSINT_FETCH_TIMEOUT", "soon")
	cfg := Load()
	if cfg.RetentionCap != 50 {
		t.Fatalf("expected default retention cap, got %d", cfg.RetentionCap)
	}
	if cfg.OSINTFetchTimeout != 5*time.Second {
		t.Fatalf("expected default fetch timeout, got %s", cfg.OSINTFetchTimeout)
	}
}
