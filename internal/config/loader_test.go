package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Cache.TTLMinutes != 5 {
		t.Errorf("expected ttl 5 minutes, got %d", cfg.Cache.TTLMinutes)
	}
	if cfg.Cache.TTL() != 5*time.Minute {
		t.Errorf("expected TTL() 5m, got %v", cfg.Cache.TTL())
	}
	if cfg.Store.Backend != BackendMemory || cfg.Upstream.Backend != BackendMemory {
		t.Errorf("expected memory backends, got store=%s upstream=%s", cfg.Store.Backend, cfg.Upstream.Backend)
	}
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
cache:
  ttl_minutes: 15
  idle_timeout: 1h
store:
  backend: postgres
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Cache.TTLMinutes != 15 {
		t.Errorf("expected ttl 15, got %d", cfg.Cache.TTLMinutes)
	}
	if cfg.Cache.IdleTimeout != time.Hour {
		t.Errorf("expected idle timeout 1h, got %v", cfg.Cache.IdleTimeout)
	}
	if cfg.Store.Backend != BackendPostgres {
		t.Errorf("expected postgres store, got %s", cfg.Store.Backend)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unchanged fields keep defaults
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(yamlPath, []byte("cache: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("BREACHCACHE_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("BREACHCACHE_CACHE_TTL_MINUTES", "0")
	t.Setenv("BREACHCACHE_LOG_LEVEL", "warn")
	t.Setenv("BREACHCACHE_BREAKER_TIMEOUT", "1m")
	t.Setenv("BREACHCACHE_UPSTREAM_BACKEND", "http")
	t.Setenv("BREACHCACHE_UPSTREAM_URL", "http://breaches.internal")
	t.Setenv("BREACHCACHE_EVENTS_ENABLED", "true")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("expected test DSN, got %s", cfg.Postgres.DSN)
	}
	if cfg.Cache.TTLMinutes != 0 {
		t.Errorf("expected ttl 0, got %d", cfg.Cache.TTLMinutes)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Breaker.Timeout != time.Minute {
		t.Errorf("expected breaker timeout 1m, got %v", cfg.Breaker.Timeout)
	}
	if cfg.Upstream.Backend != BackendHTTP || cfg.Upstream.URL != "http://breaches.internal" {
		t.Errorf("unexpected upstream %+v", cfg.Upstream)
	}
	if !cfg.Events.Enabled {
		t.Error("expected events enabled")
	}
}

func TestEnvInvalidValuesIgnored(t *testing.T) {
	cfg := Defaults()
	t.Setenv("BREACHCACHE_CACHE_TTL_MINUTES", "five")
	t.Setenv("BREACHCACHE_CACHE_IDLE_TIMEOUT", "soon")

	loadEnv(&cfg)

	if cfg.Cache.TTLMinutes != 5 {
		t.Errorf("expected default ttl kept, got %d", cfg.Cache.TTLMinutes)
	}
	if cfg.Cache.IdleTimeout != 30*time.Minute {
		t.Errorf("expected default idle timeout kept, got %v", cfg.Cache.IdleTimeout)
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "empty port",
			modify: func(c *Config) { c.Server.Port = "" },
			errMsg: "server.port is required",
		},
		{
			name:   "zero request timeout",
			modify: func(c *Config) { c.Server.RequestTimeout = 0 },
			errMsg: "server.request_timeout must be > 0",
		},
		{
			name:   "negative ttl",
			modify: func(c *Config) { c.Cache.TTLMinutes = -1 },
			errMsg: "cache.ttl_minutes must be >= 0",
		},
		{
			name:   "idle timeout without sweep",
			modify: func(c *Config) { c.Cache.SweepInterval = 0 },
			errMsg: "cache.sweep_interval must be > 0 when idle_timeout is set",
		},
		{
			name:   "zero breaker failures",
			modify: func(c *Config) { c.Breaker.MaxFailures = 0 },
			errMsg: "breaker.max_failures must be >= 1",
		},
		{
			name:   "unknown store",
			modify: func(c *Config) { c.Store.Backend = "blob" },
			errMsg: `store.backend "blob" is not one of memory, postgres, nats`,
		},
		{
			name:   "unknown upstream",
			modify: func(c *Config) { c.Upstream.Backend = "ldap" },
			errMsg: `upstream.backend "ldap" is not one of memory, postgres, http`,
		},
		{
			name:   "http upstream without url",
			modify: func(c *Config) { c.Upstream.Backend = BackendHTTP },
			errMsg: "upstream.url is required for the http backend",
		},
		{
			name: "postgres store without DSN",
			modify: func(c *Config) {
				c.Store.Backend = BackendPostgres
				c.Postgres.DSN = ""
			},
			errMsg: "postgres.dsn is required",
		},
		{
			name: "postgres upstream zero max_conns",
			modify: func(c *Config) {
				c.Upstream.Backend = BackendPostgres
				c.Postgres.MaxConns = 0
			},
			errMsg: "postgres.max_conns must be >= 1",
		},
		{
			name: "events without NATS URL",
			modify: func(c *Config) {
				c.Events.Enabled = true
				c.NATS.URL = ""
			},
			errMsg: "nats.url is required",
		},
		{
			name: "nats store without bucket",
			modify: func(c *Config) {
				c.Store.Backend = BackendNATS
				c.NATS.KVBucket = ""
			},
			errMsg: "nats.kv_bucket is required for the nats store",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.errMsg)
			}
			if err.Error() != tt.errMsg {
				t.Errorf("expected %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestLoadFrom(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "breachcache.yaml")
	if err := os.WriteFile(yamlPath, []byte("cache:\n  ttl_minutes: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BREACHCACHE_CACHE_TTL_MINUTES", "20")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Cache.TTLMinutes != 20 {
		t.Errorf("expected env to win over YAML, got %d", cfg.Cache.TTLMinutes)
	}
}

func TestLoadFromInvalid(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "breachcache.yaml")
	if err := os.WriteFile(yamlPath, []byte("store:\n  backend: s3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(yamlPath); err == nil {
		t.Fatal("expected validation error")
	}
}
