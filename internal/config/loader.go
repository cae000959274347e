package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "breachcache.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("BREACHCACHE_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator configuration
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "BREACHCACHE_PORT")
	setString(&cfg.Server.CORSOrigin, "BREACHCACHE_CORS_ORIGIN")
	setDuration(&cfg.Server.RequestTimeout, "BREACHCACHE_REQUEST_TIMEOUT")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "BREACHCACHE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "BREACHCACHE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "BREACHCACHE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "BREACHCACHE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "BREACHCACHE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.KVBucket, "BREACHCACHE_NATS_KV_BUCKET")
	setString(&cfg.Logging.Level, "BREACHCACHE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "BREACHCACHE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "BREACHCACHE_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "BREACHCACHE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "BREACHCACHE_BREAKER_TIMEOUT")

	// Cache
	setInt(&cfg.Cache.TTLMinutes, "BREACHCACHE_CACHE_TTL_MINUTES")
	setDuration(&cfg.Cache.IdleTimeout, "BREACHCACHE_CACHE_IDLE_TIMEOUT")
	setDuration(&cfg.Cache.SweepInterval, "BREACHCACHE_CACHE_SWEEP_INTERVAL")
	setInt64(&cfg.Cache.L1MaxSizeMB, "BREACHCACHE_CACHE_L1_SIZE_MB")

	// Backends
	setString(&cfg.Store.Backend, "BREACHCACHE_STORE_BACKEND")
	setString(&cfg.Upstream.Backend, "BREACHCACHE_UPSTREAM_BACKEND")
	setString(&cfg.Upstream.URL, "BREACHCACHE_UPSTREAM_URL")
	setString(&cfg.Upstream.APIKey, "BREACHCACHE_UPSTREAM_API_KEY")
	setDuration(&cfg.Upstream.Timeout, "BREACHCACHE_UPSTREAM_TIMEOUT")

	// Events
	setBool(&cfg.Events.Enabled, "BREACHCACHE_EVENTS_ENABLED")
	setString(&cfg.Events.Subject, "BREACHCACHE_EVENTS_SUBJECT")

	// Telemetry
	setBool(&cfg.OTEL.Enabled, "BREACHCACHE_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "BREACHCACHE_OTEL_INSECURE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Server.RequestTimeout <= 0 {
		return errors.New("server.request_timeout must be > 0")
	}
	if cfg.Cache.TTLMinutes < 0 {
		return errors.New("cache.ttl_minutes must be >= 0")
	}
	if cfg.Cache.IdleTimeout > 0 && cfg.Cache.SweepInterval <= 0 {
		return errors.New("cache.sweep_interval must be > 0 when idle_timeout is set")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}

	switch cfg.Store.Backend {
	case BackendMemory, BackendPostgres, BackendNATS:
	default:
		return fmt.Errorf("store.backend %q is not one of memory, postgres, nats", cfg.Store.Backend)
	}
	switch cfg.Upstream.Backend {
	case BackendMemory, BackendPostgres:
	case BackendHTTP:
		if cfg.Upstream.URL == "" {
			return errors.New("upstream.url is required for the http backend")
		}
	default:
		return fmt.Errorf("upstream.backend %q is not one of memory, postgres, http", cfg.Upstream.Backend)
	}

	if cfg.UsesPostgres() {
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	}
	if cfg.UsesNATS() && cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Store.Backend == BackendNATS {
		if cfg.NATS.KVBucket == "" {
			return errors.New("nats.kv_bucket is required for the nats store")
		}
		if cfg.Cache.L1MaxSizeMB < 1 {
			return errors.New("cache.l1_max_size_mb must be >= 1 for the nats store")
		}
	}
	if cfg.Events.Enabled && cfg.Events.Subject == "" {
		return errors.New("events.subject is required when events are enabled")
	}
	return nil
}

// UsesPostgres reports whether any backend needs a PostgreSQL pool.
func (c *Config) UsesPostgres() bool {
	return c.Store.Backend == BackendPostgres || c.Upstream.Backend == BackendPostgres
}

// UsesNATS reports whether any component needs a NATS connection.
func (c *Config) UsesNATS() bool {
	return c.Store.Backend == BackendNATS || c.Events.Enabled
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
