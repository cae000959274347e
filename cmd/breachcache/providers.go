package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/BreachCache/internal/adapter/breachapi"
	"github.com/Strob0t/BreachCache/internal/adapter/kvstate"
	"github.com/Strob0t/BreachCache/internal/adapter/memory"
	bcnats "github.com/Strob0t/BreachCache/internal/adapter/nats"
	"github.com/Strob0t/BreachCache/internal/adapter/natskv"
	"github.com/Strob0t/BreachCache/internal/adapter/postgres"
	"github.com/Strob0t/BreachCache/internal/adapter/ristretto"
	"github.com/Strob0t/BreachCache/internal/adapter/tiered"
	"github.com/Strob0t/BreachCache/internal/config"
	"github.com/Strob0t/BreachCache/internal/port/eventbus"
	"github.com/Strob0t/BreachCache/internal/port/statestore"
	"github.com/Strob0t/BreachCache/internal/port/upstream"
	"github.com/Strob0t/BreachCache/internal/secrets"
)

const envUpstreamAPIKey = "BREACHCACHE_UPSTREAM_API_KEY"

// l1SnapshotTTL bounds how long a partition snapshot stays in the local
// tier in front of NATS KV.
const l1SnapshotTTL = 10 * time.Minute

// infra owns the connections the configured backends need.
type infra struct {
	ctx   context.Context
	vault *secrets.Vault
	pool  *pgxpool.Pool
	nats  *bcnats.Conn
	l1    *ristretto.Cache
}

// openInfra connects only to what the configuration uses.
func openInfra(ctx context.Context, cfg *config.Config) (*infra, error) {
	vault, err := secrets.NewVault(secrets.EnvLoader(envUpstreamAPIKey))
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}
	in := &infra{ctx: ctx, vault: vault}

	if cfg.UsesPostgres() {
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		in.pool = pool
		slog.Info("postgres connected")

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			in.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	if cfg.UsesNATS() {
		nc, err := bcnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("nats: %w", err)
		}
		in.nats = nc
	}

	return in, nil
}

func (in *infra) upstream(cfg *config.Config) (upstream.Source, error) {
	switch cfg.Upstream.Backend {
	case config.BackendMemory:
		return memory.NewSource(nil), nil
	case config.BackendPostgres:
		return postgres.NewSource(in.pool), nil
	case config.BackendHTTP:
		slog.Info("breach api upstream", "url", cfg.Upstream.URL, "api_key", in.vault.Redacted(envUpstreamAPIKey))
		return breachapi.New(cfg.Upstream.URL, in.vault.Getter(envUpstreamAPIKey, cfg.Upstream.APIKey)), nil
	default:
		return nil, fmt.Errorf("unknown upstream backend %q", cfg.Upstream.Backend)
	}
}

func (in *infra) stateStore(cfg *config.Config) (statestore.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return memory.NewStateStore(), nil
	case config.BackendPostgres:
		return postgres.NewStateStore(in.pool), nil
	case config.BackendNATS:
		kv, err := in.nats.KeyValue(in.ctx, cfg.NATS.KVBucket)
		if err != nil {
			return nil, fmt.Errorf("nats kv: %w", err)
		}
		l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
		if err != nil {
			return nil, fmt.Errorf("l1 cache: %w", err)
		}
		in.l1 = l1
		return kvstate.New(tiered.New(l1, natskv.New(kv), l1SnapshotTTL)), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// publisher returns the breach event sink, or nil when events are off.
func (in *infra) publisher(cfg *config.Config) eventbus.Publisher {
	if !cfg.Events.Enabled || in.nats == nil {
		return nil
	}
	return in.nats
}

// reloadSecretsOnHUP re-reads rotated credentials on every SIGHUP until ctx
// is done.
func (in *infra) reloadSecretsOnHUP(ctx context.Context) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			if err := in.vault.Reload(); err != nil {
				slog.Error("secret reload failed", "error", err)
				continue
			}
			slog.Info("secrets reloaded", "api_key", in.vault.Redacted(envUpstreamAPIKey))
		}
	}
}

func (in *infra) healthy() bool {
	return in.nats == nil || in.nats.IsConnected()
}

// Close releases connections in reverse order of opening.
func (in *infra) Close() {
	if in.l1 != nil {
		in.l1.Close()
	}
	if in.nats != nil {
		if err := in.nats.Close(); err != nil {
			slog.Warn("nats close", "error", err)
		}
	}
	if in.pool != nil {
		in.pool.Close()
	}
}
