package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"exam-session-engine/internal/app"
	"exam-session-engine/internal/config"
	"exam-session-engine/internal/infra/memory"
	"exam-session-engine/internal/infra/postgres"
	"exam-session-engine/internal/infra/rabbitmq"
	rediscache "exam-session-engine/internal/infra/redis"
	"exam-session-engine/internal/infra/sqlite"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// backends holds the collaborators built from config. Every concern falls
// back to an in-memory implementation when its backend is not configured.
type backends struct {
	remote   app.RemoteStore
	local    app.KeyValueStore
	notifier app.Notifier
	closers  []func()
	demo     bool
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		b.remote = postgres.NewRemoteStore(pool)
	} else {
		log.Printf("postgres not configured, using in-memory remote store")
		b.remote = memory.NewRemoteStore()
		b.demo = true
	}

	local, err := openLocal(ctx, cfg, b)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.local = local

	if cfg.AMQP.URL != "" {
		n, err := rabbitmq.NewNotifier(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey)
		if err != nil {
			// confirmations are best-effort; keep serving without them
			log.Printf("amqp unavailable, submission notices will only be logged: %v", err)
			b.notifier = memory.NewNotifier()
		} else {
			b.closers = append(b.closers, n.Close)
			b.notifier = n
		}
	} else {
		b.notifier = memory.NewNotifier()
	}
	return b, nil
}

func openLocal(ctx context.Context, cfg config.Config, b *backends) (app.KeyValueStore, error) {
	backend := cfg.Cache.Backend
	if backend == "" {
		backend = "memory"
		if cfg.Redis.Addr != "" {
			backend = "redis"
		}
	}

	switch backend {
	case "redis":
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis cache selected but redis.addr is empty")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		b.closers = append(b.closers, func() { _ = client.Close() })
		return rediscache.NewKVStore(client, cfg.Redis.Prefix, config.TTLDuration(cfg.Redis.TTL, 0)), nil
	case "sqlite":
		path := cfg.Cache.Path
		if path == "" {
			path = "exam-cache.db"
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create cache dir: %w", err)
			}
		}
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = store.Close() })
		return store, nil
	case "memory":
		return memory.NewKVStore(), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", backend)
}

func serviceOptions(cfg config.Config) app.Options {
	return app.Options{
		Monitor: app.MonitorOptions{
			Grace:            config.TTLDuration(cfg.Session.GraceWindow, app.DefaultGraceWindow),
			FullscreenWindow: config.TTLDuration(cfg.Session.FullscreenWindow, app.DefaultFullscreenWindow),
			Threshold:        cfg.Session.ViolationThreshold,
		},
		Engine: app.EngineOptions{
			PartialCredit:      cfg.Session.PartialCredit,
			ReplicationTimeout: config.TTLDuration(cfg.Session.ReplicationTimeout, app.DefaultReplicationTimeout),
		},
	}
}

// shutdownTimeout bounds how long pending replications may delay exit.
const shutdownTimeout = 5 * time.Second
