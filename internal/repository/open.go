package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/darkodi/linkify/internal/config"
)

// Open builds the configured backend wrapped with the per-call timeout.
// rdb is only used by the redis driver and may be nil otherwise.
func Open(ctx context.Context, cfg *config.Config, rdb *redis.Client) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Database.Driver {
	case "sqlite":
		store, err = NewSQLiteStore(cfg.Database.Path)
	case "postgres":
		store, err = NewPostgresStore(cfg.Database.DSN)
	case "redis":
		if rdb == nil {
			return nil, errors.New("redis driver needs a redis client")
		}
		store = NewRedisStore(rdb, cfg.Redis.Prefix)
	case "nats":
		store, err = NewKVStore(ctx, cfg.NATS.URL, cfg.NATS.Bucket)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, err
	}

	wrapped := WithTimeout(store, cfg.Database.OpTimeout)
	if err := wrapped.Ping(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return wrapped, nil
}
