package kvstore

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/esgmetrics/internal/config"
	"github.com/redis/go-redis/v9"
)

// Open creates the store selected by cfg. A Redis store is pinged before
// it is returned.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Provider {
	case "", config.StoreMemory:
		return NewMemory(), nil
	case config.StoreRedis:
		r, err := NewRedis(&redis.Options{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPassword.Value(),
		}, cfg.KeyPrefix)
		if err != nil {
			return nil, err
		}
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.Provider)
	}
}
