package store

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// Config selects and configures a driver.
type Config struct {
	Driver string // memory, redis or postgres

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	PostgresURL      string
	PostgresMaxConns int32
}

// Open builds the configured driver and checks that its backend is reachable.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, errors.Wrapf(err, "connect to redis at %s", cfg.RedisAddr)
		}
		return NewRedisStore(client, cfg.RedisPrefix), nil
	case "postgres":
		s, err := NewPostgresStore(ctx, cfg.PostgresURL, cfg.PostgresMaxConns)
		if err != nil {
			return nil, err
		}
		if err := s.pool.Ping(ctx); err != nil {
			s.Close()
			return nil, errors.Wrap(err, "connect to postgres")
		}
		return s, nil
	}
	return nil, errors.Wrap(ErrUnknownDriver, cfg.Driver)
}
