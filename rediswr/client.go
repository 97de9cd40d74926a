// Package rediswr constructs Redis clients from configuration.
package rediswr

import (
	"context"
	"strings"

	"github.com/code19m/errx"
	"github.com/redis/go-redis/v9"
)

// New creates a new Redis client. It works for single nodes and clusters alike.
func New(cfg Config) redis.UniversalClient {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:         strings.Split(cfg.Addrs, ","),
		Username:      cfg.Username,
		Password:      cfg.Password,
		DB:            cfg.DB,
		IsClusterMode: cfg.IsClusterMode,
		DialTimeout:   cfg.DialTimeout,
		ReadTimeout:   cfg.ReadTimeout,
		WriteTimeout:  cfg.WriteTimeout,
	})

	return client
}

// Connect creates a client and verifies it with PING.
func Connect(ctx context.Context, cfg Config) (redis.UniversalClient, error) {
	if cfg.Addrs == "" {
		return nil, errx.New("[rediswr] addrs are not configured")
	}

	client := New(cfg)

	err := client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"addrs": cfg.Addrs}))
	}

	return client, nil
}
