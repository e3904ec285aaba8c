package redisstore

import (
	"context"
	"errors"

	"xdao.co/commons/storage"
	"xdao.co/commons/storage/registry"
)

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "redis",
		Description: "Redis store (redis:// URL)",
		Usage:       registry.UsageCLI | registry.UsageDaemon,
		Open: func(ctx context.Context, opts registry.Options) (storage.Store, error) {
			if opts.RedisURL == "" {
				return nil, errors.New("redisstore: missing redis url")
			}
			return New(ctx, opts.RedisURL, opts.RedisPrefix)
		},
	})
}
