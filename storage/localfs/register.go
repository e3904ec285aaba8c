package localfs

import (
	"context"
	"errors"

	"xdao.co/commons/storage"
	"xdao.co/commons/storage/registry"
)

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "localfs",
		Description: "Local filesystem store (directory)",
		Usage:       registry.UsageCLI | registry.UsageDaemon,
		Open: func(_ context.Context, opts registry.Options) (storage.Store, error) {
			if opts.Dir == "" {
				return nil, errors.New("localfs: missing store directory")
			}
			return New(opts.Dir)
		},
	})
}
