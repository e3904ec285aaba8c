package grpcstore

import (
	"context"
	"errors"
	"strings"

	"xdao.co/commons/storage"
	"xdao.co/commons/storage/registry"
)

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "grpc",
		Description: "gRPC store client (talks to xdao-commons-stored)",
		Usage:       registry.UsageCLI,
		Open: func(_ context.Context, opts registry.Options) (storage.Store, error) {
			target := strings.TrimSpace(opts.GRPCTarget)
			if target == "" {
				return nil, errors.New("grpcstore: missing target")
			}
			client, err := Dial(target, DialOptions{})
			if err != nil {
				return nil, err
			}
			client.Timeout = opts.Timeout
			return client, nil
		},
	})
}
