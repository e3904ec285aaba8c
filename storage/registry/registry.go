// Package registry selects storage backends by name at runtime.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"xdao.co/commons/storage"
)

// Options carries every backend's settings. Each backend reads only the
// fields it documents.
type Options struct {
	// Dir is the localfs root directory.
	Dir string
	// RedisURL is a redis:// or rediss:// URL.
	RedisURL string
	// RedisPrefix namespaces every key the redis backend writes.
	RedisPrefix string
	// GRPCTarget is the storage daemon address.
	GRPCTarget string
	// Timeout bounds each remote call. Zero selects the backend default.
	Timeout time.Duration
}

// Backend is a build-time plugin that can open a storage.Store.
//
// Backends typically register themselves in init():
//
//	registry.MustRegister(registry.Backend{ ... })
type Backend struct {
	Name        string
	Description string
	Usage       Usage
	Open        func(ctx context.Context, opts Options) (storage.Store, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register registers a backend.
func Register(b Backend) error {
	if b.Name == "" {
		return errors.New("registry: backend name is required")
	}
	if b.Open == nil {
		return fmt.Errorf("registry: backend %q missing Open", b.Name)
	}
	if b.Usage == 0 {
		return fmt.Errorf("registry: backend %q missing Usage", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("registry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns backends matching usage, sorted by name.
func List(usage Usage) []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns backend names matching usage, sorted.
func Names(usage Usage) []string {
	bs := List(usage)
	n := make([]string, 0, len(bs))
	for _, b := range bs {
		n = append(n, b.Name)
	}
	return n
}

// Open opens the named backend if it exists and matches usage.
func Open(ctx context.Context, name string, usage Usage, opts Options) (storage.Store, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: unknown backend %q", name)
	}
	if !b.Usage.allows(usage) {
		return nil, fmt.Errorf("registry: backend %q not supported in this binary", name)
	}
	return b.Open(ctx, opts)
}

func init() {
	MustRegister(Backend{
		Name:        "memory",
		Description: "In-process store, discarded on exit",
		Usage:       UsageCLI | UsageDaemon,
		Open: func(context.Context, Options) (storage.Store, error) {
			return storage.NewMemory(), nil
		},
	})
}
