package registry

import (
	"context"
	"errors"
	"fmt"

	"xdao.co/commons/storage"
)

// Target names a backend together with its options.
type Target struct {
	// ID identifies the target in errors. Empty means Backend.
	ID      string
	Backend string
	Options Options
}

func (t Target) id() string {
	if t.ID != "" {
		return t.ID
	}
	return t.Backend
}

// OpenMirrored opens primary and every mirror. With no mirrors the primary
// store is returned as is; otherwise writes go to all of them (see
// storage.Mirrored). Stores already opened are closed when a later one
// fails.
func OpenMirrored(ctx context.Context, usage Usage, primary Target, mirrors []Target) (storage.Store, error) {
	seen := map[string]struct{}{primary.id(): {}}
	for _, m := range mirrors {
		if _, dup := seen[m.id()]; dup {
			return nil, fmt.Errorf("registry: duplicate store id %q", m.id())
		}
		seen[m.id()] = struct{}{}
	}

	first, err := Open(ctx, primary.Backend, usage, primary.Options)
	if err != nil {
		return nil, err
	}
	if len(mirrors) == 0 {
		return first, nil
	}

	out := &storage.Mirrored{Primary: first}
	for _, m := range mirrors {
		s, err := Open(ctx, m.Backend, usage, m.Options)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("registry: mirror %q: %w", m.id(), err), out.Close())
		}
		out.Mirrors = append(out.Mirrors, storage.NamedStore{Name: m.id(), Store: s})
	}
	return out, nil
}
