package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/commons/cidutil"
)

// NamedCAS associates a CAS with a stable backend name for error reporting.
type NamedCAS struct {
	Name string
	CAS  CAS
}

// ReplicatingCAS writes to all configured backends.
//
// Reads fall back in order. Writes go to all backends and require all returned
// CIDs to match (otherwise ErrCIDMismatch is returned).
type ReplicatingCAS struct {
	Backends []NamedCAS
}

var _ CAS = (*ReplicatingCAS)(nil)

// PutAll writes the same bytes to all backends and returns the canonical CID
// together with the CID each backend reported.
func (r ReplicatingCAS) PutAll(ctx context.Context, bytes []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := cidutil.CIDv1RawSHA256CID(bytes)
	if err != nil {
		return cid.Undef, nil, err
	}
	if len(r.Backends) == 0 {
		return cid.Undef, nil, errors.New("storage: ReplicatingCAS has no backends")
	}

	out := make(map[string]cid.Cid, len(r.Backends))
	for _, b := range r.Backends {
		if b.CAS == nil {
			return cid.Undef, nil, fmt.Errorf("storage: nil CAS for backend %q", b.Name)
		}
		got, err := b.CAS.Put(ctx, bytes)
		if err != nil {
			return cid.Undef, nil, fmt.Errorf("storage: backend %q: %w", b.Name, err)
		}
		out[b.Name] = got
		if got != want {
			return cid.Undef, out, ErrCIDMismatch
		}
	}
	return want, out, nil
}

func (r ReplicatingCAS) Put(ctx context.Context, bytes []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(ctx, bytes)
	return id, err
}

func (r ReplicatingCAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	for _, b := range r.Backends {
		if b.CAS == nil {
			continue
		}
		out, err := b.CAS.Get(ctx, id)
		if err == nil {
			return out, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (r ReplicatingCAS) Has(ctx context.Context, id cid.Cid) bool {
	for _, b := range r.Backends {
		if b.CAS != nil && b.CAS.Has(ctx, id) {
			return true
		}
	}
	return false
}

// Mirrored is a Store whose objects and heads are written to a primary and
// every mirror. Reads are served by the primary, falling back to mirrors for
// objects only. Heads are authoritative on the primary.
type Mirrored struct {
	Primary Store
	Mirrors []NamedStore
}

// NamedStore associates a Store with a stable backend name.
type NamedStore struct {
	Name  string
	Store Store
}

var _ Store = (*Mirrored)(nil)

func (m *Mirrored) replicas() ReplicatingCAS {
	backends := make([]NamedCAS, 0, len(m.Mirrors)+1)
	backends = append(backends, NamedCAS{Name: "primary", CAS: m.Primary})
	for _, mirror := range m.Mirrors {
		backends = append(backends, NamedCAS{Name: mirror.Name, CAS: mirror.Store})
	}
	return ReplicatingCAS{Backends: backends}
}

func (m *Mirrored) Put(ctx context.Context, bytes []byte) (cid.Cid, error) {
	return m.replicas().Put(ctx, bytes)
}

func (m *Mirrored) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	return m.replicas().Get(ctx, id)
}

func (m *Mirrored) Has(ctx context.Context, id cid.Cid) bool {
	return m.replicas().Has(ctx, id)
}

func (m *Mirrored) Head(ctx context.Context, name string) (cid.Cid, error) {
	return m.Primary.Head(ctx, name)
}

func (m *Mirrored) SetHead(ctx context.Context, name string, id cid.Cid) error {
	if err := m.Primary.SetHead(ctx, name, id); err != nil {
		return err
	}
	for _, mirror := range m.Mirrors {
		if err := mirror.Store.SetHead(ctx, name, id); err != nil {
			return fmt.Errorf("storage: mirror %q: %w", mirror.Name, err)
		}
	}
	return nil
}

func (m *Mirrored) ListHeads(ctx context.Context) ([]string, error) {
	return m.Primary.ListHeads(ctx)
}

func (m *Mirrored) Close() error {
	errs := []error{m.Primary.Close()}
	for _, mirror := range m.Mirrors {
		errs = append(errs, mirror.Store.Close())
	}
	return errors.Join(errs...)
}
