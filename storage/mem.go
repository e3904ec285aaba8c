package storage

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/commons/cidutil"
)

// Memory is an in-process Store. It backs tests, bundle imports and
// scratch merges that must not touch the workspace directory.
type Memory struct {
	mu      sync.RWMutex
	objects map[cid.Cid][]byte
	heads   map[string]cid.Cid
	closed  bool
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		objects: map[cid.Cid][]byte{},
		heads:   map[string]cid.Cid{},
	}
}

func (m *Memory) Put(_ context.Context, b []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return cid.Undef, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return cid.Undef, ErrClosed
	}
	if existing, ok := m.objects[id]; ok {
		if !bytes.Equal(existing, b) {
			return cid.Undef, ErrImmutable
		}
		return id, nil
	}
	m.objects[id] = bytes.Clone(b)
	return id, nil
}

func (m *Memory) Get(_ context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	b, ok := m.objects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(b), nil
}

func (m *Memory) Has(_ context.Context, id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[id]
	return ok && !m.closed
}

func (m *Memory) Head(_ context.Context, name string) (cid.Cid, error) {
	if err := CheckHeadName(name); err != nil {
		return cid.Undef, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return cid.Undef, ErrClosed
	}
	id, ok := m.heads[name]
	if !ok {
		return cid.Undef, ErrNotFound
	}
	return id, nil
}

func (m *Memory) SetHead(_ context.Context, name string, id cid.Cid) error {
	if err := CheckHeadName(name); err != nil {
		return err
	}
	if !id.Defined() {
		return ErrInvalidCID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.heads[name] = id
	return nil
}

func (m *Memory) ListHeads(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	names := make([]string, 0, len(m.heads))
	for name := range m.heads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
