// Package redisstore keeps snapshots and head pointers in Redis.
package redisstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/redis/go-redis/v9"

	"xdao.co/commons/cidutil"
	"xdao.co/commons/storage"
)

// DefaultPrefix namespaces every key when no prefix is given.
const DefaultPrefix = "xdao:commons:"

// Store implements storage.Store on a Redis server.
//
// Objects live at <prefix>obj:<cid> and are written with SETNX so an
// existing value is never replaced. Heads live in one hash at <prefix>heads.
type Store struct {
	client *redis.Client
	prefix string
}

var _ storage.Store = (*Store)(nil)

// New connects to redisURL and checks the connection with a ping.
func New(ctx context.Context, redisURL, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redisstore: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: connect: %w", err)
	}
	return NewWithClient(client, prefix), nil
}

// NewWithClient wraps an existing client. The store owns it from then on.
func NewWithClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) objectKey(id cid.Cid) string { return s.prefix + "obj:" + id.String() }

func (s *Store) headsKey() string { return s.prefix + "heads" }

func (s *Store) Put(ctx context.Context, b []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return cid.Undef, err
	}
	created, err := s.client.SetNX(ctx, s.objectKey(id), b, 0).Result()
	if err != nil {
		return cid.Undef, wrap("put", err)
	}
	if created {
		return id, nil
	}
	existing, err := s.client.Get(ctx, s.objectKey(id)).Bytes()
	if err != nil || !bytes.Equal(existing, b) {
		return cid.Undef, storage.ErrImmutable
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	b, err := s.client.Get(ctx, s.objectKey(id)).Bytes()
	if err != nil {
		return nil, wrap("get", err)
	}
	if !cidutil.Matches(id, b) {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

func (s *Store) Has(ctx context.Context, id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	n, err := s.client.Exists(ctx, s.objectKey(id)).Result()
	return err == nil && n == 1
}

func (s *Store) Head(ctx context.Context, name string) (cid.Cid, error) {
	if err := storage.CheckHeadName(name); err != nil {
		return cid.Undef, err
	}
	v, err := s.client.HGet(ctx, s.headsKey(), name).Result()
	if err != nil {
		return cid.Undef, wrap("head", err)
	}
	id, err := cidutil.Parse(v)
	if err != nil {
		return cid.Undef, errors.Join(storage.ErrInvalidCID, err)
	}
	return id, nil
}

func (s *Store) SetHead(ctx context.Context, name string, id cid.Cid) error {
	if err := storage.CheckHeadName(name); err != nil {
		return err
	}
	if !id.Defined() {
		return storage.ErrInvalidCID
	}
	if err := s.client.HSet(ctx, s.headsKey(), name, id.String()).Err(); err != nil {
		return wrap("set head", err)
	}
	return nil
}

func (s *Store) ListHeads(ctx context.Context) ([]string, error) {
	names, err := s.client.HKeys(ctx, s.headsKey()).Result()
	if err != nil {
		return nil, wrap("list heads", err)
	}
	sort.Strings(names)
	return names, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func wrap(op string, err error) error {
	switch {
	case errors.Is(err, redis.Nil):
		return storage.ErrNotFound
	case errors.Is(err, redis.ErrClosed):
		return storage.ErrClosed
	default:
		return fmt.Errorf("redisstore: %s: %w", op, err)
	}
}
