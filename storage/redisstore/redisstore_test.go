package redisstore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"xdao.co/commons/storage"
	"xdao.co/commons/storage/registry"
	"xdao.co/commons/storage/testkit"
)

func setupTestRedis(t *testing.T, prefix string) (*Store, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := New(context.Background(), "redis://"+s.Addr(), prefix)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestRedisStore_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) storage.Store {
		store, _ := setupTestRedis(t, "")
		return store
	})
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	if _, err := New(context.Background(), "redis://"+addr, ""); err == nil {
		t.Fatalf("New should fail when redis is down")
	}
	if _, err := New(context.Background(), "::not a url", ""); err == nil {
		t.Fatalf("New should reject a malformed url")
	}
}

func TestRedisStore_PrefixIsolation(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	a, err := New(ctx, "redis://"+mr.Addr(), "a:")
	if err != nil {
		t.Fatalf("New(a) failed: %v", err)
	}
	defer a.Close()
	b, err := New(ctx, "redis://"+mr.Addr(), "b:")
	if err != nil {
		t.Fatalf("New(b) failed: %v", err)
	}
	defer b.Close()

	id, err := a.Put(ctx, []byte("snapshot"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := a.SetHead(ctx, "ws", id); err != nil {
		t.Fatalf("SetHead failed: %v", err)
	}
	if b.Has(ctx, id) {
		t.Fatalf("prefix b sees objects written under prefix a")
	}
	if _, err := b.Head(ctx, "ws"); !storage.IsNotFound(err) {
		t.Fatalf("Head under prefix b: got %v want ErrNotFound", err)
	}
	if !mr.Exists("a:obj:" + id.String()) {
		t.Fatalf("object key not written under its prefix")
	}
}

func TestRedisStore_RejectOverwrite(t *testing.T) {
	ctx := context.Background()
	store, mr := setupTestRedis(t, "")
	defer store.Close()

	id, err := store.Put(ctx, []byte("original"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := mr.Set(DefaultPrefix+"obj:"+id.String(), "corrupted"); err != nil {
		t.Fatalf("miniredis Set failed: %v", err)
	}
	if _, err := store.Get(ctx, id); err != storage.ErrCIDMismatch {
		t.Fatalf("Get mismatch: got %v want %v", err, storage.ErrCIDMismatch)
	}
	if _, err := store.Put(ctx, []byte("original")); err != storage.ErrImmutable {
		t.Fatalf("Put after corruption: got %v want %v", err, storage.ErrImmutable)
	}
}

func TestRedisStore_Closed(t *testing.T) {
	store, _ := setupTestRedis(t, "")
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := store.ListHeads(context.Background()); !errors.Is(err, storage.ErrClosed) {
		t.Fatalf("ListHeads after close: got %v want ErrClosed", err)
	}
}

func TestRedisStore_Registered(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := registry.Open(context.Background(), "redis", registry.UsageDaemon, registry.Options{RedisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()
	if err := s.(*Store).Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}
