// Package testkit holds the conformance suite every storage adapter runs.
package testkit

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/commons/cidutil"
	"xdao.co/commons/storage"
)

// NewStore constructs a fresh, empty Store instance for a test.
// The returned Store MUST be isolated from other tests; the suite closes it.
type NewStore func(t *testing.T) storage.Store

func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()

	open := func(t *testing.T) storage.Store {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := open(t)
		want := []byte("hello, commons storage")

		id, err := s.Put(ctx, want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		wantID, err := cidutil.CIDv1RawSHA256CID(want)
		if err != nil {
			t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
		}
		if id != wantID {
			t.Fatalf("Put CID mismatch: got %s want %s", id, wantID)
		}

		got, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
		if !cidutil.Matches(id, got) {
			t.Fatalf("Get returned bytes not matching requested CID")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		s := open(t)
		b := []byte("same bytes")

		id1, err := s.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		id2, err := s.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if id1 != id2 {
			t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		s := open(t)
		b := []byte("missing")
		id, err := cidutil.CIDv1RawSHA256CID(b)
		if err != nil {
			t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
		}

		if s.Has(ctx, id) {
			t.Fatalf("Has returned true for missing CID")
		}
		if _, err := s.Get(ctx, id); !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}

		if _, err := s.Put(ctx, b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !s.Has(ctx, id) {
			t.Fatalf("Has returned false after Put")
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		s := open(t)
		var undef cid.Cid
		if s.Has(ctx, undef) {
			t.Fatalf("Has should be false for undefined CID")
		}
		if _, err := s.Get(ctx, undef); err == nil {
			t.Fatalf("Get should fail for undefined CID")
		}
		if err := s.SetHead(ctx, "ws", undef); err == nil {
			t.Fatalf("SetHead should fail for undefined CID")
		}
	})

	t.Run("HeadMissing", func(t *testing.T) {
		s := open(t)
		if _, err := s.Head(ctx, "ws-missing"); !storage.IsNotFound(err) {
			t.Fatalf("Head missing: got err=%v want ErrNotFound", err)
		}
		names, err := s.ListHeads(ctx)
		if err != nil {
			t.Fatalf("ListHeads failed: %v", err)
		}
		if len(names) != 0 {
			t.Fatalf("ListHeads on empty store: got %v", names)
		}
	})

	t.Run("HeadMoves", func(t *testing.T) {
		s := open(t)
		first, err := s.Put(ctx, []byte("snapshot one"))
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		second, err := s.Put(ctx, []byte("snapshot two"))
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		if err := s.SetHead(ctx, "ws-1", first); err != nil {
			t.Fatalf("SetHead failed: %v", err)
		}
		got, err := s.Head(ctx, "ws-1")
		if err != nil {
			t.Fatalf("Head failed: %v", err)
		}
		if got != first {
			t.Fatalf("Head: got %s want %s", got, first)
		}

		if err := s.SetHead(ctx, "ws-1", second); err != nil {
			t.Fatalf("SetHead(2) failed: %v", err)
		}
		got, err = s.Head(ctx, "ws-1")
		if err != nil {
			t.Fatalf("Head(2) failed: %v", err)
		}
		if got != second {
			t.Fatalf("Head after move: got %s want %s", got, second)
		}
	})

	t.Run("ListHeadsSorted", func(t *testing.T) {
		s := open(t)
		id, err := s.Put(ctx, []byte("shared"))
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		for _, name := range []string{"zeta", "alpha", "did:key:mid"} {
			if err := s.SetHead(ctx, name, id); err != nil {
				t.Fatalf("SetHead(%s) failed: %v", name, err)
			}
		}
		names, err := s.ListHeads(ctx)
		if err != nil {
			t.Fatalf("ListHeads failed: %v", err)
		}
		want := []string{"alpha", "did:key:mid", "zeta"}
		if len(names) != len(want) {
			t.Fatalf("ListHeads: got %v want %v", names, want)
		}
		for i := range want {
			if names[i] != want[i] {
				t.Fatalf("ListHeads: got %v want %v", names, want)
			}
		}
	})

	t.Run("RejectInvalidHeadName", func(t *testing.T) {
		s := open(t)
		id, err := s.Put(ctx, []byte("x"))
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		for _, name := range []string{"", ".hidden", "a/b", "a b"} {
			if err := s.SetHead(ctx, name, id); !errors.Is(err, storage.ErrInvalidHead) {
				t.Fatalf("SetHead(%q): got err=%v want ErrInvalidHead", name, err)
			}
		}
	})
}
