package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"xdao.co/commons/cidutil"
	"xdao.co/commons/storage"
	"xdao.co/commons/storage/registry"
	"xdao.co/commons/storage/testkit"
)

func TestLocalFS_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) storage.Store {
		t.Helper()
		s, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return s
	})
}

func TestLocalFS_RejectMutationByOverwrite(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	orig := []byte("original")
	id, err := s.Put(ctx, orig)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Corrupt the stored object out-of-band.
	path := s.pathFor(id)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := s.Get(ctx, id); err != storage.ErrCIDMismatch {
		t.Fatalf("Get mismatch: got %v want %v", err, storage.ErrCIDMismatch)
	}

	// Put must not repair or overwrite the corrupted object.
	if _, err := s.Put(ctx, orig); err != storage.ErrImmutable {
		t.Fatalf("Put after corruption: got %v want %v", err, storage.ErrImmutable)
	}

	wantID, err := cidutil.CIDv1RawSHA256CID(orig)
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
	}
	if id != wantID {
		t.Fatalf("unexpected CID: got %s want %s", id, wantID)
	}
}

func TestLocalFS_HeadsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	id, err := s.Put(ctx, []byte("snapshot"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.SetHead(ctx, "ws-1", id); err != nil {
		t.Fatalf("SetHead failed: %v", err)
	}

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("New(reopen) failed: %v", err)
	}
	got, err := reopened.Head(ctx, "ws-1")
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if got != id {
		t.Fatalf("Head: got %s want %s", got, id)
	}

	entries, err := os.ReadDir(filepath.Join(dir, headsDir))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("heads dir should hold only the head file, got %d entries", len(entries))
	}
}

func TestLocalFS_CorruptHead(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, headsDir, "ws"), []byte("not a cid\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := s.Head(ctx, "ws"); err == nil {
		t.Fatalf("Head should fail for a corrupt pointer")
	}
}

func TestLocalFS_Registered(t *testing.T) {
	ctx := context.Background()
	if _, err := registry.Open(ctx, "localfs", registry.UsageCLI, registry.Options{}); err == nil {
		t.Fatalf("Open without a directory should fail")
	}
	s, err := registry.Open(ctx, "localfs", registry.UsageDaemon, registry.Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*Store); !ok {
		t.Fatalf("Open returned %T, want *localfs.Store", s)
	}
}
