package bundle_test

import (
	"archive/tar"
	"bytes"
	"context"
	"testing"
	"time"

	"xdao.co/commons/cidutil"
	"xdao.co/commons/storage"
	"xdao.co/commons/storage/bundle"
	"xdao.co/commons/storage/localfs"
)

func seed(t *testing.T, s storage.Store, heads map[string]string) {
	t.Helper()
	ctx := context.Background()
	for name, payload := range heads {
		id, err := s.Put(ctx, []byte(payload))
		if err != nil {
			t.Fatal(err)
		}
		if err := s.SetHead(ctx, name, id); err != nil {
			t.Fatal(err)
		}
	}
}

func TestBundle_ExportIsDeterministic(t *testing.T) {
	ctx := context.Background()
	src, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	seed(t, src, map[string]string{"ws-a": "hello", "ws-b": "world"})

	var outA bytes.Buffer
	if err := bundle.Export(ctx, &outA, src, []string{"ws-b", "ws-a"}); err != nil {
		t.Fatal(err)
	}
	var outB bytes.Buffer
	if err := bundle.Export(ctx, &outB, src, []string{"ws-a", "ws-b"}); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(outA.Bytes(), outB.Bytes()) {
		t.Fatalf("expected deterministic bundle bytes")
	}
}

func TestBundle_ImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	seed(t, src, map[string]string{"ws-a": "payload", "ws-b": "payload"})

	var buf bytes.Buffer
	if err := bundle.Export(ctx, &buf, src, []string{"ws-a", "ws-b"}); err != nil {
		t.Fatal(err)
	}

	dst := storage.NewMemory()
	heads, err := bundle.Import(ctx, bytes.NewReader(buf.Bytes()), dst)
	if err != nil {
		t.Fatal(err)
	}
	if len(heads) != 2 {
		t.Fatalf("expected 2 heads, got %v", heads)
	}
	if heads["ws-a"] != heads["ws-b"] {
		t.Fatalf("identical snapshots should share one block")
	}

	got, err := dst.Get(ctx, heads["ws-a"])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("payload")) {
		t.Fatalf("payload mismatch")
	}

	// Import stores blocks but leaves heads to the caller.
	names, err := dst.ListHeads(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Fatalf("Import must not move heads, got %v", names)
	}
}

func TestBundle_ExportMissingHead(t *testing.T) {
	var buf bytes.Buffer
	err := bundle.Export(context.Background(), &buf, storage.NewMemory(), []string{"absent"})
	if !storage.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBundle_ImportRejectsCIDMismatch(t *testing.T) {
	good := []byte("good")
	goodCID, err := cidutil.CIDv1RawSHA256CID(good)
	if err != nil {
		t.Fatal(err)
	}
	otherCID, err := cidutil.CIDv1RawSHA256CID([]byte("other"))
	if err != nil {
		t.Fatal(err)
	}
	if goodCID == otherCID {
		t.Fatal("expected different CIDs")
	}

	// Name says otherCID but the bytes are "good".
	bundleBytes := makeDeterministicTar(t, "blocks/"+otherCID.String(), good)

	if _, err := bundle.Import(context.Background(), bytes.NewReader(bundleBytes), storage.NewMemory()); err != storage.ErrCIDMismatch {
		t.Fatalf("expected ErrCIDMismatch, got %v", err)
	}
}

func TestBundle_ImportRejectsDanglingHead(t *testing.T) {
	missing, err := cidutil.CIDv1RawSHA256CID([]byte("not in bundle"))
	if err != nil {
		t.Fatal(err)
	}
	index := []byte(`{"version":1,"cidCodec":"raw","multihash":"sha2-256","blocks":[],"heads":[{"name":"ws","cid":"` + missing.String() + `"}]}`)
	bundleBytes := makeDeterministicTar(t, "index.json", index)

	if _, err := bundle.Import(context.Background(), bytes.NewReader(bundleBytes), storage.NewMemory()); err == nil {
		t.Fatalf("expected an error for a head without its block")
	}
}

func TestBundle_ImportRejectsUnknownEntry(t *testing.T) {
	bundleBytes := makeDeterministicTar(t, "notes.txt", []byte("hi"))
	ctx := context.Background()

	if _, err := bundle.Import(ctx, bytes.NewReader(bundleBytes), storage.NewMemory()); err == nil {
		t.Fatalf("expected unknown entry to fail")
	}
	if _, err := bundle.ImportWithOptions(ctx, bytes.NewReader(bundleBytes), storage.NewMemory(), bundle.ImportOptions{IgnoreUnknown: true}); err != nil {
		t.Fatalf("IgnoreUnknown: %v", err)
	}
}

func makeDeterministicTar(t *testing.T, name string, content []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	h := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  time.Unix(0, 0).UTC(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(h); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
