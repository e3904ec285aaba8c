// Package snapshot turns workspace documents into content-addressed blobs.
//
// A snapshot is the document's deterministic CBOR encoding compressed with
// zstd. Equal documents produce equal bytes and therefore equal CIDs, so
// saving an unchanged workspace does not grow the store.
package snapshot

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ipfs/go-cid"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"xdao.co/commons/codec"
	"xdao.co/commons/storage"
	"xdao.co/commons/workspace"
)

// ErrCorrupt is returned when bytes do not decode to a workspace document.
var ErrCorrupt = errors.New("snapshot: corrupt data")

// maxDecodedSize bounds decompression of untrusted snapshots.
const maxDecodedSize = 64 << 20

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderCRC(true),
	)
	if err != nil {
		panic("snapshot: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(maxDecodedSize),
	)
	if err != nil {
		panic("snapshot: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode returns the snapshot bytes for doc.
func Encode(doc *workspace.Document) ([]byte, error) {
	raw, err := codec.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return zstdEncoder.EncodeAll(raw, nil), nil
}

// Decode parses snapshot bytes. Documents written by older code are migrated
// to the current shape without touching LastModified.
func Decode(b []byte) (*workspace.Document, error) {
	raw, err := zstdDecoder.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	doc := new(workspace.Document)
	if err := codec.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	workspace.Migrate(doc, doc.LastModified)
	return doc, nil
}

// Fingerprint returns the hex BLAKE3 digest of doc's canonical encoding. Two
// replicas that converged report the same fingerprint.
func Fingerprint(doc *workspace.Document) (string, error) {
	raw, err := codec.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("snapshot: fingerprint: %w", err)
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Store saves and loads snapshots by workspace name.
type Store struct {
	Backend storage.Store
	Logger  *slog.Logger
}

func (s *Store) log() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

// Save writes doc and points the head called name at it.
func (s *Store) Save(ctx context.Context, name string, doc *workspace.Document) (cid.Cid, error) {
	b, err := Encode(doc)
	if err != nil {
		return cid.Undef, err
	}
	id, err := s.Backend.Put(ctx, b)
	if err != nil {
		return cid.Undef, fmt.Errorf("snapshot: put: %w", err)
	}
	if err := s.Backend.SetHead(ctx, name, id); err != nil {
		return cid.Undef, fmt.Errorf("snapshot: set head %q: %w", name, err)
	}
	s.log().Debug("snapshot saved", "workspace", name, "cid", id.String(), "bytes", len(b))
	return id, nil
}

// Load returns the document the head called name points at, with its CID.
// A missing head yields storage.ErrNotFound.
func (s *Store) Load(ctx context.Context, name string) (*workspace.Document, cid.Cid, error) {
	id, err := s.Backend.Head(ctx, name)
	if err != nil {
		return nil, cid.Undef, err
	}
	doc, err := s.LoadCID(ctx, id)
	if err != nil {
		return nil, cid.Undef, err
	}
	return doc, id, nil
}

// LoadCID returns the document stored under id.
func (s *Store) LoadCID(ctx context.Context, id cid.Cid) (*workspace.Document, error) {
	b, err := s.Backend.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return Decode(b)
}

// Names lists the saved workspaces.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	return s.Backend.ListHeads(ctx)
}
