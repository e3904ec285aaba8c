// Package bundle moves workspace snapshots between stores as a single TAR
// file, for offline hand-off between peers.
package bundle

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/commons/cidutil"
	"xdao.co/commons/storage"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 1

const indexName = "index.json"

var epoch0 = time.Unix(0, 0).UTC()

// Export writes a deterministic TAR bundle holding the current snapshot of
// each named head, plus an index.json mapping head names to CIDs.
//
// Entry order is lexicographic and TAR headers are normalized, so the same
// heads always produce the same bytes. Every block is checked against its CID.
func Export(ctx context.Context, w io.Writer, store storage.Store, names []string) error {
	if store == nil {
		return errors.New("bundle: nil store")
	}

	heads := make(map[string]cid.Cid, len(names))
	for _, name := range names {
		id, err := store.Head(ctx, name)
		if err != nil {
			return fmt.Errorf("bundle: head %q: %w", name, err)
		}
		heads[name] = id
	}

	uniq := make(map[string]cid.Cid, len(heads))
	for _, id := range heads {
		uniq[id.String()] = id
	}
	cidStrings := make([]string, 0, len(uniq))
	for s := range uniq {
		cidStrings = append(cidStrings, s)
	}
	sort.Strings(cidStrings)

	tw := tar.NewWriter(w)

	blocks := make([]indexBlock, 0, len(cidStrings))
	for _, s := range cidStrings {
		id := uniq[s]
		b, err := store.Get(ctx, id)
		if err != nil {
			_ = tw.Close()
			return err
		}
		if !cidutil.Matches(id, b) {
			_ = tw.Close()
			return storage.ErrCIDMismatch
		}
		if err := writeFile(tw, "blocks/"+s, b); err != nil {
			_ = tw.Close()
			return err
		}
		blocks = append(blocks, indexBlock{CID: s, Size: len(b)})
	}

	idx := indexJSON{
		Version:   FormatVersion,
		CIDCodec:  "raw",
		Multihash: "sha2-256",
		Blocks:    blocks,
	}
	labels := make([]string, 0, len(heads))
	for name := range heads {
		labels = append(labels, name)
	}
	sort.Strings(labels)
	for _, name := range labels {
		idx.Heads = append(idx.Heads, indexHead{Name: name, CID: heads[name].String()})
	}

	b, err := marshalCanonicalIndexJSON(idx)
	if err != nil {
		_ = tw.Close()
		return err
	}
	if err := writeFile(tw, indexName, b); err != nil {
		_ = tw.Close()
		return err
	}
	return tw.Close()
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown controls whether unknown TAR entries are ignored.
	//
	// Default (false) is fail-closed: unknown entries cause Import to return an error.
	IgnoreUnknown bool
}

// Import reads a bundle from r, stores every block in cas and returns the
// head names recorded in the index. Heads are not applied: merging them into
// local workspaces is the caller's decision.
func Import(ctx context.Context, r io.Reader, cas storage.CAS) (map[string]cid.Cid, error) {
	return ImportWithOptions(ctx, r, cas, ImportOptions{})
}

// ImportWithOptions is Import with explicit options. Each block's bytes must
// match both its file name and its computed CID, and every indexed head must
// reference a block present in the bundle.
func ImportWithOptions(ctx context.Context, r io.Reader, cas storage.CAS, opts ImportOptions) (map[string]cid.Cid, error) {
	if cas == nil {
		return nil, errors.New("bundle: nil CAS")
	}

	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	var idx *indexJSON

	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return nil, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}

		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return nil, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		if name == indexName {
			if idx != nil {
				return nil, errors.New("bundle: duplicate index")
			}
			idx = new(indexJSON)
			if err := json.NewDecoder(tr).Decode(idx); err != nil {
				return nil, fmt.Errorf("bundle: index: %w", err)
			}
			continue
		}

		if !strings.HasPrefix(name, "blocks/") {
			if opts.IgnoreUnknown {
				_, _ = io.Copy(io.Discard, tr)
				continue
			}
			return nil, fmt.Errorf("bundle: unknown entry: %s", name)
		}

		id, derr := cid.Decode(strings.TrimPrefix(name, "blocks/"))
		if derr != nil || !id.Defined() {
			return nil, storage.ErrInvalidCID
		}

		payload, rerr := io.ReadAll(tr)
		if rerr != nil {
			return nil, rerr
		}
		if !cidutil.Matches(id, payload) {
			return nil, storage.ErrCIDMismatch
		}

		key := id.String()
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("bundle: duplicate block entry: %s", key)
		}
		seen[key] = struct{}{}

		putID, perr := cas.Put(ctx, payload)
		if perr != nil {
			return nil, perr
		}
		if putID != id {
			return nil, storage.ErrCIDMismatch
		}
	}

	heads := map[string]cid.Cid{}
	if idx == nil {
		return heads, nil
	}
	if idx.Version != FormatVersion {
		return nil, fmt.Errorf("bundle: unsupported index version %d", idx.Version)
	}
	for _, h := range idx.Heads {
		if err := storage.CheckHeadName(h.Name); err != nil {
			return nil, err
		}
		id, err := cidutil.Parse(h.CID)
		if err != nil {
			return nil, errors.Join(storage.ErrInvalidCID, err)
		}
		if _, ok := seen[id.String()]; !ok {
			return nil, fmt.Errorf("bundle: head %q references a missing block", h.Name)
		}
		heads[h.Name] = id
	}
	return heads, nil
}

type indexJSON struct {
	Version   int          `json:"version"`
	CIDCodec  string       `json:"cidCodec"`
	Multihash string       `json:"multihash"`
	Blocks    []indexBlock `json:"blocks"`
	Heads     []indexHead  `json:"heads,omitempty"`
}

type indexBlock struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

type indexHead struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

func marshalCanonicalIndexJSON(idx indexJSON) ([]byte, error) {
	// indexJSON is composed only of structs + slices; encoding/json is deterministic here.
	b, err := json.Marshal(idx)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}

	parts := strings.Split(name, "/")
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return strings.Join(parts, "/")
}
