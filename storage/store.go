package storage

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
)

// CAS is a minimal content-addressable storage interface.
//
// Contract:
// - Put MUST be idempotent.
// - Stored objects MUST be immutable.
// - CIDs MUST be derived from the bytes written (callers are responsible for supplying canonical bytes).
// - Get MUST return ErrNotFound when the CID is absent.
type CAS interface {
	Put(ctx context.Context, bytes []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) bool
}

// Heads maps workspace names to the CID of their latest snapshot.
//
// Contract:
// - Head MUST return ErrNotFound for a name that was never set.
// - SetHead MUST reject names that fail CheckHeadName with ErrInvalidHead.
// - ListHeads MUST return names in ascending order.
type Heads interface {
	Head(ctx context.Context, name string) (cid.Cid, error)
	SetHead(ctx context.Context, name string, id cid.Cid) error
	ListHeads(ctx context.Context) ([]string, error)
}

// Store is a CAS with named heads. Close releases the backend's resources.
type Store interface {
	CAS
	Heads
	Close() error
}

// CheckHeadName validates a head name. Names are workspace ids and must be
// usable as file names and key suffixes.
func CheckHeadName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidHead)
	}
	if name[0] == '.' {
		return fmt.Errorf("%w: %q", ErrInvalidHead, name)
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' || char == ':' || char == '.' {
			continue
		}
		return fmt.Errorf("%w: invalid character %q", ErrInvalidHead, char)
	}
	return nil
}
