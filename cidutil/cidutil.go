// Package cidutil derives and checks the content identifiers used to address
// workspace snapshots.
//
// Every stored snapshot is addressed by a CIDv1 with the "raw" multicodec and
// a sha2-256 multihash over the exact stored bytes.
package cidutil

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ErrUnsupported is returned for CIDs that do not follow the raw + sha2-256
// contract.
var ErrUnsupported = errors.New("cidutil: unsupported cid")

// CIDv1RawSHA256 returns the CID string for data, or "" if hashing fails.
func CIDv1RawSHA256(data []byte) string {
	id, err := CIDv1RawSHA256CID(data)
	if err != nil {
		return ""
	}
	return id.String()
}

// CIDv1RawSHA256CID returns a CIDv1 (raw + sha2-256) derived from data.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// Parse decodes s and checks that it follows the raw + sha2-256 contract.
func Parse(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("cidutil: decode %q: %w", s, err)
	}
	if id.Version() != 1 || id.Type() != cid.Raw {
		return cid.Undef, ErrUnsupported
	}
	decoded, err := multihash.Decode(id.Hash())
	if err != nil {
		return cid.Undef, fmt.Errorf("cidutil: multihash: %w", err)
	}
	if decoded.Code != multihash.SHA2_256 {
		return cid.Undef, ErrUnsupported
	}
	return id, nil
}

// Matches reports whether data hashes to id.
func Matches(id cid.Cid, data []byte) bool {
	got, err := CIDv1RawSHA256CID(data)
	if err != nil {
		return false
	}
	return got.Equals(id)
}
