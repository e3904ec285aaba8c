// Package signing signs and verifies workspace entities.
//
// The signed message is the deterministic CBOR encoding of the entity's
// signing payload: the entity with its signature cleared and with any field
// that is filled in after signing (id lists grown by other participants)
// left out. Callers obtain that payload from the entity's SigningPayload
// method, so the rule lives next to the type.
//
// Verification never fails hard. Check classifies an entity so the read side
// can show it as verified or not; missing keys and malformed signatures are
// ordinary outcomes in a replicated document where identities may not have
// published a key yet.
package signing

import (
	"errors"
	"fmt"

	"xdao.co/commons/codec"
	"xdao.co/commons/keys"
)

// Status is the verification classification of a stored entity.
type Status string

const (
	StatusVerified   Status = "verified"
	StatusUnsigned   Status = "unsigned"
	StatusUnknownKey Status = "unknown-key"
	StatusInvalid    Status = "invalid"
)

// Verified reports whether s is StatusVerified. Every other status is
// displayed as unverified.
func (s Status) Verified() bool { return s == StatusVerified }

// ErrNoSigner is returned by Sign when signer is nil.
var ErrNoSigner = errors.New("signing: no signer")

// Message returns the canonical bytes signed for payload.
func Message(payload any) ([]byte, error) {
	b, err := codec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("signing: encode payload: %w", err)
	}
	return b, nil
}

// Sign returns the base64 signature of payload.
func Sign(payload any, signer keys.Signer) (string, error) {
	if signer == nil {
		return "", ErrNoSigner
	}
	msg, err := Message(payload)
	if err != nil {
		return "", err
	}
	return signer.Sign(msg)
}

// Verify reports whether signature is a valid signature of payload under
// publicKey. Any malformed input yields false.
func Verify(payload any, signature, publicKey string) bool {
	return Check(payload, signature, publicKey).Verified()
}

// Check classifies payload's signature against publicKey.
func Check(payload any, signature, publicKey string) Status {
	if signature == "" {
		return StatusUnsigned
	}
	if publicKey == "" {
		return StatusUnknownKey
	}
	if _, _, err := keys.ParsePublicKey(publicKey); err != nil {
		return StatusUnknownKey
	}
	msg, err := Message(payload)
	if err != nil {
		return StatusInvalid
	}
	ok, err := keys.Verify(publicKey, msg, signature)
	if err != nil || !ok {
		return StatusInvalid
	}
	return StatusVerified
}
