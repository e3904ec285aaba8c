package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

// Algorithm names a signature scheme. It doubles as the public-key prefix.
type Algorithm string

const (
	Ed25519    Algorithm = "ed25519"
	Dilithium3 Algorithm = "dilithium3"
)

var (
	ErrMalformedKey       = errors.New("keys: malformed public key")
	ErrUnsupportedAlg     = errors.New("keys: unsupported algorithm")
	ErrMalformedSignature = errors.New("keys: malformed signature")
)

// Signer produces signatures on behalf of one participant.
type Signer interface {
	Algorithm() Algorithm
	// PublicKey returns the encoded "<alg>:<base64>" public key.
	PublicKey() string
	// Sign returns the base64 signature over digest(message).
	Sign(message []byte) (string, error)
}

// digestFor fixes one digest per scheme: sha256 for ed25519, sha3-256 for
// dilithium3.
func digestFor(alg Algorithm, message []byte) ([]byte, error) {
	switch alg {
	case Ed25519:
		s := sha256.Sum256(message)
		return s[:], nil
	case Dilithium3:
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, ErrUnsupportedAlg
	}
}

// Ed25519Signer signs with an Ed25519 key derived from a 32-byte seed.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
	pub  string
}

// NewEd25519Signer returns a signer for seed.
func NewEd25519Signer(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("keys: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Ed25519Signer{priv: priv, pub: EncodePublicKey(Ed25519, priv.Public().(ed25519.PublicKey))}, nil
}

func (s *Ed25519Signer) Algorithm() Algorithm { return Ed25519 }
func (s *Ed25519Signer) PublicKey() string    { return s.pub }

func (s *Ed25519Signer) Sign(message []byte) (string, error) {
	digest, err := digestFor(Ed25519, message)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(s.priv, digest)), nil
}

// Dilithium3Signer signs with a post-quantum Dilithium3 key.
type Dilithium3Signer struct {
	priv *mode3.PrivateKey
	pub  string
}

// GenerateDilithium3Signer returns a fresh Dilithium3 signer.
func GenerateDilithium3Signer(rand io.Reader) (*Dilithium3Signer, error) {
	pk, sk, err := mode3.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	raw, err := pk.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &Dilithium3Signer{priv: sk, pub: EncodePublicKey(Dilithium3, raw)}, nil
}

// NewDilithium3SignerFromSeed derives a Dilithium3 key pair from a 32-byte
// seed, so KeyStore seeds serve either scheme.
func NewDilithium3SignerFromSeed(seed []byte) (*Dilithium3Signer, error) {
	if len(seed) != mode3.SeedSize {
		return nil, fmt.Errorf("keys: seed must be %d bytes, got %d", mode3.SeedSize, len(seed))
	}
	var s [mode3.SeedSize]byte
	copy(s[:], seed)
	pk, sk := mode3.NewKeyFromSeed(&s)
	raw, err := pk.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &Dilithium3Signer{priv: sk, pub: EncodePublicKey(Dilithium3, raw)}, nil
}

// NewSigner returns a signer of the given algorithm for seed.
func NewSigner(alg Algorithm, seed []byte) (Signer, error) {
	switch alg {
	case Ed25519, "":
		return NewEd25519Signer(seed)
	case Dilithium3:
		return NewDilithium3SignerFromSeed(seed)
	default:
		return nil, ErrUnsupportedAlg
	}
}

// ParseAlgorithm maps a config value to an Algorithm. The empty string is
// Ed25519.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case "", Ed25519:
		return Ed25519, nil
	case Dilithium3:
		return Dilithium3, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlg, s)
	}
}

func (s *Dilithium3Signer) Algorithm() Algorithm { return Dilithium3 }
func (s *Dilithium3Signer) PublicKey() string    { return s.pub }

func (s *Dilithium3Signer) Sign(message []byte) (string, error) {
	if s.priv == nil {
		return "", fmt.Errorf("keys: missing private key")
	}
	digest, err := digestFor(Dilithium3, message)
	if err != nil {
		return "", err
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.priv, digest, sig)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// EncodePublicKey renders raw public-key bytes as "<alg>:<base64>".
func EncodePublicKey(alg Algorithm, raw []byte) string {
	return string(alg) + ":" + base64.StdEncoding.EncodeToString(raw)
}

// ParsePublicKey splits an encoded key and checks the key length for its
// algorithm.
func ParsePublicKey(encoded string) (Algorithm, []byte, error) {
	alg, enc, ok := strings.Cut(encoded, ":")
	if !ok || enc == "" {
		return "", nil, ErrMalformedKey
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	switch Algorithm(alg) {
	case Ed25519:
		if len(raw) != ed25519.PublicKeySize {
			return "", nil, fmt.Errorf("%w: ed25519 key must be %d bytes", ErrMalformedKey, ed25519.PublicKeySize)
		}
	case Dilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(raw); err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
	default:
		return "", nil, ErrUnsupportedAlg
	}
	return Algorithm(alg), raw, nil
}

// Verify checks sigB64 over digest(message) against an encoded public key.
// A mismatch is (false, nil); malformed inputs return an error.
func Verify(publicKey string, message []byte, sigB64 string) (bool, error) {
	alg, raw, err := ParsePublicKey(publicKey)
	if err != nil {
		return false, err
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false, ErrMalformedSignature
	}
	digest, err := digestFor(alg, message)
	if err != nil {
		return false, err
	}
	switch alg {
	case Ed25519:
		if len(sig) != ed25519.SignatureSize {
			return false, ErrMalformedSignature
		}
		return ed25519.Verify(ed25519.PublicKey(raw), digest, sig), nil
	case Dilithium3:
		if len(sig) != mode3.SignatureSize {
			return false, ErrMalformedSignature
		}
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(raw); err != nil {
			return false, ErrMalformedKey
		}
		return mode3.Verify(&pk, digest, sig), nil
	default:
		return false, ErrUnsupportedAlg
	}
}
