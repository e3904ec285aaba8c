package keys

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
)

const (
	plainSuffix     = ".key"
	encryptedSuffix = ".key.age"
	rootName        = "root"
)

// ErrNoKey is returned when no seed is stored for the requested identity.
var ErrNoKey = errors.New("keys: no key stored")

// KeyStore keeps participant Ed25519 seeds on the local filesystem.
//
// Layout: <Directory>/<identity>/root.key and
// <Directory>/<identity>/roles/<role>.key. When Passphrase is set, seeds are
// written as age-armored files (".key.age") encrypted with a scrypt
// recipient; reads accept both forms.
type KeyStore struct {
	Directory  string
	Passphrase string
	// ScryptWorkFactor overrides age's default scrypt cost when non-zero.
	ScryptWorkFactor int
}

type KeyEntry struct {
	Identity string
	Roles    []string
}

func GetDefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".xdao", "commons", "keys"), nil
}

func CreateKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = GetDefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

// CheckKeyName validates an identity id for use as a directory name.
// Identity ids are DID-like, so ':' and '.' are accepted.
func CheckKeyName(identity string) error {
	if identity == "" {
		return errors.New("identity cannot be empty")
	}
	if identity == "." || identity == ".." || strings.HasPrefix(identity, ".") {
		return fmt.Errorf("invalid identity %q", identity)
	}
	for _, char := range identity {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' || char == ':' || char == '.' {
			continue
		}
		return fmt.Errorf("invalid character %q in identity", char)
	}
	return nil
}

func CheckRole(role string) error {
	if role == "" {
		return errors.New("role cannot be empty")
	}
	for _, char := range role {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in role", char)
	}
	return nil
}

func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

// keyBase returns the path without suffix for the root key (role == "") or a
// role key.
func (ks *KeyStore) keyBase(identity, role string) string {
	if role == "" {
		return filepath.Join(ks.Directory, identity, rootName)
	}
	return filepath.Join(ks.Directory, identity, "roles", role)
}

func (ks *KeyStore) saveSeed(base string, seed []byte, overwrite bool) (string, error) {
	if len(seed) != ed25519.SeedSize {
		return "", fmt.Errorf("expected seed length of %d bytes", ed25519.SeedSize)
	}
	if !overwrite {
		for _, suffix := range []string{plainSuffix, encryptedSuffix} {
			if _, err := os.Stat(base + suffix); err == nil {
				return "", fmt.Errorf("key already exists: %s", base+suffix)
			}
		}
	}
	if err := os.MkdirAll(filepath.Dir(base), 0o700); err != nil {
		return "", err
	}

	payload := []byte(hex.EncodeToString(seed) + "\n")
	filePath := base + plainSuffix
	stale := base + encryptedSuffix
	if ks.Passphrase != "" {
		sealed, err := ks.seal(payload)
		if err != nil {
			return "", err
		}
		payload = sealed
		filePath, stale = stale, filePath
	}

	if err := os.WriteFile(filePath, payload, 0o600); err != nil {
		return "", err
	}
	if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
		return "", err
	}
	return filePath, nil
}

func (ks *KeyStore) loadSeed(base string) ([]byte, error) {
	if data, err := os.ReadFile(base + encryptedSuffix); err == nil {
		if ks.Passphrase == "" {
			return nil, fmt.Errorf("keys: %s is encrypted and no passphrase is set", base+encryptedSuffix)
		}
		plain, err := ks.open(data)
		if err != nil {
			return nil, err
		}
		return ParseSeedHex(string(plain))
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(base + plainSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoKey
		}
		return nil, err
	}
	return ParseSeedHex(string(data))
}

func (ks *KeyStore) seal(plain []byte) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(ks.Passphrase)
	if err != nil {
		return nil, err
	}
	if ks.ScryptWorkFactor > 0 {
		recipient.SetWorkFactor(ks.ScryptWorkFactor)
	}
	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)
	w, err := age.Encrypt(aw, recipient)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(plain); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	if err := aw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (ks *KeyStore) open(sealed []byte) ([]byte, error) {
	identity, err := age.NewScryptIdentity(ks.Passphrase)
	if err != nil {
		return nil, err
	}
	r, err := age.Decrypt(armor.NewReader(bytes.NewReader(sealed)), identity)
	if err != nil {
		return nil, fmt.Errorf("keys: decrypt seed: %w", err)
	}
	return io.ReadAll(r)
}

// InitializeRootKey stores seed as the root key of identity and returns the
// encoded public key.
func (ks *KeyStore) InitializeRootKey(identity string, seed []byte, overwrite bool) (publicKey string, filePath string, err error) {
	if err := CheckKeyName(identity); err != nil {
		return "", "", err
	}
	publicKey, err = PublicKeyFromSeed(seed)
	if err != nil {
		return "", "", err
	}
	filePath, err = ks.saveSeed(ks.keyBase(identity, ""), seed, overwrite)
	if err != nil {
		return "", "", err
	}
	return publicKey, filePath, nil
}

// GenerateRootKey draws a fresh seed from rand and stores it.
func (ks *KeyStore) GenerateRootKey(identity string, rand io.Reader, overwrite bool) (publicKey string, filePath string, err error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(rand, seed); err != nil {
		return "", "", err
	}
	return ks.InitializeRootKey(identity, seed, overwrite)
}

func (ks *KeyStore) DeriveKeyFromRole(identity, role string, overwrite bool) (publicKey string, filePath string, err error) {
	if err := CheckKeyName(identity); err != nil {
		return "", "", err
	}
	if err := CheckRole(role); err != nil {
		return "", "", err
	}
	rootSeed, err := ks.loadSeed(ks.keyBase(identity, ""))
	if err != nil {
		return "", "", err
	}
	roleSeed, err := DeriveRoleSeed(rootSeed, role)
	if err != nil {
		return "", "", err
	}
	publicKey, err = PublicKeyFromSeed(roleSeed)
	if err != nil {
		return "", "", err
	}
	filePath, err = ks.saveSeed(ks.keyBase(identity, role), roleSeed, overwrite)
	if err != nil {
		return "", "", err
	}
	return publicKey, filePath, nil
}

// ExportKey returns the encoded public key for identity (role "" is the root).
func (ks *KeyStore) ExportKey(identity, role string) (string, error) {
	s, err := ks.LoadSigner(identity, role)
	if err != nil {
		return "", err
	}
	return s.PublicKey(), nil
}

// LoadSigner returns an Ed25519 Signer for the stored root or role key.
func (ks *KeyStore) LoadSigner(identity, role string) (Signer, error) {
	return ks.LoadSignerFor(identity, role, Ed25519)
}

// LoadSignerFor returns a Signer of algorithm alg for the stored root or
// role key.
func (ks *KeyStore) LoadSignerFor(identity, role string, alg Algorithm) (Signer, error) {
	if err := CheckKeyName(identity); err != nil {
		return nil, err
	}
	if role != "" {
		if err := CheckRole(role); err != nil {
			return nil, err
		}
	}
	seed, err := ks.loadSeed(ks.keyBase(identity, role))
	if err != nil {
		return nil, err
	}
	return NewSigner(alg, seed)
}

func (ks *KeyStore) ListKeys() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var identities []string
	for _, entry := range entries {
		if entry.IsDir() {
			identities = append(identities, entry.Name())
		}
	}
	sort.Strings(identities)

	var result []KeyEntry
	for _, identity := range identities {
		roleEntries, rerr := os.ReadDir(filepath.Join(ks.Directory, identity, "roles"))
		var roles []string
		if rerr == nil {
			for _, roleEntry := range roleEntries {
				if roleEntry.IsDir() {
					continue
				}
				name := roleEntry.Name()
				switch {
				case strings.HasSuffix(name, encryptedSuffix):
					roles = append(roles, strings.TrimSuffix(name, encryptedSuffix))
				case strings.HasSuffix(name, plainSuffix):
					roles = append(roles, strings.TrimSuffix(name, plainSuffix))
				}
			}
			sort.Strings(roles)
		}
		result = append(result, KeyEntry{Identity: identity, Roles: roles})
	}
	return result, nil
}
