package keys

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestKeyStore_RootAndRoleKeys(t *testing.T) {
	ks := &KeyStore{Directory: t.TempDir()}
	pub, path, err := ks.InitializeRootKey("did:example:alice", seedOf(7), false)
	if err != nil {
		t.Fatalf("InitializeRootKey: %v", err)
	}
	if !strings.HasSuffix(path, "root.key") {
		t.Fatalf("unexpected path %s", path)
	}
	if info, err := os.Stat(path); err != nil || info.Mode().Perm() != 0o600 {
		t.Fatalf("key file mode: %v %v", info, err)
	}

	if _, _, err := ks.InitializeRootKey("did:example:alice", seedOf(8), false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}

	exported, err := ks.ExportKey("did:example:alice", "")
	if err != nil {
		t.Fatalf("ExportKey: %v", err)
	}
	if exported != pub {
		t.Fatalf("exported key mismatch")
	}

	rolePub, _, err := ks.DeriveKeyFromRole("did:example:alice", "phone", false)
	if err != nil {
		t.Fatalf("DeriveKeyFromRole: %v", err)
	}
	if rolePub == pub {
		t.Fatalf("role key equals root key")
	}

	entries, err := ks.ListKeys()
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(entries) != 1 || entries[0].Identity != "did:example:alice" || len(entries[0].Roles) != 1 || entries[0].Roles[0] != "phone" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestKeyStore_Encrypted(t *testing.T) {
	dir := t.TempDir()
	ks := &KeyStore{Directory: dir, Passphrase: "correct horse", ScryptWorkFactor: 10}
	pub, path, err := ks.InitializeRootKey("bob", seedOf(9), false)
	if err != nil {
		t.Fatalf("InitializeRootKey: %v", err)
	}
	if filepath.Ext(path) != ".age" {
		t.Fatalf("expected encrypted file, got %s", path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(raw), "0909090909") {
		t.Fatalf("seed stored in clear text")
	}

	signer, err := ks.LoadSigner("bob", "")
	if err != nil {
		t.Fatalf("LoadSigner: %v", err)
	}
	if signer.PublicKey() != pub {
		t.Fatalf("public key mismatch after decrypt")
	}

	locked := &KeyStore{Directory: dir}
	if _, err := locked.LoadSigner("bob", ""); err == nil {
		t.Fatalf("expected error without passphrase")
	}
	wrong := &KeyStore{Directory: dir, Passphrase: "wrong"}
	if _, err := wrong.LoadSigner("bob", ""); err == nil {
		t.Fatalf("expected error with wrong passphrase")
	}
}

func TestKeyStore_Missing(t *testing.T) {
	ks := &KeyStore{Directory: t.TempDir()}
	if _, err := ks.LoadSigner("nobody", ""); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey, got %v", err)
	}
	if err := CheckKeyName("../etc"); err == nil {
		t.Fatalf("expected invalid identity")
	}
	entries, err := (&KeyStore{Directory: filepath.Join(t.TempDir(), "absent")}).ListKeys()
	if err != nil || entries != nil {
		t.Fatalf("ListKeys on missing dir: %v %v", entries, err)
	}
}

func TestKeyStore_LoadSignerFor(t *testing.T) {
	ks := &KeyStore{Directory: t.TempDir()}
	edPub, _, err := ks.InitializeRootKey("carol", seedOf(4), false)
	if err != nil {
		t.Fatalf("InitializeRootKey: %v", err)
	}
	pq, err := ks.LoadSignerFor("carol", "", Dilithium3)
	if err != nil {
		t.Fatalf("LoadSignerFor: %v", err)
	}
	if pq.Algorithm() != Dilithium3 || pq.PublicKey() == edPub {
		t.Fatalf("expected a distinct dilithium3 key, got %q", pq.Algorithm())
	}
	if !strings.HasPrefix(pq.PublicKey(), "dilithium3:") {
		t.Fatalf("unexpected key encoding %q", pq.PublicKey()[:16])
	}
}
