// Package testenv builds deterministic environments for tests: a fake clock,
// sequential ids and seeded signers.
package testenv

import (
	"crypto/ed25519"
	"fmt"
	"sync"
	"testing"
	"time"

	"xdao.co/commons/clock"
	"xdao.co/commons/compliance"
	"xdao.co/commons/keys"
	"xdao.co/commons/workspace"
)

// Start is the fake clock's initial time.
var Start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Env is a workspace.Env with handles on its fake parts.
type Env struct {
	*workspace.Env
	Fake *clock.FakeClock
}

// New returns a permissive environment with ids "<prefix>-0001", ...
func New(prefix string) *Env {
	fake := clock.Fake(Start)
	var mu sync.Mutex
	n := 0
	env := workspace.DefaultEnv()
	env.Clock = fake
	env.IDs = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%04d", prefix, n)
	}
	return &Env{Env: env, Fake: fake}
}

// Strict returns New(prefix) with the strict signing policy.
func Strict(prefix string) *Env {
	e := New(prefix)
	e.Mode = compliance.Strict
	return e
}

// Tick advances the fake clock by one second.
func (e *Env) Tick() { e.Fake.Advance(time.Second) }

// Signer returns an Ed25519 signer whose seed is filled with b.
func Signer(t testing.TB, b byte) keys.Signer {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = b
	}
	s, err := keys.NewEd25519Signer(seed)
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}
	return s
}

// Document returns an empty workspace created by creator.
func Document(t testing.TB, env *Env, creator string) *workspace.Document {
	t.Helper()
	doc, err := workspace.CreateEmpty(env.Env, workspace.Identity{ID: creator}, "Test workspace", nil)
	if err != nil {
		t.Fatalf("CreateEmpty: %v", err)
	}
	return doc
}
