package workspace

import (
	"io"
	"log/slog"

	"github.com/google/uuid"

	"xdao.co/commons/clock"
	"xdao.co/commons/compliance"
	"xdao.co/commons/keys"
)

// Env is the explicit context every component is constructed with. Nothing
// in this module reads a package-level document, clock or logger.
type Env struct {
	Clock  clock.Clock
	IDs    func() string
	Logger *slog.Logger
	Mode   compliance.ComplianceMode
}

// DefaultEnv returns an Env with the real clock, UUIDv7 ids, a discarding
// logger and the permissive signing mode.
func DefaultEnv() *Env {
	return &Env{
		Clock:  clock.Real(),
		IDs:    NewUUID,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Mode:   compliance.Permissive,
	}
}

// NewUUID returns a time-ordered UUIDv7 string, falling back to v4.
func NewUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Now returns the current time in Unix milliseconds.
func (e *Env) Now() int64 {
	if e == nil || e.Clock == nil {
		return clock.Millis(clock.Real())
	}
	return clock.Millis(e.Clock)
}

// NewID returns a fresh entity id.
func (e *Env) NewID() string {
	if e == nil || e.IDs == nil {
		return NewUUID()
	}
	return e.IDs()
}

// Log returns the configured logger, never nil.
func (e *Env) Log() *slog.Logger {
	if e == nil || e.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e.Logger
}

// CheckSigner enforces the signing policy before any mutation: in strict mode
// a write without a signer is rejected.
func (e *Env) CheckSigner(signer keys.Signer) error {
	if e != nil && e.Mode.RequiresSignature() && signer == nil {
		return Invalid("WS-SIGN-001", "signing is required by policy and no signer key is available")
	}
	return nil
}
