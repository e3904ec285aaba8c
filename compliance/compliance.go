// Package compliance selects how strictly writes are held to the signing
// policy of a workspace.
package compliance

import "fmt"

// ComplianceMode selects whether unsigned writes are accepted.
//
// Permissive accepts entities without a signature when the author has no
// private key available; they are stored and later reported as unsigned.
// Strict rejects any write that cannot be signed, before the document is
// touched.
type ComplianceMode int

const (
	Permissive ComplianceMode = iota
	Strict
)

func (m ComplianceMode) String() string {
	switch m {
	case Strict:
		return "strict"
	default:
		return "permissive"
	}
}

// RequiresSignature reports whether writes must carry a signature.
func (m ComplianceMode) RequiresSignature() bool { return m == Strict }

// Parse maps a config value to a mode. The empty string is Permissive.
func Parse(s string) (ComplianceMode, error) {
	switch s {
	case "", "permissive":
		return Permissive, nil
	case "strict":
		return Strict, nil
	default:
		return Permissive, fmt.Errorf("compliance: unknown mode %q", s)
	}
}
