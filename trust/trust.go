// Package trust maintains directed attestations between identities.
//
// Attestations are never removed. Revoking stamps RevokedAt on the live
// record and a later SetTrust appends a fresh record, so concurrent revoke
// and re-trust merge field by field on stable ids.
package trust

import (
	"sort"
	"strings"

	"xdao.co/commons/identity"
	"xdao.co/commons/keys"
	"xdao.co/commons/protocol"
	"xdao.co/commons/signing"
	"xdao.co/commons/workspace"
)

// Graph mutates and queries the attestations of a document.
type Graph struct {
	env *workspace.Env
	ids *identity.Registry
}

func New(env *workspace.Env) *Graph {
	return &Graph{env: env, ids: identity.New(env)}
}

// SetTrust records that attester vouches for trustee at level. A live
// attestation for the pair is updated in place; otherwise a new one is
// appended. The returned record is the one written.
func (g *Graph) SetTrust(doc *workspace.Document, attester, trustee string, level workspace.TrustLevel, method *string, signer keys.Signer) (*workspace.TrustAttestation, error) {
	attester, trustee = strings.TrimSpace(attester), strings.TrimSpace(trustee)
	switch {
	case attester == "" || trustee == "":
		return nil, workspace.Invalid("WS-TRUST-001", "attester and trustee are required")
	case attester == trustee:
		return nil, workspace.Invalid("WS-TRUST-002", "an identity cannot attest to itself")
	case !level.Valid():
		return nil, workspace.Invalid("WS-TRUST-003", "unknown trust level "+string(level))
	}
	if err := g.env.CheckSigner(signer); err != nil {
		return nil, err
	}
	if err := g.ids.Contribute(doc, attester, signer); err != nil {
		return nil, err
	}
	if doc.TrustAttestations == nil {
		doc.TrustAttestations = map[string]*workspace.TrustAttestation{}
	}

	now := g.env.Now()
	_, att, found := live(doc, attester, trustee)
	if found {
		att.Level = level
		if method != nil {
			att.Method = workspace.Optional(*method)
		}
		att.UpdatedAt = now
	} else {
		att = &workspace.TrustAttestation{
			ID:         g.env.NewID(),
			AttesterID: attester,
			TrusteeID:  trustee,
			Level:      level,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if method != nil {
			att.Method = workspace.Optional(*method)
		}
		doc.TrustAttestations[att.ID] = att
	}
	att.Signature = ""
	if signer != nil {
		sig, err := signing.Sign(att.SigningPayload(), signer)
		if err != nil {
			return nil, workspace.WrapError(workspace.KindInternal, "WS-SIGN-002", "sign attestation", err)
		}
		att.Signature = sig
	}
	doc.Touch(now)
	g.env.Log().Debug("trust set", "attester", attester, "trustee", trustee, "level", level, "updated", found)
	return att, nil
}

// RevokeTrust marks the live attestation from attester to trustee as
// revoked. It reports whether anything was revoked.
func (g *Graph) RevokeTrust(doc *workspace.Document, attester, trustee string) (bool, error) {
	if strings.TrimSpace(attester) == "" || strings.TrimSpace(trustee) == "" {
		return false, workspace.Invalid("WS-TRUST-001", "attester and trustee are required")
	}
	_, att, found := live(doc, attester, trustee)
	if !found {
		g.env.Log().Debug("no live attestation to revoke", "attester", attester, "trustee", trustee)
		return false, nil
	}
	now := g.env.Now()
	att.RevokedAt = &now
	doc.Touch(now)
	return true, nil
}

// live returns the live attestation for the pair. Should concurrent peers
// have created several, the smallest id is used.
func live(doc *workspace.Document, attester, trustee string) (string, *workspace.TrustAttestation, bool) {
	return protocol.FindInMap(doc.TrustAttestations, func(a *workspace.TrustAttestation) bool {
		return a.Live() && a.AttesterID == attester && a.TrusteeID == trustee
	})
}

// Given returns the live attestations made by id, oldest first.
func Given(doc *workspace.Document, id string) []*workspace.TrustAttestation {
	return filter(doc, func(a *workspace.TrustAttestation) bool { return a.AttesterID == id })
}

// Received returns the live attestations about id, oldest first.
func Received(doc *workspace.Document, id string) []*workspace.TrustAttestation {
	return filter(doc, func(a *workspace.TrustAttestation) bool { return a.TrusteeID == id })
}

// History returns every attestation between the pair, revoked ones
// included, oldest first.
func History(doc *workspace.Document, attester, trustee string) []*workspace.TrustAttestation {
	var out []*workspace.TrustAttestation
	for _, a := range doc.TrustAttestations {
		if a != nil && a.AttesterID == attester && a.TrusteeID == trustee {
			out = append(out, a)
		}
	}
	sortAttestations(out)
	return out
}

// Level returns the live level attester grants trustee, or TrustNone.
func Level(doc *workspace.Document, attester, trustee string) workspace.TrustLevel {
	if _, a, ok := live(doc, attester, trustee); ok {
		return a.Level
	}
	return workspace.TrustNone
}

func filter(doc *workspace.Document, keep func(*workspace.TrustAttestation) bool) []*workspace.TrustAttestation {
	var out []*workspace.TrustAttestation
	for _, a := range doc.TrustAttestations {
		if a != nil && a.Live() && keep(a) {
			out = append(out, a)
		}
	}
	sortAttestations(out)
	return out
}

func sortAttestations(list []*workspace.TrustAttestation) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt < list[j].CreatedAt
		}
		return list[i].ID < list[j].ID
	})
}
