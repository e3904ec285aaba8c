// Package provenance classifies stored entities by the signature of their
// author, looked up in the document's identity registry.
//
// Results are display flags. An entity that fails verification stays in the
// document; it is shown as unverified.
package provenance

import (
	"xdao.co/commons/identity"
	"xdao.co/commons/signing"
	"xdao.co/commons/workspace"
)

func check(doc *workspace.Document, author string, payload any, signature string) signing.Status {
	return signing.Check(payload, signature, identity.PublicKey(doc, author))
}

func CheckAssumption(doc *workspace.Document, a *workspace.Assumption) signing.Status {
	return check(doc, a.CreatedBy, a.SigningPayload(), a.Signature)
}

func CheckVote(doc *workspace.Document, v *workspace.Vote) signing.Status {
	return check(doc, v.VoterDID, v.SigningPayload(), v.Signature)
}

func CheckEdit(doc *workspace.Document, e *workspace.EditEntry) signing.Status {
	return check(doc, e.EditorDID, e.SigningPayload(), e.Signature)
}

func CheckListing(doc *workspace.Document, l *workspace.Listing) signing.Status {
	return check(doc, l.CreatedBy, l.SigningPayload(), l.Signature)
}

func CheckReaction(doc *workspace.Document, r *workspace.Reaction) signing.Status {
	return check(doc, r.ReactorDID, r.SigningPayload(), r.Signature)
}

func CheckLocation(doc *workspace.Document, l *workspace.UserLocation) signing.Status {
	return check(doc, l.UserDID, l.SigningPayload(), l.Signature)
}

func CheckAttestation(doc *workspace.Document, a *workspace.TrustAttestation) signing.Status {
	return check(doc, a.AttesterID, a.SigningPayload(), a.Signature)
}

// Tally counts entities per status.
type Tally map[signing.Status]int

// Audit classifies every signable entity in doc.
func Audit(doc *workspace.Document) Tally {
	t := Tally{}
	for _, a := range doc.TrustAttestations {
		t[CheckAttestation(doc, a)]++
	}
	if d := doc.Discussion(); d != nil {
		for _, a := range d.Assumptions {
			t[CheckAssumption(doc, a)]++
		}
		for _, v := range d.Votes {
			t[CheckVote(doc, v)]++
		}
		for _, e := range d.Edits {
			t[CheckEdit(doc, e)]++
		}
	}
	if m := doc.Marketplace(); m != nil {
		for _, l := range m.Listings {
			t[CheckListing(doc, l)]++
		}
		for _, r := range m.Reactions {
			t[CheckReaction(doc, r)]++
		}
	}
	if m := doc.Map(); m != nil {
		for _, l := range m.Locations {
			t[CheckLocation(doc, l)]++
		}
	}
	return t
}
