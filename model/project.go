package model

import (
	"sort"

	"xdao.co/commons/aggregate"
	"xdao.co/commons/discussion"
	"xdao.co/commons/identity"
	"xdao.co/commons/provenance"
	"xdao.co/commons/snapshot"
	"xdao.co/commons/workspace"
)

// Project builds the full view of doc. Lists are never nil so the JSON shape
// is stable for consumers.
func Project(doc *workspace.Document, opts ProjectOptions) (*WorkspaceView, error) {
	fp, err := snapshot.Fingerprint(doc)
	if err != nil {
		return nil, err
	}
	view := &WorkspaceView{
		ID:           opts.ID,
		Name:         doc.Context.Name,
		Avatar:       workspace.Value(doc.Context.Avatar),
		Version:      doc.Version,
		LastModified: doc.LastModified,
		Fingerprint:  fp,
		Modules:      []ModuleView{},
		Identities:   Identities(doc),
		Trust:        Trust(doc, opts.Hidden),
		Assumptions:  Assumptions(doc, opts),
		Listings:     Listings(doc, opts),
		Locations:    Locations(doc, opts.Hidden),
		Provenance:   map[string]int{},
	}
	for _, m := range workspace.Modules() {
		view.Modules = append(view.Modules, ModuleView{
			ID:      string(m.ID),
			Title:   m.Title,
			Enabled: workspace.ModuleEnabled(doc, m.ID),
		})
	}
	for status, n := range provenance.Audit(doc) {
		view.Provenance[string(status)] = n
	}
	return view, nil
}

// Identities lists every registered participant sorted by id.
func Identities(doc *workspace.Document) []IdentityView {
	out := make([]IdentityView, 0, len(doc.Identities))
	for id := range doc.Identities {
		ident, ok := identity.Lookup(doc, id)
		if !ok {
			continue
		}
		out = append(out, IdentityView{
			ID:          ident.ID,
			DisplayName: identity.DisplayName(doc, id),
			AvatarURL:   workspace.Value(ident.AvatarURL),
			PublicKey:   workspace.Value(ident.PublicKey),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Trust lists attestations, revoked ones included, oldest first. Attestations
// made by hidden participants are left out.
func Trust(doc *workspace.Document, hidden aggregate.Hidden) []TrustView {
	list := make([]*workspace.TrustAttestation, 0, len(doc.TrustAttestations))
	for _, a := range doc.TrustAttestations {
		if a != nil && !hidden.Has(a.AttesterID) {
			list = append(list, a)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt < list[j].CreatedAt
		}
		return list[i].ID < list[j].ID
	})
	out := make([]TrustView, 0, len(list))
	for _, a := range list {
		out = append(out, TrustView{
			ID:        a.ID,
			Attester:  a.AttesterID,
			Trustee:   a.TrusteeID,
			Level:     string(a.Level),
			Method:    workspace.Value(a.Method),
			CreatedAt: a.CreatedAt,
			UpdatedAt: a.UpdatedAt,
			RevokedAt: a.RevokedAt,
			Signature: string(provenance.CheckAttestation(doc, a)),
		})
	}
	return out
}

// Assumptions lists visible assumptions, oldest first.
func Assumptions(doc *workspace.Document, opts ProjectOptions) []AssumptionView {
	list := aggregate.VisibleAssumptions(doc, opts.Hidden)
	out := make([]AssumptionView, 0, len(list))
	for _, a := range list {
		out = append(out, assumptionView(doc, a, opts))
	}
	return out
}

// Assumption returns the detail view of one assumption, or nil when it does
// not exist.
func Assumption(doc *workspace.Document, assumptionID string, opts ProjectOptions) *AssumptionDetail {
	a := discussion.Assumption(doc, assumptionID)
	if a == nil {
		return nil
	}
	detail := &AssumptionDetail{AssumptionView: assumptionView(doc, a, opts), History: []EditView{}}
	for _, e := range discussion.EditHistory(doc, assumptionID) {
		detail.History = append(detail.History, EditView{
			ID:               e.ID,
			Editor:           e.EditorDID,
			Type:             string(e.Type),
			PreviousSentence: e.PreviousSentence,
			NewSentence:      e.NewSentence,
			PreviousTags:     e.PreviousTags,
			NewTags:          e.NewTags,
			CreatedAt:        e.CreatedAt,
			Signature:        string(provenance.CheckEdit(doc, e)),
		})
	}
	return detail
}

func assumptionView(doc *workspace.Document, a *workspace.Assumption, opts ProjectOptions) AssumptionView {
	tags := []TagView{}
	for _, t := range discussion.TagsFor(doc, a.ID) {
		tags = append(tags, TagView{ID: t.ID, Name: t.Name})
	}
	s := aggregate.VoteSummary(doc, a.ID, opts.Viewer, opts.Hidden)
	tally := VoteTally{Green: s.Green, Yellow: s.Yellow, Red: s.Red, Total: s.Total}
	if s.Own != nil {
		tally.Own = string(*s.Own)
	}
	return AssumptionView{
		ID:        a.ID,
		Sentence:  a.Sentence,
		CreatedBy: a.CreatedBy,
		Author:    identity.DisplayName(doc, a.CreatedBy),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
		Tags:      tags,
		Votes:     tally,
		Edits:     len(discussion.EditHistory(doc, a.ID)),
		Signature: string(provenance.CheckAssumption(doc, a)),
	}
}

// Listings lists visible listings matching opts.Listings, newest first.
func Listings(doc *workspace.Document, opts ProjectOptions) []ListingView {
	list := aggregate.VisibleListings(doc, opts.Hidden, opts.Listings)
	out := make([]ListingView, 0, len(list))
	for _, l := range list {
		out = append(out, ListingView{
			ID:          l.ID,
			Type:        string(l.Type),
			Title:       l.Title,
			Description: l.Description,
			CategoryID:  l.CategoryID,
			Status:      string(l.Status),
			CreatedBy:   l.CreatedBy,
			Author:      identity.DisplayName(doc, l.CreatedBy),
			CreatedAt:   l.CreatedAt,
			UpdatedAt:   l.UpdatedAt,
			Location:    workspace.Value(l.Location),
			Reactions:   aggregate.ReactionCount(doc, l.ID, opts.Hidden),
			Reacted:     opts.Viewer != "" && aggregate.HasReacted(doc, l.ID, opts.Viewer),
			Signature:   string(provenance.CheckListing(doc, l)),
		})
	}
	return out
}

// Locations lists one pin per visible participant, sorted by participant.
func Locations(doc *workspace.Document, hidden aggregate.Hidden) []LocationView {
	list := aggregate.VisibleLocations(doc, hidden)
	out := make([]LocationView, 0, len(list))
	for _, loc := range list {
		out = append(out, LocationView{
			User:      loc.UserDID,
			Name:      identity.DisplayName(doc, loc.UserDID),
			Lat:       loc.Lat,
			Lng:       loc.Lng,
			Label:     workspace.Value(loc.Label),
			UpdatedAt: loc.UpdatedAt,
			Signature: string(provenance.CheckLocation(doc, loc)),
		})
	}
	return out
}
