// Package marketplace implements listings and the reactions participants
// leave on them.
//
// A listing moves from active to fulfilled or cancelled and stays there.
// Reactions are keyed by (listing, reactor); removal looks the reaction up
// by that pair rather than trusting an id from the caller.
package marketplace

import (
	"strings"

	"xdao.co/commons/identity"
	"xdao.co/commons/keys"
	"xdao.co/commons/protocol"
	"xdao.co/commons/signing"
	"xdao.co/commons/workspace"
)

// Draft is the caller-supplied content of a listing.
type Draft struct {
	Type        workspace.ListingType
	Title       string
	Description string
	CategoryID  string
	Location    *string
}

func (d Draft) normalize() (Draft, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.CategoryID = strings.TrimSpace(d.CategoryID)
	switch {
	case !d.Type.Valid():
		return d, workspace.Invalid("WS-MKT-002", "unknown listing type "+string(d.Type))
	case d.Title == "":
		return d, workspace.Invalid("WS-MKT-003", "listing title is required")
	case d.CategoryID == "":
		return d, workspace.Invalid("WS-MKT-004", "listing category is required")
	}
	if d.Location != nil {
		d.Location = workspace.Optional(*d.Location)
	}
	return d, nil
}

// Service mutates the marketplace module of a document.
type Service struct {
	env *workspace.Env
	ids *identity.Registry
}

func New(env *workspace.Env) *Service {
	return &Service{env: env, ids: identity.New(env)}
}

func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return workspace.Invalid("WS-MKT-001", "actor identity is required")
	}
	return nil
}

func (s *Service) begin(doc *workspace.Document, actor string, signer keys.Signer) (*workspace.MarketplaceData, error) {
	if err := s.env.CheckSigner(signer); err != nil {
		return nil, err
	}
	return s.prepare(doc, actor, signer)
}

func (s *Service) prepare(doc *workspace.Document, actor string, signer keys.Signer) (*workspace.MarketplaceData, error) {
	if _, err := workspace.EnsureModule(doc, workspace.ModuleMarketplace, s.env.Now()); err != nil {
		return nil, err
	}
	if err := s.ids.Contribute(doc, actor, signer); err != nil {
		return nil, err
	}
	return doc.Marketplace(), nil
}

func sign(payload any, signer keys.Signer, what string) (string, error) {
	if signer == nil {
		return "", nil
	}
	sig, err := signing.Sign(payload, signer)
	if err != nil {
		return "", workspace.WrapError(workspace.KindInternal, "WS-SIGN-002", "sign "+what, err)
	}
	return sig, nil
}

// CreateListing publishes a new active listing.
func (s *Service) CreateListing(doc *workspace.Document, actor string, draft Draft, signer keys.Signer) (*workspace.Listing, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	draft, err := draft.normalize()
	if err != nil {
		return nil, err
	}
	m, err := s.begin(doc, actor, signer)
	if err != nil {
		return nil, err
	}
	now := s.env.Now()
	l := &workspace.Listing{
		ID:          s.env.NewID(),
		Type:        draft.Type,
		Title:       draft.Title,
		Description: draft.Description,
		CategoryID:  draft.CategoryID,
		Status:      workspace.ListingActive,
		CreatedBy:   actor,
		CreatedAt:   now,
		UpdatedAt:   now,
		Location:    draft.Location,
		ReactionIDs: []string{},
	}
	if l.Signature, err = sign(l.SigningPayload(), signer, "listing"); err != nil {
		return nil, err
	}
	m.Listings[l.ID] = l
	doc.Touch(now)
	s.env.Log().Debug("listing created", "listing", l.ID, "actor", actor, "type", l.Type)
	return l, nil
}

// UpdateListing replaces the content of a listing. Only the listing's
// creator may edit it, and only while it is active.
func (s *Service) UpdateListing(doc *workspace.Document, actor, listingID string, draft Draft, signer keys.Signer) (*workspace.Listing, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	draft, err := draft.normalize()
	if err != nil {
		return nil, err
	}
	l := lookup(doc, listingID)
	if l == nil {
		s.env.Log().Debug("update dropped: listing not found", "listing", listingID)
		return nil, nil
	}
	if l.CreatedBy != actor {
		return nil, workspace.Invalid("WS-MKT-005", "only the creator may change a listing")
	}
	if l.Status.Terminal() {
		return nil, workspace.Invalid("WS-MKT-006", "listing is "+string(l.Status))
	}
	if _, err := s.begin(doc, actor, signer); err != nil {
		return nil, err
	}
	if l.Type == draft.Type && l.Title == draft.Title && l.Description == draft.Description &&
		l.CategoryID == draft.CategoryID && workspace.Value(l.Location) == workspace.Value(draft.Location) {
		return l, nil
	}
	now := s.env.Now()
	l.Type = draft.Type
	l.Title = draft.Title
	l.Description = draft.Description
	l.CategoryID = draft.CategoryID
	l.Location = draft.Location
	l.UpdatedAt = now
	if err := s.resign(l, signer); err != nil {
		return nil, err
	}
	doc.Touch(now)
	return l, nil
}

// SetListingStatus moves an active listing to fulfilled or cancelled.
// Terminal listings do not move again; reopening means a new listing.
func (s *Service) SetListingStatus(doc *workspace.Document, actor, listingID string, status workspace.ListingStatus, signer keys.Signer) (*workspace.Listing, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, workspace.Invalid("WS-MKT-007", "unknown listing status "+string(status))
	}
	l := lookup(doc, listingID)
	if l == nil {
		s.env.Log().Debug("status change dropped: listing not found", "listing", listingID)
		return nil, nil
	}
	if l.CreatedBy != actor {
		return nil, workspace.Invalid("WS-MKT-005", "only the creator may change a listing")
	}
	if l.Status == status {
		return l, nil
	}
	if !l.Status.CanTransition(status) {
		return nil, workspace.Invalid("WS-MKT-008", "cannot move listing from "+string(l.Status)+" to "+string(status))
	}
	if _, err := s.begin(doc, actor, signer); err != nil {
		return nil, err
	}
	now := s.env.Now()
	l.Status = status
	l.UpdatedAt = now
	if err := s.resign(l, signer); err != nil {
		return nil, err
	}
	doc.Touch(now)
	s.env.Log().Debug("listing status changed", "listing", l.ID, "status", status)
	return l, nil
}

// DeleteListing removes a listing and its reactions. Only the creator may
// delete it.
func (s *Service) DeleteListing(doc *workspace.Document, actor, listingID string) (bool, error) {
	if err := requireActor(actor); err != nil {
		return false, err
	}
	l := lookup(doc, listingID)
	if l == nil {
		return false, nil
	}
	if l.CreatedBy != actor {
		return false, workspace.Invalid("WS-MKT-005", "only the creator may change a listing")
	}
	m, err := s.prepare(doc, actor, nil)
	if err != nil {
		return false, err
	}
	for _, id := range l.ReactionIDs {
		delete(m.Reactions, id)
	}
	for id, r := range m.Reactions {
		if r != nil && r.ListingID == listingID {
			delete(m.Reactions, id)
		}
	}
	delete(m.Listings, listingID)
	doc.Touch(s.env.Now())
	s.env.Log().Debug("listing deleted", "listing", listingID, "actor", actor)
	return true, nil
}

func (s *Service) resign(l *workspace.Listing, signer keys.Signer) error {
	sig, err := sign(l.SigningPayload(), signer, "listing")
	if err != nil {
		return err
	}
	l.Signature = sig
	return nil
}

func lookup(doc *workspace.Document, listingID string) *workspace.Listing {
	m := doc.Marketplace()
	if m == nil {
		return nil
	}
	return m.Listings[listingID]
}

// Listing returns the stored listing, or nil.
func Listing(doc *workspace.Document, listingID string) *workspace.Listing {
	return lookup(doc, listingID)
}

// findReaction returns reactor's reaction on l.
func findReaction(m *workspace.MarketplaceData, l *workspace.Listing, reactor string) (*workspace.Reaction, bool) {
	return protocol.FindByKey(l.ReactionIDs, m.Reactions, func(r *workspace.Reaction) bool { return r.ReactorDID == reactor })
}
