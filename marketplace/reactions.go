package marketplace

import (
	"xdao.co/commons/keys"
	"xdao.co/commons/protocol"
	"xdao.co/commons/workspace"
)

// AddReaction records reactor's interest in a listing. A second call
// returns the existing reaction.
func (s *Service) AddReaction(doc *workspace.Document, reactor, listingID string, signer keys.Signer) (*workspace.Reaction, error) {
	if err := requireActor(reactor); err != nil {
		return nil, err
	}
	l := lookup(doc, listingID)
	if l == nil {
		s.env.Log().Debug("reaction dropped: listing not found", "listing", listingID, "reactor", reactor)
		return nil, nil
	}
	if r, ok := findReaction(doc.Marketplace(), l, reactor); ok {
		return r, nil
	}
	m, err := s.begin(doc, reactor, signer)
	if err != nil {
		return nil, err
	}
	now := s.env.Now()
	r := &workspace.Reaction{
		ID:         s.env.NewID(),
		ListingID:  l.ID,
		ReactorDID: reactor,
		CreatedAt:  now,
	}
	if r.Signature, err = sign(r.SigningPayload(), signer, "reaction"); err != nil {
		return nil, err
	}
	m.Reactions[r.ID] = r
	protocol.AppendID(&l.ReactionIDs, r.ID)
	doc.Touch(now)
	return r, nil
}

// RemoveReaction removes reactor's reaction from a listing. It reports
// whether a reaction was removed.
func (s *Service) RemoveReaction(doc *workspace.Document, reactor, listingID string) (bool, error) {
	if err := requireActor(reactor); err != nil {
		return false, err
	}
	l := lookup(doc, listingID)
	if l == nil {
		s.env.Log().Debug("reaction removal dropped: listing not found", "listing", listingID, "reactor", reactor)
		return false, nil
	}
	r, ok := findReaction(doc.Marketplace(), l, reactor)
	if !ok {
		return false, nil
	}
	m, err := s.prepare(doc, reactor, nil)
	if err != nil {
		return false, err
	}
	protocol.RemoveID(&l.ReactionIDs, r.ID)
	delete(m.Reactions, r.ID)
	doc.Touch(s.env.Now())
	return true, nil
}

// ToggleReaction adds reactor's reaction when absent and removes it
// otherwise. It reports whether the reactor has reacted afterwards.
func (s *Service) ToggleReaction(doc *workspace.Document, reactor, listingID string, signer keys.Signer) (bool, error) {
	if err := requireActor(reactor); err != nil {
		return false, err
	}
	if l := lookup(doc, listingID); l != nil {
		if _, ok := findReaction(doc.Marketplace(), l, reactor); ok {
			_, err := s.RemoveReaction(doc, reactor, listingID)
			return false, err
		}
	}
	r, err := s.AddReaction(doc, reactor, listingID, signer)
	return r != nil, err
}
