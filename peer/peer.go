// Package peer is one participant's session on a replicated workspace.
//
// Every write runs inside a single replica.Handle.Change, so a validation
// failure anywhere in an operation leaves the document as it was. Records
// are returned by value; slices inside them may alias the committed state
// and must not be modified.
package peer

import (
	"context"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/commons/discussion"
	"xdao.co/commons/identity"
	"xdao.co/commons/keys"
	"xdao.co/commons/location"
	"xdao.co/commons/marketplace"
	"xdao.co/commons/reconcile"
	"xdao.co/commons/replica"
	"xdao.co/commons/snapshot"
	"xdao.co/commons/trust"
	"xdao.co/commons/workspace"
)

// Session binds an actor and an optional signer to an open document.
type Session struct {
	env    *workspace.Env
	handle replica.Handle
	actor  string
	signer keys.Signer

	identities *identity.Registry
	trust      *trust.Graph
	discussion *discussion.Service
	market     *marketplace.Service
	locations  *location.Service
	reconciler *reconcile.Reconciler
}

// New returns a session acting as actor. A nil signer writes unsigned
// records, which the strict signing mode rejects.
func New(env *workspace.Env, h replica.Handle, actor string, signer keys.Signer) (*Session, error) {
	if h == nil {
		return nil, workspace.Invalid("WS-PEER-001", "document handle is required")
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, workspace.Invalid("WS-PEER-002", "actor is required")
	}
	if env == nil {
		env = workspace.DefaultEnv()
	}
	return &Session{
		env:        env,
		handle:     h,
		actor:      actor,
		signer:     signer,
		identities: identity.New(env),
		trust:      trust.New(env),
		discussion: discussion.New(env),
		market:     marketplace.New(env),
		locations:  location.New(env),
		reconciler: reconcile.New(env),
	}, nil
}

func (s *Session) Actor() string          { return s.actor }
func (s *Session) Handle() replica.Handle { return s.handle }

// Document returns a private copy of the current state.
func (s *Session) Document() (*workspace.Document, error) {
	return s.handle.Snapshot()
}

func (s *Session) change(msg string, fn replica.ChangeFunc) error {
	if err := s.handle.Change(msg, fn); err != nil {
		s.env.Log().Debug("change rejected", "actor", s.actor, "change", msg, "error", err)
		return err
	}
	return nil
}

// PublishKey stores the signer's public key in the actor's profile. It
// reports false when a key was already published.
func (s *Session) PublishKey() (bool, error) {
	if s.signer == nil {
		return false, workspace.Invalid("WS-PEER-003", "no signer configured")
	}
	var stored bool
	err := s.change("publish key", func(doc *workspace.Document) error {
		var err error
		stored, err = s.identities.SetPublicKey(doc, s.actor, s.signer.PublicKey())
		return err
	})
	return stored, err
}

func (s *Session) SetProfile(u identity.ProfileUpdate) error {
	return s.change("set profile", func(doc *workspace.Document) error {
		return s.identities.UpdateProfile(doc, s.actor, u)
	})
}

// SetContext renames the workspace. A nil avatar keeps the current one.
func (s *Session) SetContext(name string, avatar *string) error {
	return s.change("set context", func(doc *workspace.Document) error {
		return workspace.SetContext(doc, name, avatar, s.env.Now())
	})
}

func (s *Session) SetModuleEnabled(id workspace.ModuleID, enabled bool) error {
	return s.change(fmt.Sprintf("set module %s", id), func(doc *workspace.Document) error {
		return workspace.SetModuleEnabled(doc, id, enabled, s.env.Now())
	})
}

func (s *Session) SetTrust(trustee string, level workspace.TrustLevel, method *string) (workspace.TrustAttestation, error) {
	var out workspace.TrustAttestation
	err := s.change("set trust", func(doc *workspace.Document) error {
		a, err := s.trust.SetTrust(doc, s.actor, trustee, level, method, s.signer)
		if err != nil {
			return err
		}
		out = *a
		return nil
	})
	return out, err
}

func (s *Session) RevokeTrust(trustee string) (bool, error) {
	var revoked bool
	err := s.change("revoke trust", func(doc *workspace.Document) error {
		var err error
		revoked, err = s.trust.RevokeTrust(doc, s.actor, trustee)
		return err
	})
	return revoked, err
}

func (s *Session) AddAssumption(sentence string, tags []string) (workspace.Assumption, error) {
	var out workspace.Assumption
	err := s.change("add assumption", func(doc *workspace.Document) error {
		a, err := s.discussion.CreateAssumption(doc, s.actor, sentence, tags, s.signer)
		if err != nil {
			return err
		}
		out = *a
		return nil
	})
	return out, err
}

// EditAssumption rewrites an assumption. found is false when the assumption
// does not exist, in which case nothing changes.
func (s *Session) EditAssumption(id, sentence string, tags []string) (out workspace.Assumption, found bool, err error) {
	err = s.change("edit assumption", func(doc *workspace.Document) error {
		a, err := s.discussion.UpdateAssumption(doc, s.actor, id, sentence, tags, s.signer)
		if err != nil || a == nil {
			return err
		}
		out, found = *a, true
		return nil
	})
	return out, found, err
}

func (s *Session) DeleteAssumption(id string) (bool, error) {
	var deleted bool
	err := s.change("delete assumption", func(doc *workspace.Document) error {
		var err error
		deleted, err = s.discussion.DeleteAssumption(doc, s.actor, id)
		return err
	})
	return deleted, err
}

// Vote casts or replaces the actor's vote. found is false when the
// assumption does not exist.
func (s *Session) Vote(assumptionID string, value workspace.VoteValue) (out workspace.Vote, found bool, err error) {
	err = s.change("vote", func(doc *workspace.Document) error {
		v, err := s.discussion.CastVote(doc, s.actor, assumptionID, value, s.signer)
		if err != nil || v == nil {
			return err
		}
		out, found = *v, true
		return nil
	})
	return out, found, err
}

func (s *Session) RetractVote(assumptionID string) (bool, error) {
	var retracted bool
	err := s.change("retract vote", func(doc *workspace.Document) error {
		var err error
		retracted, err = s.discussion.RetractVote(doc, s.actor, assumptionID)
		return err
	})
	return retracted, err
}

func (s *Session) EnsureTag(name string) (workspace.Tag, error) {
	var out workspace.Tag
	err := s.change("ensure tag", func(doc *workspace.Document) error {
		t, err := s.discussion.EnsureTag(doc, s.actor, name)
		if err != nil {
			return err
		}
		out = *t
		return nil
	})
	return out, err
}

func (s *Session) RenameTag(id, name string) (out workspace.Tag, found bool, err error) {
	err = s.change("rename tag", func(doc *workspace.Document) error {
		t, err := s.discussion.RenameTag(doc, s.actor, id, name)
		if err != nil || t == nil {
			return err
		}
		out, found = *t, true
		return nil
	})
	return out, found, err
}

func (s *Session) AddListing(d marketplace.Draft) (workspace.Listing, error) {
	var out workspace.Listing
	err := s.change("add listing", func(doc *workspace.Document) error {
		l, err := s.market.CreateListing(doc, s.actor, d, s.signer)
		if err != nil {
			return err
		}
		out = *l
		return nil
	})
	return out, err
}

func (s *Session) UpdateListing(id string, d marketplace.Draft) (out workspace.Listing, found bool, err error) {
	err = s.change("update listing", func(doc *workspace.Document) error {
		l, err := s.market.UpdateListing(doc, s.actor, id, d, s.signer)
		if err != nil || l == nil {
			return err
		}
		out, found = *l, true
		return nil
	})
	return out, found, err
}

func (s *Session) SetListingStatus(id string, status workspace.ListingStatus) (out workspace.Listing, found bool, err error) {
	err = s.change("set listing status", func(doc *workspace.Document) error {
		l, err := s.market.SetListingStatus(doc, s.actor, id, status, s.signer)
		if err != nil || l == nil {
			return err
		}
		out, found = *l, true
		return nil
	})
	return out, found, err
}

func (s *Session) DeleteListing(id string) (bool, error) {
	var deleted bool
	err := s.change("delete listing", func(doc *workspace.Document) error {
		var err error
		deleted, err = s.market.DeleteListing(doc, s.actor, id)
		return err
	})
	return deleted, err
}

// ToggleReaction adds the actor's reaction to a listing or removes it. It
// reports whether a reaction is present afterwards.
func (s *Session) ToggleReaction(listingID string) (bool, error) {
	var present bool
	err := s.change("toggle reaction", func(doc *workspace.Document) error {
		var err error
		present, err = s.market.ToggleReaction(doc, s.actor, listingID, s.signer)
		return err
	})
	return present, err
}

func (s *Session) SetLocation(lat, lng float64, label *string) (workspace.UserLocation, error) {
	var out workspace.UserLocation
	err := s.change("set location", func(doc *workspace.Document) error {
		l, err := s.locations.SetLocation(doc, s.actor, lat, lng, label, s.signer)
		if err != nil {
			return err
		}
		out = *l
		return nil
	})
	return out, err
}

func (s *Session) ClearLocation() (bool, error) {
	var removed bool
	err := s.change("clear location", func(doc *workspace.Document) error {
		var err error
		removed, err = s.locations.RemoveLocation(doc, s.actor)
		return err
	})
	return removed, err
}

// Reconcile collapses duplicate singleton records left by concurrent
// offline writes.
func (s *Session) Reconcile() (reconcile.Report, error) {
	var rep reconcile.Report
	err := s.change("reconcile", func(doc *workspace.Document) error {
		rep = s.reconciler.Run(doc)
		return nil
	})
	if err == nil && rep.Changed() {
		s.env.Log().Info("workspace reconciled", "actor", s.actor,
			"tags", rep.Tags, "votes", rep.Votes, "reactions", rep.Reactions,
			"locations", rep.Locations, "attestations", rep.Attestations,
			"orphans", rep.Orphans, "dangling", rep.Dangling)
	}
	return rep, err
}

// Merge folds a remote replica into the session's document and reconciles
// the result.
func (s *Session) Merge(remote *workspace.Document) (reconcile.Report, error) {
	if err := s.handle.Merge(remote); err != nil {
		return reconcile.Report{}, err
	}
	return s.Reconcile()
}

// Load opens the snapshot stored under name as a new document in engine.
// The document id is the head name.
func Load(ctx context.Context, engine replica.Engine, snaps *snapshot.Store, name string) (replica.Handle, cid.Cid, error) {
	doc, id, err := snaps.Load(ctx, name)
	if err != nil {
		return nil, cid.Undef, err
	}
	h, err := engine.Create(ctx, name, doc)
	if err != nil {
		return nil, cid.Undef, err
	}
	return h, id, nil
}

// Save writes the handle's current state under name.
func Save(ctx context.Context, h replica.Handle, snaps *snapshot.Store, name string) (cid.Cid, error) {
	doc, err := h.Snapshot()
	if err != nil {
		return cid.Undef, err
	}
	return snaps.Save(ctx, name, doc)
}
