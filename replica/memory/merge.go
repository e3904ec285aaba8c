package memory

import (
	"bytes"

	"xdao.co/commons/codec"
	"xdao.co/commons/workspace"
)

// Merge returns the union of two replicas without modifying either. The
// result does not depend on argument order.
//
// Records present on one side are adopted. For a record present on both,
// the side with the later stamp (UpdatedAt, or CreatedAt for records that
// never change) wins its scalar fields; equal stamps fall back to comparing
// canonical encodings. Id lists become the winner's list followed by the
// loser's extra ids. A revocation on either side sticks.
func Merge(local, remote *workspace.Document) (*workspace.Document, error) {
	l, err := local.Clone()
	if err != nil {
		return nil, err
	}
	r, err := remote.Clone()
	if err != nil {
		return nil, err
	}
	workspace.Migrate(l, l.LastModified)
	workspace.Migrate(r, r.LastModified)

	first, second := order(l, r, func(d *workspace.Document) int64 { return d.LastModified })
	out := &workspace.Document{
		Version:           max(l.Version, r.Version),
		LastModified:      max(l.LastModified, r.LastModified),
		Context:           first.Context,
		EnabledModules:    map[workspace.ModuleID]bool{},
		Identities:        map[string]*workspace.Identity{},
		TrustAttestations: map[string]*workspace.TrustAttestation{},
	}
	for id, on := range second.EnabledModules {
		out.EnabledModules[id] = on
	}
	for id, on := range first.EnabledModules {
		out.EnabledModules[id] = on
	}

	out.Identities = mergeRecords(first.Identities, second.Identities, nil, func(w, o *workspace.Identity) {
		// Published keys are write-once: keep whichever side has one.
		switch {
		case w.PublicKey == nil:
			w.PublicKey = o.PublicKey
		case o.PublicKey != nil && *o.PublicKey < *w.PublicKey:
			w.PublicKey = o.PublicKey
		}
		if w.DisplayName == nil {
			w.DisplayName = o.DisplayName
		}
		if w.AvatarURL == nil {
			w.AvatarURL = o.AvatarURL
		}
	})
	out.TrustAttestations = mergeRecords(l.TrustAttestations, r.TrustAttestations,
		func(a *workspace.TrustAttestation) int64 { return a.UpdatedAt },
		func(w, o *workspace.TrustAttestation) {
			if o.RevokedAt != nil && (w.RevokedAt == nil || *o.RevokedAt < *w.RevokedAt) {
				w.RevokedAt = o.RevokedAt
			}
		})

	ld, rd := l.Discussion(), r.Discussion()
	out.Data.Discussion = &workspace.DiscussionData{
		Assumptions: mergeRecords(ld.Assumptions, rd.Assumptions,
			func(a *workspace.Assumption) int64 { return a.UpdatedAt },
			func(w, o *workspace.Assumption) {
				w.TagIDs = unionIDs(w.TagIDs, o.TagIDs)
				w.VoteIDs = unionIDs(w.VoteIDs, o.VoteIDs)
				w.EditLogIDs = unionIDs(w.EditLogIDs, o.EditLogIDs)
			}),
		Votes: mergeRecords(ld.Votes, rd.Votes, func(v *workspace.Vote) int64 { return v.UpdatedAt }, nil),
		Tags:  mergeRecords(ld.Tags, rd.Tags, func(t *workspace.Tag) int64 { return t.CreatedAt }, nil),
		Edits: mergeRecords(ld.Edits, rd.Edits, func(e *workspace.EditEntry) int64 { return e.CreatedAt }, nil),
	}

	lm, rm := l.Marketplace(), r.Marketplace()
	out.Data.Marketplace = &workspace.MarketplaceData{
		Listings: mergeRecords(lm.Listings, rm.Listings,
			func(x *workspace.Listing) int64 { return x.UpdatedAt },
			func(w, o *workspace.Listing) {
				w.ReactionIDs = unionIDs(w.ReactionIDs, o.ReactionIDs)
				// A terminal status reached on either side is kept.
				if !w.Status.Terminal() && o.Status.Terminal() {
					w.Status = o.Status
					w.Signature = ""
				}
			}),
		Reactions: mergeRecords(lm.Reactions, rm.Reactions, func(x *workspace.Reaction) int64 { return x.CreatedAt }, nil),
	}
	out.Data.Map = &workspace.MapData{
		Locations: mergeRecords(l.Map().Locations, r.Map().Locations, func(x *workspace.UserLocation) int64 { return x.UpdatedAt }, nil),
	}
	return out, nil
}

// mergeRecords unions two id-keyed maps. stamp may be nil, in which case
// conflicts are decided by encoding alone. combine, when set, folds the
// losing record into the winning one.
func mergeRecords[T any](a, b map[string]*T, stamp func(*T) int64, combine func(winner, loser *T)) map[string]*T {
	out := make(map[string]*T, len(a)+len(b))
	for id, rec := range a {
		if rec != nil {
			out[id] = rec
		}
	}
	for id, rec := range b {
		if rec == nil {
			continue
		}
		cur, ok := out[id]
		if !ok {
			out[id] = rec
			continue
		}
		winner, loser := order(cur, rec, stamp)
		if combine != nil {
			combine(winner, loser)
		}
		out[id] = winner
	}
	return out
}

// order returns (winner, loser) for two versions of one record.
func order[T any](a, b *T, stamp func(*T) int64) (*T, *T) {
	if stamp != nil {
		sa, sb := stamp(a), stamp(b)
		if sa != sb {
			if sa > sb {
				return a, b
			}
			return b, a
		}
	}
	ea, errA := codec.Marshal(a)
	eb, errB := codec.Marshal(b)
	if errA != nil || errB != nil || bytes.Compare(ea, eb) >= 0 {
		return a, b
	}
	return b, a
}

func unionIDs(first, second []string) []string {
	if first == nil && second == nil {
		return nil
	}
	out := make([]string, 0, len(first)+len(second))
	seen := make(map[string]struct{}, len(first)+len(second))
	for _, list := range [][]string{first, second} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
