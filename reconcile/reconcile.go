// Package reconcile collapses the duplicates that fully offline peers can
// create for entities meant to be singletons: two votes by one voter on one
// assumption, two reactions by one reactor on one listing, two pins for one
// user, two live attestations for one pair, two tags with one normalized
// name.
//
// The outcome depends only on the document's content, never on merge order
// or on the local clock: the record with the lexicographically smallest id
// is kept, and where records carry a value, the value comes from the
// duplicate updated last (ties go to the smallest id). A value moved onto a
// different record loses its signature because the signature covers the id.
package reconcile

import (
	"xdao.co/commons/protocol"
	"xdao.co/commons/workspace"
)

// Report counts what a run removed or rewrote.
type Report struct {
	Tags         int `json:"tags"`
	Votes        int `json:"votes"`
	Reactions    int `json:"reactions"`
	Locations    int `json:"locations"`
	Attestations int `json:"attestations"`
	Orphans      int `json:"orphans"`
	Dangling     int `json:"dangling"`
}

// Changed reports whether the run modified the document.
func (r Report) Changed() bool {
	return r != (Report{})
}

type Reconciler struct {
	env *workspace.Env
}

func New(env *workspace.Env) *Reconciler {
	return &Reconciler{env: env}
}

// Run reconciles doc in place. Running it twice changes nothing the second
// time.
func (r *Reconciler) Run(doc *workspace.Document) Report {
	var rep Report
	rep.Attestations = attestations(doc)
	if d := doc.Discussion(); d != nil {
		rep.Tags = tags(d)
		rep.Orphans += orphanVotes(d)
		rep.Votes = votes(d)
		rep.Dangling += danglingDiscussion(d)
	}
	if m := doc.Marketplace(); m != nil {
		rep.Orphans += orphanReactions(m)
		rep.Reactions = reactions(m)
		rep.Dangling += danglingMarketplace(m)
	}
	if m := doc.Map(); m != nil {
		rep.Locations = locations(m)
	}
	if rep.Changed() {
		doc.Touch(r.env.Now())
		r.env.Log().Info("reconciled document",
			"tags", rep.Tags, "votes", rep.Votes, "reactions", rep.Reactions,
			"locations", rep.Locations, "attestations", rep.Attestations,
			"orphans", rep.Orphans, "dangling", rep.Dangling)
	}
	return rep
}

// newer reports whether a record stamped (at, id) beats one stamped
// (curAt, curID).
func newer(at int64, id string, curAt int64, curID string) bool {
	return at > curAt || (at == curAt && id < curID)
}

// group buckets the ids of m by key, visiting ids in ascending order so the
// first id of every bucket is the canonical one.
func group[T any](m map[string]*T, key func(*T) (string, bool)) (keys []string, buckets map[string][]string) {
	buckets = map[string][]string{}
	for _, id := range protocol.SortedKeys(m) {
		rec := m[id]
		if rec == nil {
			continue
		}
		k, ok := key(rec)
		if !ok {
			continue
		}
		if _, seen := buckets[k]; !seen {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], id)
	}
	return keys, buckets
}

func tags(d *workspace.DiscussionData) int {
	keys, buckets := group(d.Tags, func(t *workspace.Tag) (string, bool) {
		return protocol.NormalizeTagName(t.Name), true
	})
	replace := map[string]string{}
	for _, k := range keys {
		ids := buckets[k]
		for _, dup := range ids[1:] {
			replace[dup] = ids[0]
			delete(d.Tags, dup)
		}
	}
	if len(replace) == 0 {
		return 0
	}
	for _, aid := range protocol.SortedKeys(d.Assumptions) {
		if a := d.Assumptions[aid]; a != nil {
			retag(&a.TagIDs, replace)
		}
	}
	return len(replace)
}

// retag points every slot holding a duplicate tag at its canonical tag,
// scanning left to right. A slot whose canonical tag is already listed is
// excised instead.
func retag(list *[]string, replace map[string]string) {
	for i := 0; i < len(*list); {
		canonical, ok := replace[(*list)[i]]
		if !ok {
			i++
			continue
		}
		if protocol.IndexOf(*list, canonical) >= 0 {
			*list = append((*list)[:i:i], (*list)[i+1:]...)
			continue
		}
		(*list)[i] = canonical
		i++
	}
}

func orphanVotes(d *workspace.DiscussionData) int {
	n := 0
	for id, v := range d.Votes {
		if v == nil || d.Assumptions[v.AssumptionID] == nil {
			delete(d.Votes, id)
			n++
		}
	}
	return n
}

func votes(d *workspace.DiscussionData) int {
	keys, buckets := group(d.Votes, func(v *workspace.Vote) (string, bool) {
		return v.AssumptionID + "\x00" + v.VoterDID, true
	})
	n := 0
	for _, k := range keys {
		ids := buckets[k]
		canonical := d.Votes[ids[0]]
		a := d.Assumptions[canonical.AssumptionID]
		winner := canonical
		for _, id := range ids[1:] {
			if v := d.Votes[id]; newer(v.UpdatedAt, v.ID, winner.UpdatedAt, winner.ID) {
				winner = v
			}
		}
		if winner != canonical {
			canonical.Value = winner.Value
			canonical.UpdatedAt = winner.UpdatedAt
			canonical.Signature = ""
		}
		for _, id := range ids[1:] {
			protocol.RemoveID(&a.VoteIDs, id)
			delete(d.Votes, id)
			n++
		}
		if protocol.AppendID(&a.VoteIDs, canonical.ID) && len(ids) == 1 {
			n++
		}
	}
	return n
}

func danglingDiscussion(d *workspace.DiscussionData) int {
	n := 0
	for _, aid := range protocol.SortedKeys(d.Assumptions) {
		a := d.Assumptions[aid]
		if a == nil {
			continue
		}
		n += dropMissing(&a.TagIDs, func(id string) bool { return d.Tags[id] != nil })
		n += dropMissing(&a.VoteIDs, func(id string) bool {
			v := d.Votes[id]
			return v != nil && v.AssumptionID == a.ID
		})
	}
	return n
}

func orphanReactions(m *workspace.MarketplaceData) int {
	n := 0
	for id, r := range m.Reactions {
		if r == nil || m.Listings[r.ListingID] == nil {
			delete(m.Reactions, id)
			n++
		}
	}
	return n
}

func reactions(m *workspace.MarketplaceData) int {
	keys, buckets := group(m.Reactions, func(r *workspace.Reaction) (string, bool) {
		return r.ListingID + "\x00" + r.ReactorDID, true
	})
	n := 0
	for _, k := range keys {
		ids := buckets[k]
		canonical := m.Reactions[ids[0]]
		l := m.Listings[canonical.ListingID]
		for _, id := range ids[1:] {
			protocol.RemoveID(&l.ReactionIDs, id)
			delete(m.Reactions, id)
			n++
		}
		if protocol.AppendID(&l.ReactionIDs, canonical.ID) && len(ids) == 1 {
			n++
		}
	}
	return n
}

func danglingMarketplace(m *workspace.MarketplaceData) int {
	n := 0
	for _, lid := range protocol.SortedKeys(m.Listings) {
		l := m.Listings[lid]
		if l == nil {
			continue
		}
		n += dropMissing(&l.ReactionIDs, func(id string) bool {
			r := m.Reactions[id]
			return r != nil && r.ListingID == l.ID
		})
	}
	return n
}

func locations(m *workspace.MapData) int {
	keys, buckets := group(m.Locations, func(l *workspace.UserLocation) (string, bool) {
		return l.UserDID, true
	})
	n := 0
	for _, k := range keys {
		ids := buckets[k]
		canonical := m.Locations[ids[0]]
		winner := canonical
		for _, id := range ids[1:] {
			if l := m.Locations[id]; newer(l.UpdatedAt, l.ID, winner.UpdatedAt, winner.ID) {
				winner = l
			}
		}
		if winner != canonical {
			canonical.Lat, canonical.Lng = winner.Lat, winner.Lng
			canonical.Label = winner.Label
			canonical.UpdatedAt = winner.UpdatedAt
			canonical.Signature = ""
		}
		for _, id := range ids[1:] {
			delete(m.Locations, id)
			n++
		}
	}
	return n
}

// attestations folds live duplicates for one pair into the canonical record
// and revokes the rest. Attestations are never removed.
func attestations(doc *workspace.Document) int {
	keys, buckets := group(doc.TrustAttestations, func(a *workspace.TrustAttestation) (string, bool) {
		return a.AttesterID + "\x00" + a.TrusteeID, a.Live()
	})
	n := 0
	for _, k := range keys {
		ids := buckets[k]
		if len(ids) < 2 {
			continue
		}
		canonical := doc.TrustAttestations[ids[0]]
		winner := canonical
		for _, id := range ids[1:] {
			if a := doc.TrustAttestations[id]; newer(a.UpdatedAt, a.ID, winner.UpdatedAt, winner.ID) {
				winner = a
			}
		}
		if winner != canonical {
			canonical.Level = winner.Level
			canonical.Method = winner.Method
			canonical.UpdatedAt = winner.UpdatedAt
			canonical.Signature = ""
		}
		for _, id := range ids[1:] {
			at := canonical.UpdatedAt
			doc.TrustAttestations[id].RevokedAt = &at
			n++
		}
	}
	return n
}

func dropMissing(list *[]string, exists func(string) bool) int {
	n := 0
	for _, id := range protocol.Dedupe(*list) {
		if !exists(id) {
			n++
			protocol.RemoveID(list, id)
		}
	}
	if deduped := protocol.Dedupe(*list); len(deduped) != len(*list) {
		n += len(*list) - len(deduped)
		*list = deduped
	}
	return n
}
