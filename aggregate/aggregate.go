// Package aggregate derives read-only views from a document: vote tallies,
// reaction projections and lists filtered by hidden participants.
//
// Every function rescans the document on each call. Nothing is cached, so
// there is nothing to invalidate when a merge lands.
//
// Until reconciliation runs, concurrent offline peers can leave two votes
// (or reactions) by the same participant on one subject. Projections count
// each participant once, using the most recently updated record.
package aggregate

import (
	"sort"

	"xdao.co/commons/workspace"
)

// Hidden is a set of identity ids whose contributions are excluded.
type Hidden map[string]struct{}

// HideAll returns a Hidden set of ids.
func HideAll(ids ...string) Hidden {
	h := make(Hidden, len(ids))
	for _, id := range ids {
		h[id] = struct{}{}
	}
	return h
}

// Has reports whether id is hidden. A nil set hides nobody.
func (h Hidden) Has(id string) bool {
	_, ok := h[id]
	return ok
}

// Summary is the tally of an assumption's votes.
type Summary struct {
	Green  int                  `json:"green"`
	Yellow int                  `json:"yellow"`
	Red    int                  `json:"red"`
	Total  int                  `json:"total"`
	Own    *workspace.VoteValue `json:"ownVote,omitempty"`
}

// VoteSummary tallies the votes on an assumption, skipping hidden voters,
// and surfaces viewer's own vote.
func VoteSummary(doc *workspace.Document, assumptionID, viewer string, hidden Hidden) Summary {
	var s Summary
	for _, v := range votes(doc, assumptionID) {
		if v.VoterDID == viewer {
			value := v.Value
			s.Own = &value
		}
		if hidden.Has(v.VoterDID) {
			continue
		}
		switch v.Value {
		case workspace.VoteGreen:
			s.Green++
		case workspace.VoteYellow:
			s.Yellow++
		case workspace.VoteRed:
			s.Red++
		default:
			continue
		}
		s.Total++
	}
	return s
}

// votes resolves an assumption's vote ids, one vote per voter.
func votes(doc *workspace.Document, assumptionID string) []*workspace.Vote {
	d := doc.Discussion()
	if d == nil || d.Assumptions[assumptionID] == nil {
		return nil
	}
	latest := map[string]*workspace.Vote{}
	var order []string
	for _, id := range d.Assumptions[assumptionID].VoteIDs {
		v := d.Votes[id]
		if v == nil || v.AssumptionID != assumptionID {
			continue
		}
		cur, seen := latest[v.VoterDID]
		if !seen {
			order = append(order, v.VoterDID)
			latest[v.VoterDID] = v
			continue
		}
		if v.UpdatedAt > cur.UpdatedAt || (v.UpdatedAt == cur.UpdatedAt && v.ID < cur.ID) {
			latest[v.VoterDID] = v
		}
	}
	out := make([]*workspace.Vote, 0, len(order))
	for _, voter := range order {
		out = append(out, latest[voter])
	}
	return out
}

// ReactionsFor resolves a listing's reactions in list order, one per
// reactor, skipping hidden reactors.
func ReactionsFor(doc *workspace.Document, listingID string, hidden Hidden) []*workspace.Reaction {
	m := doc.Marketplace()
	if m == nil || m.Listings[listingID] == nil {
		return nil
	}
	seen := map[string]struct{}{}
	var out []*workspace.Reaction
	for _, id := range m.Listings[listingID].ReactionIDs {
		r := m.Reactions[id]
		if r == nil || r.ListingID != listingID || hidden.Has(r.ReactorDID) {
			continue
		}
		if _, dup := seen[r.ReactorDID]; dup {
			continue
		}
		seen[r.ReactorDID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// ReactionCount counts the distinct visible reactors on a listing.
func ReactionCount(doc *workspace.Document, listingID string, hidden Hidden) int {
	return len(ReactionsFor(doc, listingID, hidden))
}

// HasReacted reports whether viewer reacted to a listing.
func HasReacted(doc *workspace.Document, listingID, viewer string) bool {
	for _, r := range ReactionsFor(doc, listingID, nil) {
		if r.ReactorDID == viewer {
			return true
		}
	}
	return false
}

// VisibleAssumptions returns assumptions whose creator is not hidden,
// oldest first.
func VisibleAssumptions(doc *workspace.Document, hidden Hidden) []*workspace.Assumption {
	d := doc.Discussion()
	if d == nil {
		return nil
	}
	var out []*workspace.Assumption
	for _, a := range d.Assumptions {
		if a != nil && !hidden.Has(a.CreatedBy) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListingFilter narrows VisibleListings. Zero fields match everything.
type ListingFilter struct {
	Type       workspace.ListingType
	Status     workspace.ListingStatus
	CategoryID string
}

func (f ListingFilter) match(l *workspace.Listing) bool {
	return (f.Type == "" || l.Type == f.Type) &&
		(f.Status == "" || l.Status == f.Status) &&
		(f.CategoryID == "" || l.CategoryID == f.CategoryID)
}

// VisibleListings returns listings whose creator is not hidden and which
// match f, newest first.
func VisibleListings(doc *workspace.Document, hidden Hidden, f ListingFilter) []*workspace.Listing {
	m := doc.Marketplace()
	if m == nil {
		return nil
	}
	var out []*workspace.Listing
	for _, l := range m.Listings {
		if l != nil && !hidden.Has(l.CreatedBy) && f.match(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// VisibleLocations returns one pin per visible user, sorted by user id.
func VisibleLocations(doc *workspace.Document, hidden Hidden) []*workspace.UserLocation {
	m := doc.Map()
	if m == nil {
		return nil
	}
	byUser := map[string]*workspace.UserLocation{}
	for _, loc := range m.Locations {
		if loc == nil || hidden.Has(loc.UserDID) {
			continue
		}
		cur, ok := byUser[loc.UserDID]
		if !ok || loc.UpdatedAt > cur.UpdatedAt || (loc.UpdatedAt == cur.UpdatedAt && loc.ID < cur.ID) {
			byUser[loc.UserDID] = loc
		}
	}
	out := make([]*workspace.UserLocation, 0, len(byUser))
	for _, loc := range byUser {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserDID < out[j].UserDID })
	return out
}
