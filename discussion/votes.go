package discussion

import (
	"sort"

	"xdao.co/commons/keys"
	"xdao.co/commons/protocol"
	"xdao.co/commons/workspace"
)

// CastVote records voter's opinion on an assumption. An existing vote by the
// same voter is updated in place; otherwise a vote is created and its id
// pushed onto the assumption. Voting on a vanished assumption is a no-op.
func (s *Service) CastVote(doc *workspace.Document, voter, assumptionID string, value workspace.VoteValue, signer keys.Signer) (*workspace.Vote, error) {
	if err := requireActor(voter); err != nil {
		return nil, err
	}
	if !value.Valid() {
		return nil, workspace.Invalid("WS-DISC-005", "unknown vote value "+string(value))
	}
	a := Assumption(doc, assumptionID)
	if a == nil {
		s.env.Log().Debug("vote dropped: assumption not found", "assumption", assumptionID, "voter", voter)
		return nil, nil
	}
	d, err := s.begin(doc, voter, signer)
	if err != nil {
		return nil, err
	}

	now := s.env.Now()
	v, found := protocol.FindByKey(a.VoteIDs, d.Votes, func(v *workspace.Vote) bool { return v.VoterDID == voter })
	var next workspace.Vote
	if found {
		next = *v
	} else {
		next = workspace.Vote{ID: s.env.NewID(), AssumptionID: a.ID, VoterDID: voter, CreatedAt: now}
	}
	next.Value = value
	next.UpdatedAt = now
	next.Signature = ""
	if next.Signature, err = sign(next.SigningPayload(), signer, "vote"); err != nil {
		return nil, err
	}
	if found {
		*v = next
	} else {
		v = &next
		d.Votes[v.ID] = v
		protocol.AppendID(&a.VoteIDs, v.ID)
	}
	doc.Touch(now)
	s.env.Log().Debug("vote cast", "assumption", a.ID, "voter", voter, "value", value, "updated", found)
	return v, nil
}

// RetractVote removes voter's vote from an assumption. It reports whether a
// vote was removed.
func (s *Service) RetractVote(doc *workspace.Document, voter, assumptionID string) (bool, error) {
	if err := requireActor(voter); err != nil {
		return false, err
	}
	v := VoteOf(doc, assumptionID, voter)
	if v == nil {
		s.env.Log().Debug("retract dropped: no vote", "assumption", assumptionID, "voter", voter)
		return false, nil
	}
	d, err := s.prepare(doc, voter, nil)
	if err != nil {
		return false, err
	}
	a := d.Assumptions[assumptionID]
	protocol.RemoveID(&a.VoteIDs, v.ID)
	delete(d.Votes, v.ID)
	doc.Touch(s.env.Now())
	return true, nil
}

// VoteOf returns voter's live vote on an assumption, or nil.
func VoteOf(doc *workspace.Document, assumptionID, voter string) *workspace.Vote {
	d := doc.Discussion()
	if d == nil || d.Assumptions[assumptionID] == nil {
		return nil
	}
	v, _ := protocol.FindByKey(d.Assumptions[assumptionID].VoteIDs, d.Votes, func(v *workspace.Vote) bool { return v.VoterDID == voter })
	return v
}

// EditHistory returns every edit entry recorded for an assumption, oldest
// first. Entries outlive the assumption they describe.
func EditHistory(doc *workspace.Document, assumptionID string) []*workspace.EditEntry {
	d := doc.Discussion()
	if d == nil {
		return nil
	}
	var out []*workspace.EditEntry
	for _, e := range d.Edits {
		if e != nil && e.AssumptionID == assumptionID {
			out = append(out, e)
		}
	}
	order := map[string]int{}
	if a := d.Assumptions[assumptionID]; a != nil {
		for i, id := range a.EditLogIDs {
			order[id] = i
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		oi, iok := order[out[i].ID]
		oj, jok := order[out[j].ID]
		if iok && jok && oi != oj {
			return oi < oj
		}
		return out[i].ID < out[j].ID
	})
	return out
}
