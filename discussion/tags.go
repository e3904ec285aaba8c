package discussion

import (
	"sort"

	"xdao.co/commons/protocol"
	"xdao.co/commons/workspace"
)

func checkTagNames(names []string) error {
	for _, n := range names {
		if protocol.NormalizeTagName(n) == "" {
			return workspace.Invalid("WS-DISC-003", "tag name is required")
		}
	}
	return nil
}

// findTag returns the tag whose normalized name equals key. When concurrent
// peers produced duplicates the smallest id wins, matching reconciliation.
func findTag(d *workspace.DiscussionData, key string) (*workspace.Tag, bool) {
	_, t, ok := protocol.FindInMap(d.Tags, func(t *workspace.Tag) bool {
		return protocol.NormalizeTagName(t.Name) == key
	})
	return t, ok
}

// ensureTag reuses the tag matching name or creates one. Callers validate
// name first.
func (s *Service) ensureTag(d *workspace.DiscussionData, actor, name string, now int64) (*workspace.Tag, bool) {
	if t, ok := findTag(d, protocol.NormalizeTagName(name)); ok {
		return t, false
	}
	t := &workspace.Tag{
		ID:        s.env.NewID(),
		Name:      protocol.CleanTagName(name),
		CreatedBy: actor,
		CreatedAt: now,
	}
	d.Tags[t.ID] = t
	return t, true
}

// resolveTags maps names to tag ids in input order, creating missing tags
// and collapsing names that normalize to the same tag.
func (s *Service) resolveTags(d *workspace.DiscussionData, actor string, names []string, now int64) []string {
	ids := make([]string, 0, len(names))
	for _, n := range names {
		t, _ := s.ensureTag(d, actor, n, now)
		protocol.AppendID(&ids, t.ID)
	}
	return ids
}

// unchangedTags reports whether names resolve to exactly the tags already
// on a, without creating any.
func unchangedTags(d *workspace.DiscussionData, a *workspace.Assumption, names []string) bool {
	ids := make([]string, 0, len(names))
	for _, n := range names {
		t, ok := findTag(d, protocol.NormalizeTagName(n))
		if !ok {
			return false
		}
		protocol.AppendID(&ids, t.ID)
	}
	toRemove, toAdd := protocol.DiffIDs(a.TagIDs, ids)
	return len(toRemove) == 0 && len(toAdd) == 0
}

// EnsureTag returns the tag named name, creating it when no tag with the
// same normalized name exists. "Budget" and "budget" resolve to one tag.
func (s *Service) EnsureTag(doc *workspace.Document, actor, name string) (*workspace.Tag, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := checkTagNames([]string{name}); err != nil {
		return nil, err
	}
	d, err := s.prepare(doc, actor, nil)
	if err != nil {
		return nil, err
	}
	now := s.env.Now()
	t, created := s.ensureTag(d, actor, name, now)
	if created {
		doc.Touch(now)
		s.env.Log().Debug("tag created", "tag", t.ID, "name", t.Name)
	}
	return t, nil
}

// RenameTag changes a tag's display name. Renaming onto a name another tag
// already normalizes to is rejected; changing only the casing is allowed.
func (s *Service) RenameTag(doc *workspace.Document, actor, tagID, name string) (*workspace.Tag, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := checkTagNames([]string{name}); err != nil {
		return nil, err
	}
	d := doc.Discussion()
	if d == nil || d.Tags[tagID] == nil {
		s.env.Log().Debug("rename dropped: tag not found", "tag", tagID)
		return nil, nil
	}
	if other, ok := findTag(d, protocol.NormalizeTagName(name)); ok && other.ID != tagID {
		return nil, workspace.Invalid("WS-DISC-004", "a tag named "+other.Name+" already exists")
	}
	if _, err := s.prepare(doc, actor, nil); err != nil {
		return nil, err
	}
	t := d.Tags[tagID]
	clean := protocol.CleanTagName(name)
	if clean == t.Name {
		return t, nil
	}
	t.Name = clean
	doc.Touch(s.env.Now())
	return t, nil
}

// TagsFor resolves the tags of an assumption in list order, skipping ids
// whose tag is missing.
func TagsFor(doc *workspace.Document, assumptionID string) []*workspace.Tag {
	d := doc.Discussion()
	if d == nil {
		return nil
	}
	a := d.Assumptions[assumptionID]
	if a == nil {
		return nil
	}
	var out []*workspace.Tag
	for _, id := range a.TagIDs {
		if t := d.Tags[id]; t != nil {
			out = append(out, t)
		}
	}
	return out
}

// Tags returns every tag sorted by normalized name, then id.
func Tags(doc *workspace.Document) []*workspace.Tag {
	d := doc.Discussion()
	if d == nil {
		return nil
	}
	out := make([]*workspace.Tag, 0, len(d.Tags))
	for _, t := range d.Tags {
		if t != nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := protocol.NormalizeTagName(out[i].Name), protocol.NormalizeTagName(out[j].Name)
		if ki != kj {
			return ki < kj
		}
		return out[i].ID < out[j].ID
	})
	return out
}
