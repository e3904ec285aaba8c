// Package discussion implements the assumption-tracking module: assumptions
// carrying tags, one vote per voter, and an append-only edit log.
//
// Every mutation validates its input before touching the document, lazily
// initializes the module, registers the acting identity and stamps
// LastModified. A target removed by a concurrent peer turns the mutation
// into a no-op.
package discussion

import (
	"strings"

	"xdao.co/commons/identity"
	"xdao.co/commons/keys"
	"xdao.co/commons/protocol"
	"xdao.co/commons/signing"
	"xdao.co/commons/workspace"
)

// Service mutates the discussion module of a document.
type Service struct {
	env *workspace.Env
	ids *identity.Registry
}

func New(env *workspace.Env) *Service {
	return &Service{env: env, ids: identity.New(env)}
}

// begin runs the steps shared by every write that produces a signed entity
// once input is valid.
func (s *Service) begin(doc *workspace.Document, actor string, signer keys.Signer) (*workspace.DiscussionData, error) {
	if err := s.env.CheckSigner(signer); err != nil {
		return nil, err
	}
	return s.prepare(doc, actor, signer)
}

// prepare initializes the module and registers actor. Removals produce no
// entity to sign and go straight here.
func (s *Service) prepare(doc *workspace.Document, actor string, signer keys.Signer) (*workspace.DiscussionData, error) {
	if _, err := workspace.EnsureModule(doc, workspace.ModuleDiscussion, s.env.Now()); err != nil {
		return nil, err
	}
	if err := s.ids.Contribute(doc, actor, signer); err != nil {
		return nil, err
	}
	return doc.Discussion(), nil
}

func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return workspace.Invalid("WS-DISC-001", "actor identity is required")
	}
	return nil
}

func cleanSentence(sentence string) (string, error) {
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return "", workspace.Invalid("WS-DISC-002", "assumption sentence is required")
	}
	return sentence, nil
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

// CreateAssumption adds an assumption with the given tags and records a
// create entry in the edit log. Tag names are deduplicated against existing
// tags before the assumption is signed.
func (s *Service) CreateAssumption(doc *workspace.Document, actor, sentence string, tagNames []string, signer keys.Signer) (*workspace.Assumption, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	sentence, err := cleanSentence(sentence)
	if err != nil {
		return nil, err
	}
	if err := checkTagNames(tagNames); err != nil {
		return nil, err
	}
	d, err := s.begin(doc, actor, signer)
	if err != nil {
		return nil, err
	}

	now := s.env.Now()
	tagIDs := s.resolveTags(d, actor, tagNames, now)
	a := &workspace.Assumption{
		ID:         s.env.NewID(),
		Sentence:   sentence,
		CreatedBy:  actor,
		CreatedAt:  now,
		UpdatedAt:  now,
		TagIDs:     tagIDs,
		VoteIDs:    []string{},
		EditLogIDs: []string{},
	}
	if a.Signature, err = sign(a.SigningPayload(), signer, "assumption"); err != nil {
		return nil, err
	}
	entry := &workspace.EditEntry{
		ID:           s.env.NewID(),
		AssumptionID: a.ID,
		EditorDID:    actor,
		Type:         workspace.EditCreate,
		NewSentence:  sentence,
		NewTags:      append([]string{}, tagIDs...),
		CreatedAt:    now,
	}
	if entry.Signature, err = sign(entry.SigningPayload(), signer, "edit entry"); err != nil {
		return nil, err
	}
	d.Assumptions[a.ID] = a
	d.Edits[entry.ID] = entry
	protocol.AppendID(&a.EditLogIDs, entry.ID)
	doc.Touch(now)
	s.env.Log().Debug("assumption created", "assumption", a.ID, "actor", actor, "tags", len(tagIDs))
	return a, nil
}

// UpdateAssumption replaces the sentence and tag set of an assumption. Tag
// ids are edited by set difference so concurrent tag edits on the same
// assumption survive. Nothing is written when neither changes.
//
// The assumption is re-signed when its creator edits it with a signer;
// otherwise its signature is cleared and the signed edit entry carries the
// provenance of the change.
func (s *Service) UpdateAssumption(doc *workspace.Document, actor, assumptionID, sentence string, tagNames []string, signer keys.Signer) (*workspace.Assumption, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	sentence, err := cleanSentence(sentence)
	if err != nil {
		return nil, err
	}
	if err := checkTagNames(tagNames); err != nil {
		return nil, err
	}
	a := Assumption(doc, assumptionID)
	if a == nil {
		s.env.Log().Debug("update dropped: assumption not found", "assumption", assumptionID)
		return nil, nil
	}
	if sentence == a.Sentence && unchangedTags(doc.Discussion(), a, tagNames) {
		return a, nil
	}
	d, err := s.begin(doc, actor, signer)
	if err != nil {
		return nil, err
	}

	now := s.env.Now()
	next := s.resolveTags(d, actor, tagNames, now)
	toRemove, toAdd := protocol.DiffIDs(a.TagIDs, next)

	entry := &workspace.EditEntry{
		ID:               s.env.NewID(),
		AssumptionID:     a.ID,
		EditorDID:        actor,
		Type:             workspace.EditUpdate,
		PreviousSentence: a.Sentence,
		NewSentence:      sentence,
		PreviousTags:     append([]string{}, a.TagIDs...),
		NewTags:          append([]string{}, next...),
		CreatedAt:        now,
	}
	if entry.Signature, err = sign(entry.SigningPayload(), signer, "edit entry"); err != nil {
		return nil, err
	}

	edited := *a
	edited.Sentence = sentence
	edited.TagIDs = append([]string{}, a.TagIDs...)
	for _, id := range toRemove {
		protocol.RemoveID(&edited.TagIDs, id)
	}
	for _, id := range toAdd {
		protocol.AppendID(&edited.TagIDs, id)
	}
	edited.UpdatedAt = now
	edited.Signature = ""
	if actor == a.CreatedBy {
		if edited.Signature, err = sign(edited.SigningPayload(), signer, "assumption"); err != nil {
			return nil, err
		}
	}
	*a = edited
	d.Edits[entry.ID] = entry
	protocol.AppendID(&a.EditLogIDs, entry.ID)
	doc.Touch(now)
	s.env.Log().Debug("assumption updated", "assumption", a.ID, "actor", actor, "tags_added", len(toAdd), "tags_removed", len(toRemove))
	return a, nil
}

// DeleteAssumption removes an assumption and its votes. Only the creator
// may delete it. Edit entries are kept so the history survives the
// deletion. It reports whether anything was removed.
func (s *Service) DeleteAssumption(doc *workspace.Document, actor, assumptionID string) (bool, error) {
	if err := requireActor(actor); err != nil {
		return false, err
	}
	a := Assumption(doc, assumptionID)
	if a == nil {
		s.env.Log().Debug("delete dropped: assumption not found", "assumption", assumptionID)
		return false, nil
	}
	if a.CreatedBy != actor {
		return false, workspace.Invalid("WS-DISC-006", "only the creator may delete an assumption")
	}
	d, err := s.prepare(doc, actor, nil)
	if err != nil {
		return false, err
	}
	for _, voteID := range a.VoteIDs {
		delete(d.Votes, voteID)
	}
	// Votes appended by peers before this replica saw them are also orphans.
	for id, v := range d.Votes {
		if v != nil && v.AssumptionID == assumptionID {
			delete(d.Votes, id)
		}
	}
	delete(d.Assumptions, assumptionID)
	doc.Touch(s.env.Now())
	s.env.Log().Debug("assumption deleted", "assumption", assumptionID, "actor", actor)
	return true, nil
}

// Assumption returns the stored assumption, or nil.
func Assumption(doc *workspace.Document, assumptionID string) *workspace.Assumption {
	d := doc.Discussion()
	if d == nil {
		return nil
	}
	return d.Assumptions[assumptionID]
}
