package discussion_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/commons/discussion"
	"xdao.co/commons/identity"
	"xdao.co/commons/internal/testenv"
	"xdao.co/commons/keys"
	"xdao.co/commons/signing"
	"xdao.co/commons/snapshot"
	"xdao.co/commons/workspace"
)

func setup(t *testing.T) (*testenv.Env, *workspace.Document, *discussion.Service) {
	t.Helper()
	env := testenv.New("d")
	doc := testenv.Document(t, env, "did:alice")
	return env, doc, discussion.New(env.Env)
}


func fingerprint(t *testing.T, doc *workspace.Document) string {
	t.Helper()
	fp, err := snapshot.Fingerprint(doc)
	require.NoError(t, err)
	return fp
}
func TestCastVote_UpsertsPerVoter(t *testing.T) {
	env, doc, svc := setup(t)
	a, err := svc.CreateAssumption(doc, "did:alice", "Rents will rise", nil, nil)
	require.NoError(t, err)

	first, err := svc.CastVote(doc, "did:v1", a.ID, workspace.VoteGreen, nil)
	require.NoError(t, err)
	env.Tick()
	second, err := svc.CastVote(doc, "did:v1", a.ID, workspace.VoteYellow, nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, a.VoteIDs, 1)
	assert.Len(t, doc.Discussion().Votes, 1)
	assert.Equal(t, workspace.VoteYellow, discussion.VoteOf(doc, a.ID, "did:v1").Value)
	assert.Greater(t, second.UpdatedAt, second.CreatedAt)

	_, err = svc.CastVote(doc, "did:v2", a.ID, workspace.VoteRed, nil)
	require.NoError(t, err)
	assert.Len(t, a.VoteIDs, 2)
}

// failingSigner publishes a valid key but cannot sign.
type failingSigner struct{ keys.Signer }

func (failingSigner) Sign([]byte) (string, error) { return "", errors.New("token unplugged") }

func TestMissingTargetsLeaveDocumentUntouched(t *testing.T) {
	env, doc, svc := setup(t)
	a, err := svc.CreateAssumption(doc, "did:alice", "Rents will rise", nil, nil)
	require.NoError(t, err)
	before := fingerprint(t, doc)
	env.Tick()
	signer := testenv.Signer(t, 2)

	v, err := svc.CastVote(doc, "did:bob", "gone", workspace.VoteGreen, signer)
	require.NoError(t, err)
	assert.Nil(t, v)
	got, err := svc.UpdateAssumption(doc, "did:bob", "gone", "text", nil, signer)
	require.NoError(t, err)
	assert.Nil(t, got)
	removed, err := svc.RetractVote(doc, "did:bob", "gone")
	require.NoError(t, err)
	assert.False(t, removed)
	removed, err = svc.RetractVote(doc, "did:bob", a.ID)
	require.NoError(t, err)
	assert.False(t, removed)
	removed, err = svc.DeleteAssumption(doc, "did:bob", "gone")
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Equal(t, before, fingerprint(t, doc))
}

func TestCastVote_SigningFailureKeepsPreviousVote(t *testing.T) {
	env, doc, svc := setup(t)
	a, err := svc.CreateAssumption(doc, "did:alice", "Rents will rise", nil, nil)
	require.NoError(t, err)
	signer := testenv.Signer(t, 2)
	first, err := svc.CastVote(doc, "did:bob", a.ID, workspace.VoteGreen, signer)
	require.NoError(t, err)
	kept := *first

	env.Tick()
	_, err = svc.CastVote(doc, "did:bob", a.ID, workspace.VoteRed, failingSigner{signer})
	require.Error(t, err)
	assert.Equal(t, "WS-SIGN-002", workspace.Code(err))
	assert.Equal(t, kept, *discussion.VoteOf(doc, a.ID, "did:bob"))

	_, err = svc.CastVote(doc, "did:carol", a.ID, workspace.VoteRed, failingSigner{testenv.Signer(t, 3)})
	require.Error(t, err)
	assert.Len(t, a.VoteIDs, 1)
	assert.Len(t, doc.Discussion().Votes, 1)
}

func TestUpdateAssumption_SigningFailureKeepsAssumption(t *testing.T) {
	env, doc, svc := setup(t)
	signer := testenv.Signer(t, 1)
	a, err := svc.CreateAssumption(doc, "did:alice", "Rents will rise", []string{"Housing"}, signer)
	require.NoError(t, err)
	kept := *a
	kept.TagIDs = append([]string{}, a.TagIDs...)

	env.Tick()
	_, err = svc.UpdateAssumption(doc, "did:alice", a.ID, "Rents will fall", nil, failingSigner{signer})
	require.Error(t, err)
	assert.Equal(t, kept, *a)
	assert.Len(t, discussion.EditHistory(doc, a.ID), 1)
}

func TestCastVote_RejectsUnknownValue(t *testing.T) {
	_, doc, svc := setup(t)
	a, err := svc.CreateAssumption(doc, "did:alice", "Rents will rise", nil, nil)
	require.NoError(t, err)
	_, err = svc.CastVote(doc, "did:v1", a.ID, "blue", nil)
	require.Error(t, err)
	assert.Equal(t, "WS-DISC-005", workspace.Code(err))
	assert.Empty(t, a.VoteIDs)
}

func TestRetractVote(t *testing.T) {
	_, doc, svc := setup(t)
	a, err := svc.CreateAssumption(doc, "did:alice", "Rents will rise", nil, nil)
	require.NoError(t, err)
	_, err = svc.CastVote(doc, "did:v1", a.ID, workspace.VoteGreen, nil)
	require.NoError(t, err)

	removed, err := svc.RetractVote(doc, "did:v1", a.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, a.VoteIDs)
	assert.Empty(t, doc.Discussion().Votes)
	assert.Nil(t, discussion.VoteOf(doc, a.ID, "did:v1"))

	removed, err = svc.RetractVote(doc, "did:v1", a.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestEnsureTag_DedupsByNormalizedName(t *testing.T) {
	_, doc, svc := setup(t)
	budget, err := svc.EnsureTag(doc, "did:alice", "Budget")
	require.NoError(t, err)
	again, err := svc.EnsureTag(doc, "did:bob", " budget ")
	require.NoError(t, err)

	assert.Equal(t, budget.ID, again.ID)
	assert.Equal(t, "Budget", again.Name)
	assert.Len(t, doc.Discussion().Tags, 1)

	a, err := svc.CreateAssumption(doc, "did:alice", "Costs drop", []string{"BUDGET", "budget", "Transit"}, nil)
	require.NoError(t, err)
	assert.Len(t, a.TagIDs, 2)
	assert.Equal(t, budget.ID, a.TagIDs[0])
	assert.Len(t, doc.Discussion().Tags, 2)

	var names []string
	for _, tag := range discussion.TagsFor(doc, a.ID) {
		names = append(names, tag.Name)
	}
	assert.Equal(t, []string{"Budget", "Transit"}, names)
}

func TestRenameTag(t *testing.T) {
	_, doc, svc := setup(t)
	budget, err := svc.EnsureTag(doc, "did:alice", "budget")
	require.NoError(t, err)
	_, err = svc.EnsureTag(doc, "did:alice", "Transit")
	require.NoError(t, err)

	renamed, err := svc.RenameTag(doc, "did:alice", budget.ID, "Budget")
	require.NoError(t, err)
	assert.Equal(t, "Budget", renamed.Name)

	_, err = svc.RenameTag(doc, "did:alice", budget.ID, "transit")
	require.Error(t, err)
	assert.Equal(t, "WS-DISC-004", workspace.Code(err))
	assert.Equal(t, "Budget", doc.Discussion().Tags[budget.ID].Name)

	missing, err := svc.RenameTag(doc, "did:alice", "nope", "Other")
	require.NoError(t, err)
	assert.Nil(t, missing)

	var names []string
	for _, tag := range discussion.Tags(doc) {
		names = append(names, tag.Name)
	}
	assert.Equal(t, []string{"Budget", "Transit"}, names)
}

func TestUpdateAssumption_EditLogChains(t *testing.T) {
	env, doc, svc := setup(t)
	a, err := svc.CreateAssumption(doc, "did:alice", "v0", []string{"x"}, nil)
	require.NoError(t, err)
	env.Tick()
	_, err = svc.UpdateAssumption(doc, "did:alice", a.ID, "v1", []string{"x"}, nil)
	require.NoError(t, err)
	env.Tick()
	_, err = svc.UpdateAssumption(doc, "did:bob", a.ID, "v2", []string{"x", "y"}, nil)
	require.NoError(t, err)

	history := discussion.EditHistory(doc, a.ID)
	require.Len(t, history, 3)
	assert.Equal(t, workspace.EditCreate, history[0].Type)
	assert.Equal(t, "v0", history[0].NewSentence)
	edit1, edit2 := history[1], history[2]
	assert.Equal(t, workspace.EditUpdate, edit1.Type)
	assert.Equal(t, "v0", edit1.PreviousSentence)
	assert.Equal(t, edit1.NewSentence, edit2.PreviousSentence)
	assert.Equal(t, "did:bob", edit2.EditorDID)
	assert.Len(t, edit2.PreviousTags, 1)
	assert.Len(t, edit2.NewTags, 2)
	assert.Len(t, a.EditLogIDs, 3)
}

func TestUpdateAssumption_NoChangeWritesNothing(t *testing.T) {
	env, doc, svc := setup(t)
	a, err := svc.CreateAssumption(doc, "did:alice", "Same", []string{"Budget"}, nil)
	require.NoError(t, err)
	env.Tick()
	stamp := doc.LastModified

	got, err := svc.UpdateAssumption(doc, "did:alice", a.ID, " Same ", []string{"budget"}, nil)
	require.NoError(t, err)
	assert.Equal(t, a, got)
	assert.Len(t, discussion.EditHistory(doc, a.ID), 1)
	assert.Equal(t, stamp, doc.LastModified)
}

func TestUpdateAssumption_PreservesConcurrentTagAppend(t *testing.T) {
	_, doc, svc := setup(t)
	a, err := svc.CreateAssumption(doc, "did:alice", "Rents", []string{"a", "b"}, nil)
	require.NoError(t, err)
	// A peer tagged the assumption with "c" concurrently; this replica's
	// form still shows a and b.
	c, err := svc.EnsureTag(doc, "did:bob", "c")
	require.NoError(t, err)
	a.TagIDs = append(a.TagIDs, c.ID)

	_, err = svc.UpdateAssumption(doc, "did:alice", a.ID, "Rents", []string{"a", "b", "c", "d"}, nil)
	require.NoError(t, err)

	var names []string
	for _, tag := range discussion.TagsFor(doc, a.ID) {
		names = append(names, tag.Name)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)
}

func TestUpdateAssumption_MissingIsNoop(t *testing.T) {
	_, doc, svc := setup(t)
	got, err := svc.UpdateAssumption(doc, "did:alice", "gone", "text", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, doc.Discussion().Edits)
}

func TestDeleteAssumption_KeepsEditHistory(t *testing.T) {
	_, doc, svc := setup(t)
	a, err := svc.CreateAssumption(doc, "did:alice", "Doomed", nil, nil)
	require.NoError(t, err)
	_, err = svc.CastVote(doc, "did:v1", a.ID, workspace.VoteRed, nil)
	require.NoError(t, err)
	_, err = svc.CastVote(doc, "did:v2", a.ID, workspace.VoteGreen, nil)
	require.NoError(t, err)

	removed, err := svc.DeleteAssumption(doc, "did:alice", a.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Nil(t, discussion.Assumption(doc, a.ID))
	assert.Empty(t, doc.Discussion().Votes)
	assert.Len(t, discussion.EditHistory(doc, a.ID), 1)

	removed, err = svc.DeleteAssumption(doc, "did:alice", a.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestDeleteAssumption_OnlyCreator(t *testing.T) {
	_, doc, svc := setup(t)
	a, err := svc.CreateAssumption(doc, "did:alice", "Keep me", nil, nil)
	require.NoError(t, err)
	before := fingerprint(t, doc)

	removed, err := svc.DeleteAssumption(doc, "did:bob", a.ID)
	require.Error(t, err)
	assert.Equal(t, "WS-DISC-006", workspace.Code(err))
	assert.False(t, removed)
	assert.Equal(t, before, fingerprint(t, doc))
}

func TestCreateAssumption_ValidationLeavesDocumentUntouched(t *testing.T) {
	_, doc, svc := setup(t)
	before, err := doc.Clone()
	require.NoError(t, err)

	_, err = svc.CreateAssumption(doc, "did:alice", "   ", []string{"new"}, nil)
	require.Error(t, err)
	assert.Equal(t, "WS-DISC-002", workspace.Code(err))

	_, err = svc.CreateAssumption(doc, "did:alice", "ok", []string{"fine", " "}, nil)
	require.Error(t, err)
	assert.Equal(t, "WS-DISC-003", workspace.Code(err))

	_, err = svc.CreateAssumption(doc, "", "ok", nil, nil)
	require.Error(t, err)
	assert.Equal(t, "WS-DISC-001", workspace.Code(err))

	assert.Equal(t, before, doc)
}

func TestCreateAssumption_LazyModuleInit(t *testing.T) {
	_, doc, svc := setup(t)
	doc.Data.Discussion = nil

	a, err := svc.CreateAssumption(doc, "did:carol", "Works on old documents", nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, discussion.Assumption(doc, a.ID))
	_, ok := identity.Lookup(doc, "did:carol")
	assert.True(t, ok)
}

func TestSigning(t *testing.T) {
	_, doc, svc := setup(t)
	alice := testenv.Signer(t, 1)
	bob := testenv.Signer(t, 2)

	a, err := svc.CreateAssumption(doc, "did:alice", "Signed", []string{"t"}, alice)
	require.NoError(t, err)
	assert.Equal(t, signing.StatusVerified, signing.Check(a.SigningPayload(), a.Signature, alice.PublicKey()))

	v, err := svc.CastVote(doc, "did:bob", a.ID, workspace.VoteGreen, bob)
	require.NoError(t, err)
	assert.True(t, signing.Verify(v.SigningPayload(), v.Signature, identity.PublicKey(doc, "did:bob")))
	// A vote appended after signing leaves the assumption's signature valid.
	assert.True(t, signing.Verify(a.SigningPayload(), a.Signature, alice.PublicKey()))

	_, err = svc.UpdateAssumption(doc, "did:bob", a.ID, "Changed by bob", []string{"t"}, bob)
	require.NoError(t, err)
	assert.Empty(t, a.Signature)
	history := discussion.EditHistory(doc, a.ID)
	last := history[len(history)-1]
	assert.True(t, signing.Verify(last.SigningPayload(), last.Signature, bob.PublicKey()))

	_, err = svc.UpdateAssumption(doc, "did:alice", a.ID, "Restored by alice", []string{"t"}, alice)
	require.NoError(t, err)
	assert.True(t, signing.Verify(a.SigningPayload(), a.Signature, alice.PublicKey()))
}

func TestStrictModeRejectsUnsignedWrites(t *testing.T) {
	env := testenv.Strict("d")
	doc := testenv.Document(t, env, "did:alice")
	svc := discussion.New(env.Env)

	_, err := svc.CreateAssumption(doc, "did:alice", "Unsigned", nil, nil)
	require.Error(t, err)
	assert.True(t, workspace.IsKind(err, workspace.KindValidation))
	assert.Empty(t, doc.Discussion().Assumptions)

	a, err := svc.CreateAssumption(doc, "did:alice", "Signed", nil, testenv.Signer(t, 1))
	require.NoError(t, err)
	_, err = svc.CastVote(doc, "did:alice", a.ID, workspace.VoteGreen, nil)
	require.Error(t, err)
}
