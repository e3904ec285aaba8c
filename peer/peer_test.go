package peer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/commons/discussion"
	"xdao.co/commons/identity"
	"xdao.co/commons/internal/testenv"
	"xdao.co/commons/keys"
	"xdao.co/commons/marketplace"
	"xdao.co/commons/peer"
	"xdao.co/commons/replica"
	"xdao.co/commons/replica/memory"
	"xdao.co/commons/snapshot"
	"xdao.co/commons/storage"
	"xdao.co/commons/workspace"
)

func open(t *testing.T, doc *workspace.Document) replica.Handle {
	t.Helper()
	h, err := memory.New().Create(context.Background(), "ws", doc)
	require.NoError(t, err)
	return h
}

func session(t *testing.T, env *testenv.Env, h replica.Handle, actor string, signer keys.Signer) *peer.Session {
	t.Helper()
	s, err := peer.New(env.Env, h, actor, signer)
	require.NoError(t, err)
	return s
}

func fingerprint(t *testing.T, s *peer.Session) string {
	t.Helper()
	doc, err := s.Document()
	require.NoError(t, err)
	fp, err := snapshot.Fingerprint(doc)
	require.NoError(t, err)
	return fp
}

func TestNew_Validation(t *testing.T) {
	env := testenv.New("p")
	h := open(t, testenv.Document(t, env, "did:alice"))

	_, err := peer.New(env.Env, nil, "did:alice", nil)
	assert.Equal(t, "WS-PEER-001", workspace.Code(err))
	_, err = peer.New(env.Env, h, "  ", nil)
	assert.Equal(t, "WS-PEER-002", workspace.Code(err))

	s, err := peer.New(nil, h, " did:alice ", nil)
	require.NoError(t, err)
	assert.Equal(t, "did:alice", s.Actor())
}

func TestSession_WritesEveryModule(t *testing.T) {
	env := testenv.New("p")
	h := open(t, testenv.Document(t, env, "did:alice"))
	alice := session(t, env, h, "did:alice", testenv.Signer(t, 1))
	bob := session(t, env, h, "did:bob", testenv.Signer(t, 2))

	stored, err := alice.PublishKey()
	require.NoError(t, err)
	assert.True(t, stored)
	stored, err = alice.PublishKey()
	require.NoError(t, err)
	assert.False(t, stored)

	name := "Alice"
	require.NoError(t, alice.SetProfile(identity.ProfileUpdate{DisplayName: &name}))

	a, err := alice.AddAssumption("Rents will rise", []string{"Housing"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.Signature)
	assert.Len(t, a.TagIDs, 1)

	v, found, err := bob.Vote(a.ID, workspace.VoteRed)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, workspace.VoteRed, v.Value)

	l, err := bob.AddListing(marketplace.Draft{Type: workspace.ListingOffer, Title: "Bike", Description: "Blue", CategoryID: "transport"})
	require.NoError(t, err)
	present, err := alice.ToggleReaction(l.ID)
	require.NoError(t, err)
	assert.True(t, present)

	_, err = alice.SetLocation(52.5, 13.4, nil)
	require.NoError(t, err)
	att, err := alice.SetTrust("did:bob", workspace.TrustFull, nil)
	require.NoError(t, err)
	assert.Equal(t, "did:bob", att.TrusteeID)

	doc, err := alice.Document()
	require.NoError(t, err)
	assert.Equal(t, "Alice", workspace.Value(doc.Identities["did:alice"].DisplayName))
	assert.NotNil(t, doc.Identities["did:bob"].PublicKey)
	assert.Equal(t, workspace.VoteRed, discussion.VoteOf(doc, a.ID, "did:bob").Value)
	assert.Len(t, doc.Marketplace().Reactions, 1)
	assert.Len(t, doc.Map().Locations, 1)
	assert.Len(t, doc.TrustAttestations, 1)

	revoked, err := alice.RevokeTrust("did:bob")
	require.NoError(t, err)
	assert.True(t, revoked)
	removed, err := alice.ClearLocation()
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestSession_FailedWriteLeavesDocumentUntouched(t *testing.T) {
	env := testenv.New("p")
	h := open(t, testenv.Document(t, env, "did:alice"))
	alice := session(t, env, h, "did:alice", nil)
	before := fingerprint(t, alice)

	_, err := alice.AddAssumption("   ", []string{"Housing"})
	require.Error(t, err)
	assert.True(t, workspace.IsKind(err, workspace.KindValidation))
	_, err = alice.SetLocation(120, 0, nil)
	require.Error(t, err)

	assert.Equal(t, before, fingerprint(t, alice))
}

func TestSession_MissingTargetsAreNoops(t *testing.T) {
	env := testenv.New("p")
	h := open(t, testenv.Document(t, env, "did:alice"))
	alice := session(t, env, h, "did:alice", nil)
	a, err := alice.AddAssumption("Rents will rise", nil)
	require.NoError(t, err)
	before := fingerprint(t, alice)

	// A participant the document has never seen, holding an unpublished key.
	env.Tick()
	bob := session(t, env, h, "did:bob", testenv.Signer(t, 2))

	_, found, err := bob.EditAssumption("gone", "New text", nil)
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = bob.Vote("gone", workspace.VoteGreen)
	require.NoError(t, err)
	assert.False(t, found)
	retracted, err := bob.RetractVote("gone")
	require.NoError(t, err)
	assert.False(t, retracted)
	retracted, err = bob.RetractVote(a.ID)
	require.NoError(t, err)
	assert.False(t, retracted)
	deleted, err := bob.DeleteAssumption("gone")
	require.NoError(t, err)
	assert.False(t, deleted)
	reacted, err := bob.ToggleReaction("gone")
	require.NoError(t, err)
	assert.False(t, reacted)
	_, found, err = bob.SetListingStatus("gone", workspace.ListingFulfilled)
	require.NoError(t, err)
	assert.False(t, found)
	deleted, err = bob.DeleteListing("gone")
	require.NoError(t, err)
	assert.False(t, deleted)

	assert.Equal(t, before, fingerprint(t, bob))
	doc, err := bob.Document()
	require.NoError(t, err)
	assert.NotContains(t, doc.Identities, "did:bob")
}

func TestSession_UnchangedEditIsNoop(t *testing.T) {
	env := testenv.New("p")
	h := open(t, testenv.Document(t, env, "did:alice"))
	alice := session(t, env, h, "did:alice", nil)
	a, err := alice.AddAssumption("Rents will rise", []string{"Housing"})
	require.NoError(t, err)
	before := fingerprint(t, alice)

	env.Tick()
	bob := session(t, env, h, "did:bob", testenv.Signer(t, 2))
	_, found, err := bob.EditAssumption(a.ID, "Rents will rise", []string{" housing "})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, before, fingerprint(t, bob))
}

func TestSession_StrictModeNeedsSigner(t *testing.T) {
	env := testenv.Strict("p")
	h := open(t, testenv.Document(t, env, "did:alice"))

	unsigned := session(t, env, h, "did:alice", nil)
	_, err := unsigned.AddAssumption("Rents will rise", nil)
	require.Error(t, err)
	_, err = unsigned.PublishKey()
	assert.Equal(t, "WS-PEER-003", workspace.Code(err))

	signed := session(t, env, h, "did:alice", testenv.Signer(t, 1))
	_, err = signed.AddAssumption("Rents will rise", nil)
	require.NoError(t, err)
}

func TestSession_MergeReconcilesOfflineDuplicates(t *testing.T) {
	ctx := context.Background()
	envA, envB := testenv.New("a"), testenv.New("b")
	hA := open(t, testenv.Document(t, envA, "did:alice"))
	alice := session(t, envA, hA, "did:alice", nil)
	a, err := alice.AddAssumption("Rents will rise", nil)
	require.NoError(t, err)

	base, err := hA.Snapshot()
	require.NoError(t, err)
	hB, err := memory.New().Create(ctx, "ws", base)
	require.NoError(t, err)

	_, _, err = session(t, envA, hA, "did:bob", nil).Vote(a.ID, workspace.VoteGreen)
	require.NoError(t, err)
	envB.Tick()
	_, _, err = session(t, envB, hB, "did:bob", nil).Vote(a.ID, workspace.VoteRed)
	require.NoError(t, err)

	remote, err := hB.Snapshot()
	require.NoError(t, err)
	rep, err := alice.Merge(remote)
	require.NoError(t, err)
	assert.True(t, rep.Changed())

	doc, err := alice.Document()
	require.NoError(t, err)
	assert.Len(t, doc.Discussion().Votes, 1)
	assert.Len(t, discussion.Assumption(doc, a.ID).VoteIDs, 1)
	assert.Equal(t, workspace.VoteRed, discussion.VoteOf(doc, a.ID, "did:bob").Value)

	again, err := alice.Reconcile()
	require.NoError(t, err)
	assert.False(t, again.Changed())
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	env := testenv.New("p")
	h := open(t, testenv.Document(t, env, "did:alice"))
	alice := session(t, env, h, "did:alice", testenv.Signer(t, 1))
	_, err := alice.AddAssumption("Rents will rise", []string{"Housing"})
	require.NoError(t, err)

	snaps := &snapshot.Store{Backend: storage.NewMemory()}
	id, err := peer.Save(ctx, h, snaps, "main")
	require.NoError(t, err)

	loaded, loadedID, err := peer.Load(ctx, memory.New(), snaps, "main")
	require.NoError(t, err)
	assert.Equal(t, id, loadedID)
	assert.Equal(t, "main", loaded.ID())
	assert.Equal(t, fingerprint(t, alice), fingerprint(t, session(t, env, loaded, "did:alice", nil)))

	_, _, err = peer.Load(ctx, memory.New(), snaps, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
