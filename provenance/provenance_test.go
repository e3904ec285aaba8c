package provenance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/commons/discussion"
	"xdao.co/commons/internal/testenv"
	"xdao.co/commons/location"
	"xdao.co/commons/marketplace"
	"xdao.co/commons/provenance"
	"xdao.co/commons/signing"
	"xdao.co/commons/trust"
	"xdao.co/commons/workspace"
)

func TestChecks(t *testing.T) {
	env := testenv.New("p")
	doc := testenv.Document(t, env, "did:alice")
	alice := testenv.Signer(t, 1)
	bob := testenv.Signer(t, 2)
	disc := discussion.New(env.Env)

	a, err := disc.CreateAssumption(doc, "did:alice", "Signed", nil, alice)
	require.NoError(t, err)
	assert.Equal(t, signing.StatusVerified, provenance.CheckAssumption(doc, a))
	history := discussion.EditHistory(doc, a.ID)
	require.Len(t, history, 1)
	assert.Equal(t, signing.StatusVerified, provenance.CheckEdit(doc, history[0]))

	v, err := disc.CastVote(doc, "did:carol", a.ID, workspace.VoteGreen, nil)
	require.NoError(t, err)
	assert.Equal(t, signing.StatusUnsigned, provenance.CheckVote(doc, v))

	// Signed, but carol never published a key in this document.
	forged, err := signing.Sign(v.SigningPayload(), bob)
	require.NoError(t, err)
	v.Signature = forged
	assert.Equal(t, signing.StatusUnknownKey, provenance.CheckVote(doc, v))

	// A payload changed after signing no longer verifies.
	a.Sentence = "Tampered"
	assert.Equal(t, signing.StatusInvalid, provenance.CheckAssumption(doc, a))

	l, err := marketplace.New(env.Env).CreateListing(doc, "did:alice", marketplace.Draft{
		Type: workspace.ListingOffer, Title: "Chair", CategoryID: "furniture",
	}, alice)
	require.NoError(t, err)
	assert.Equal(t, signing.StatusVerified, provenance.CheckListing(doc, l))

	r, err := marketplace.New(env.Env).AddReaction(doc, "did:bob", l.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, signing.StatusVerified, provenance.CheckReaction(doc, r))

	loc, err := location.New(env.Env).SetLocation(doc, "did:bob", 1, 2, nil, bob)
	require.NoError(t, err)
	assert.Equal(t, signing.StatusVerified, provenance.CheckLocation(doc, loc))

	att, err := trust.New(env.Env).SetTrust(doc, "did:alice", "did:bob", workspace.TrustFull, nil, alice)
	require.NoError(t, err)
	assert.Equal(t, signing.StatusVerified, provenance.CheckAttestation(doc, att))
}

func TestAudit(t *testing.T) {
	env := testenv.New("p")
	doc := testenv.Document(t, env, "did:alice")
	disc := discussion.New(env.Env)

	a, err := disc.CreateAssumption(doc, "did:alice", "Signed", nil, testenv.Signer(t, 1))
	require.NoError(t, err)
	_, err = disc.CastVote(doc, "did:bob", a.ID, workspace.VoteRed, nil)
	require.NoError(t, err)

	tally := provenance.Audit(doc)
	assert.Equal(t, 2, tally[signing.StatusVerified])
	assert.Equal(t, 1, tally[signing.StatusUnsigned])
}
