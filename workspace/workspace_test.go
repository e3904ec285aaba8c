package workspace_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/commons/codec"
	"xdao.co/commons/internal/testenv"
	"xdao.co/commons/workspace"
)

func TestCreateEmpty(t *testing.T) {
	env := testenv.New("ws")
	doc, err := workspace.CreateEmpty(env.Env, workspace.Identity{ID: "did:alice"}, "  Garden  ", nil)
	require.NoError(t, err)

	assert.Equal(t, workspace.CurrentVersion, doc.Version)
	assert.Equal(t, "Garden", doc.Context.Name)
	assert.Nil(t, doc.Context.Avatar)
	assert.Equal(t, testenv.Start.UnixMilli(), doc.LastModified)

	alice := doc.Identities["did:alice"]
	require.NotNil(t, alice)
	assert.Nil(t, alice.PublicKey, "absent public key must not be stored as a placeholder")

	for _, m := range workspace.Modules() {
		assert.True(t, doc.EnabledModules[m.ID], "module %s enabled", m.ID)
		assert.True(t, m.Present(doc), "module %s initialized", m.ID)
	}
	require.NotNil(t, doc.Discussion())
	assert.NotNil(t, doc.Discussion().Tags)
	assert.NotNil(t, doc.Marketplace().Reactions)
	assert.NotNil(t, doc.Map().Locations)
}

func TestCreateEmpty_PublicKeyOnlyWhenPresent(t *testing.T) {
	env := testenv.New("ws")
	key := testenv.Signer(t, 1).PublicKey()
	doc, err := workspace.CreateEmpty(env.Env, workspace.Identity{ID: "did:alice", PublicKey: &key}, "W", nil)
	require.NoError(t, err)
	require.NotNil(t, doc.Identities["did:alice"].PublicKey)
	assert.Equal(t, key, *doc.Identities["did:alice"].PublicKey)

	empty := ""
	doc, err = workspace.CreateEmpty(env.Env, workspace.Identity{ID: "did:bob", PublicKey: &empty}, "W", nil)
	require.NoError(t, err)
	assert.Nil(t, doc.Identities["did:bob"].PublicKey)

	b, err := codec.Marshal(doc.Identities["did:bob"])
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, codec.Unmarshal(b, &decoded))
	_, has := decoded["publicKey"]
	assert.False(t, has, "encoded identity must not carry a publicKey key")
}

func TestCreateEmpty_RequiresCreator(t *testing.T) {
	_, err := workspace.CreateEmpty(testenv.New("ws").Env, workspace.Identity{ID: " "}, "W", nil)
	require.Error(t, err)
	assert.True(t, workspace.IsKind(err, workspace.KindValidation))
	assert.Equal(t, "WS-VAL-001", workspace.Code(err))
}

func TestEnsureModule_LazyAndIdempotent(t *testing.T) {
	env := testenv.New("ws")
	doc := &workspace.Document{Version: 1, LastModified: 5}

	created, err := workspace.EnsureModule(doc, workspace.ModuleMarketplace, env.Now())
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, doc.Marketplace())
	first := doc.LastModified
	assert.Equal(t, env.Now(), first)

	env.Tick()
	created, err = workspace.EnsureModule(doc, workspace.ModuleMarketplace, env.Now())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, doc.LastModified, "second call must not stamp")
	assert.Nil(t, doc.Discussion(), "other modules stay absent")

	_, err = workspace.EnsureModule(doc, "chat", env.Now())
	assert.True(t, workspace.IsKind(err, workspace.KindValidation))
}

func TestEnsureModule_FillsMissingCollections(t *testing.T) {
	doc := &workspace.Document{Data: workspace.Data{Discussion: &workspace.DiscussionData{}}}
	created, err := workspace.EnsureModule(doc, workspace.ModuleDiscussion, 10)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotNil(t, doc.Discussion().Votes)
}

func TestMigrate_OlderDocument(t *testing.T) {
	doc := &workspace.Document{Version: 0, Context: workspace.Context{Name: "Old"}}
	assert.True(t, workspace.Migrate(doc, 42))
	assert.Equal(t, workspace.CurrentVersion, doc.Version)
	assert.Equal(t, int64(42), doc.LastModified)
	for _, m := range workspace.Modules() {
		assert.True(t, workspace.ModuleEnabled(doc, m.ID))
		assert.True(t, m.Present(doc))
	}
	assert.False(t, workspace.Migrate(doc, 99))
	assert.Equal(t, int64(42), doc.LastModified)
}

func TestSetModuleEnabled(t *testing.T) {
	env := testenv.New("ws")
	doc := testenv.Document(t, env, "did:alice")
	env.Tick()

	require.NoError(t, workspace.SetModuleEnabled(doc, workspace.ModuleMap, false, env.Now()))
	assert.False(t, workspace.ModuleEnabled(doc, workspace.ModuleMap))
	assert.Equal(t, env.Now(), doc.LastModified)
	assert.NotNil(t, doc.Map(), "disabling keeps the data")

	assert.Error(t, workspace.SetModuleEnabled(doc, "chat", true, env.Now()))
}

func TestSetContext(t *testing.T) {
	env := testenv.New("ws")
	doc := testenv.Document(t, env, "did:alice")

	avatar := "https://example.org/a.png"
	require.NoError(t, workspace.SetContext(doc, "Renamed", &avatar, env.Now()))
	assert.Equal(t, "Renamed", doc.Context.Name)
	assert.Equal(t, avatar, workspace.Value(doc.Context.Avatar))

	require.NoError(t, workspace.SetContext(doc, "Renamed", nil, env.Now()))
	assert.Equal(t, avatar, workspace.Value(doc.Context.Avatar), "nil avatar keeps current")

	clear := ""
	require.NoError(t, workspace.SetContext(doc, "Renamed", &clear, env.Now()))
	assert.Nil(t, doc.Context.Avatar)

	assert.Error(t, workspace.SetContext(doc, " ", nil, env.Now()))
}

func TestTouch_Monotonic(t *testing.T) {
	doc := &workspace.Document{}
	doc.Touch(100)
	doc.Touch(50)
	assert.Equal(t, int64(100), doc.LastModified)
}

func TestClone_Independent(t *testing.T) {
	env := testenv.New("ws")
	doc := testenv.Document(t, env, "did:alice")
	cp, err := doc.Clone()
	require.NoError(t, err)
	cp.Identities["did:alice"].DisplayName = workspace.Optional("Changed")
	cp.Context.Name = "Other"
	assert.Nil(t, doc.Identities["did:alice"].DisplayName)
	assert.Equal(t, "Test workspace", doc.Context.Name)
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("disk full")
	err := workspace.WrapError(workspace.KindInternal, "WS-INT-009", "save", cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, workspace.IsKind(err, workspace.KindInternal))
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, "", workspace.Code(cause))
}

func TestEnv_CheckSigner(t *testing.T) {
	assert.NoError(t, testenv.New("x").CheckSigner(nil))
	err := testenv.Strict("x").CheckSigner(nil)
	assert.True(t, workspace.IsKind(err, workspace.KindValidation))
	assert.NoError(t, testenv.Strict("x").CheckSigner(testenv.Signer(t, 9)))
}

func TestOptional(t *testing.T) {
	assert.Nil(t, workspace.Optional("   "))
	assert.Equal(t, "x", *workspace.Optional(" x "))
	assert.Equal(t, "", workspace.Value(nil))
}

func TestListingStatus_Transitions(t *testing.T) {
	assert.True(t, workspace.ListingActive.CanTransition(workspace.ListingFulfilled))
	assert.True(t, workspace.ListingActive.CanTransition(workspace.ListingCancelled))
	assert.False(t, workspace.ListingFulfilled.CanTransition(workspace.ListingActive))
	assert.False(t, workspace.ListingCancelled.CanTransition(workspace.ListingFulfilled))
	assert.False(t, workspace.ListingActive.CanTransition(workspace.ListingActive))
}

func TestDefaultEnv(t *testing.T) {
	env := workspace.DefaultEnv()
	a, b := env.NewID(), env.NewID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
	assert.InDelta(t, time.Now().UnixMilli(), env.Now(), 5000)
	assert.NotNil(t, env.Log())
}
