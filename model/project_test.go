package model

import (
	"encoding/json"
	"errors"
	"testing"

	"xdao.co/commons/aggregate"
	"xdao.co/commons/discussion"
	"xdao.co/commons/identity"
	"xdao.co/commons/internal/testenv"
	"xdao.co/commons/location"
	"xdao.co/commons/marketplace"
	"xdao.co/commons/signing"
	"xdao.co/commons/storage"
	"xdao.co/commons/trust"
	"xdao.co/commons/workspace"
)

func TestSnapshot_AssumptionView_JSONShape(t *testing.T) {
	v := AssumptionView{
		ID:        "a-1",
		Sentence:  "Rain tomorrow",
		CreatedBy: "did:alice",
		Author:    "Alice",
		CreatedAt: 1,
		UpdatedAt: 2,
		Tags:      []TagView{{ID: "t-1", Name: "weather"}},
		Votes:     VoteTally{Green: 1, Total: 1, Own: "green"},
		Edits:     1,
		Signature: "verified",
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}

	const want = "{\n" +
		"  \"id\": \"a-1\",\n" +
		"  \"sentence\": \"Rain tomorrow\",\n" +
		"  \"createdBy\": \"did:alice\",\n" +
		"  \"author\": \"Alice\",\n" +
		"  \"createdAt\": 1,\n" +
		"  \"updatedAt\": 2,\n" +
		"  \"tags\": [\n" +
		"    {\n" +
		"      \"id\": \"t-1\",\n" +
		"      \"name\": \"weather\"\n" +
		"    }\n" +
		"  ],\n" +
		"  \"votes\": {\n" +
		"    \"green\": 1,\n" +
		"    \"yellow\": 0,\n" +
		"    \"red\": 0,\n" +
		"    \"total\": 1,\n" +
		"    \"own\": \"green\"\n" +
		"  },\n" +
		"  \"edits\": 1,\n" +
		"  \"signature\": \"verified\"\n" +
		"}"

	if string(b) != want {
		t.Fatalf("snapshot mismatch:\n%s", string(b))
	}
}

func TestSnapshot_EmptyWorkspace_StableLists(t *testing.T) {
	env := testenv.New("m")
	doc := testenv.Document(t, env, "did:alice")

	view, err := Project(doc, ProjectOptions{ID: "ws-1"})
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	b, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"trust", "assumptions", "listings", "locations"} {
		if string(raw[key]) != "[]" {
			t.Fatalf("%s: got %s want []", key, raw[key])
		}
	}
	if len(view.Modules) != 3 || !view.Modules[0].Enabled {
		t.Fatalf("unexpected modules %+v", view.Modules)
	}
	if len(view.Fingerprint) != 64 {
		t.Fatalf("fingerprint %q is not a hex blake3 digest", view.Fingerprint)
	}
}

func TestProject_ViewerAndHidden(t *testing.T) {
	env := testenv.New("m")
	doc := testenv.Document(t, env, "did:alice")
	alice := testenv.Signer(t, 1)

	name := "Alice"
	if err := identity.New(env.Env).UpdateProfile(doc, "did:alice", identity.ProfileUpdate{DisplayName: &name}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	disc := discussion.New(env.Env)
	a, err := disc.CreateAssumption(doc, "did:alice", "Rain tomorrow", []string{"Weather"}, alice)
	if err != nil {
		t.Fatalf("CreateAssumption: %v", err)
	}
	env.Tick()
	if _, err := disc.CastVote(doc, "did:alice", a.ID, workspace.VoteGreen, alice); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if _, err := disc.CastVote(doc, "did:mallory", a.ID, workspace.VoteRed, nil); err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	mkt := marketplace.New(env.Env)
	l, err := mkt.CreateListing(doc, "did:bob", marketplace.Draft{Type: workspace.ListingOffer, Title: "Bike", CategoryID: "transport"}, nil)
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	if _, err := mkt.AddReaction(doc, "did:alice", l.ID, alice); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}

	if _, err := location.New(env.Env).SetLocation(doc, "did:mallory", 1, 2, nil, nil); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}
	if _, err := trust.New(env.Env).SetTrust(doc, "did:alice", "did:bob", workspace.TrustFull, nil, alice); err != nil {
		t.Fatalf("SetTrust: %v", err)
	}

	view, err := Project(doc, ProjectOptions{Viewer: "did:alice", Hidden: aggregate.HideAll("did:mallory")})
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}

	if len(view.Assumptions) != 1 {
		t.Fatalf("expected one assumption, got %d", len(view.Assumptions))
	}
	got := view.Assumptions[0]
	if got.Author != "Alice" || got.Votes.Total != 1 || got.Votes.Red != 0 || got.Votes.Own != "green" {
		t.Fatalf("unexpected assumption view %+v", got)
	}
	if got.Signature != string(signing.StatusVerified) {
		t.Fatalf("assumption signature: got %s", got.Signature)
	}
	if len(got.Tags) != 1 || got.Tags[0].Name != "Weather" {
		t.Fatalf("unexpected tags %+v", got.Tags)
	}

	if len(view.Listings) != 1 || !view.Listings[0].Reacted || view.Listings[0].Reactions != 1 {
		t.Fatalf("unexpected listings %+v", view.Listings)
	}
	if view.Listings[0].Signature != string(signing.StatusUnsigned) {
		t.Fatalf("listing signature: got %s", view.Listings[0].Signature)
	}
	if len(view.Locations) != 0 {
		t.Fatalf("hidden participant's pin is visible: %+v", view.Locations)
	}
	if len(view.Trust) != 1 || view.Trust[0].Level != "full" {
		t.Fatalf("unexpected trust %+v", view.Trust)
	}
	if view.Provenance[string(signing.StatusVerified)] == 0 || view.Provenance[string(signing.StatusUnsigned)] == 0 {
		t.Fatalf("unexpected provenance tally %+v", view.Provenance)
	}

	detail := Assumption(doc, a.ID, ProjectOptions{Viewer: "did:alice"})
	if detail == nil || len(detail.History) != 1 || detail.History[0].Type != "create" {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if detail.Votes.Total != 2 {
		t.Fatalf("detail without hidden set should count both votes, got %d", detail.Votes.Total)
	}
	if Assumption(doc, "missing", ProjectOptions{}) != nil {
		t.Fatalf("missing assumption should project to nil")
	}
}

func TestFromError(t *testing.T) {
	cases := []struct {
		err  error
		code ErrorCode
		rule string
	}{
		{workspace.Invalid("WS-DISC-002", "sentence is required"), ErrInvalidRequest, "WS-DISC-002"},
		{storage.ErrNotFound, ErrNotFound, ""},
		{storage.ErrCIDMismatch, ErrCIDMismatch, ""},
		{errors.New("boom"), ErrInternal, ""},
	}
	for _, c := range cases {
		got := FromError(c.err)
		if got.Code != c.code || got.Rule != c.rule {
			t.Fatalf("FromError(%v) = %+v, want code %s rule %q", c.err, got, c.code, c.rule)
		}
	}
	if FromError(nil) != nil {
		t.Fatalf("FromError(nil) should be nil")
	}
	coded := NewError(ErrInvalidCID, "bad")
	if FromError(coded) != coded {
		t.Fatalf("FromError should pass CodedError through")
	}
}
