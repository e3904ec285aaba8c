package model

import "xdao.co/commons/aggregate"

// ProjectOptions selects what a projection shows and for whom.
type ProjectOptions struct {
	// ID is the workspace id echoed in the view.
	ID string
	// Viewer is the participant whose own votes and reactions are surfaced.
	Viewer string
	// Hidden participants' contributions are left out of lists and tallies.
	Hidden aggregate.Hidden
	// Listings narrows the marketplace section.
	Listings aggregate.ListingFilter
}

type ModuleView struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Enabled bool   `json:"enabled"`
}

type IdentityView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	PublicKey   string `json:"publicKey,omitempty"`
}

type TrustView struct {
	ID        string `json:"id"`
	Attester  string `json:"attester"`
	Trustee   string `json:"trustee"`
	Level     string `json:"level"`
	Method    string `json:"method,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
	RevokedAt *int64 `json:"revokedAt,omitempty"`
	Signature string `json:"signature"`
}

type TagView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type VoteTally struct {
	Green  int    `json:"green"`
	Yellow int    `json:"yellow"`
	Red    int    `json:"red"`
	Total  int    `json:"total"`
	Own    string `json:"own,omitempty"`
}

type AssumptionView struct {
	ID        string    `json:"id"`
	Sentence  string    `json:"sentence"`
	CreatedBy string    `json:"createdBy"`
	Author    string    `json:"author"`
	CreatedAt int64     `json:"createdAt"`
	UpdatedAt int64     `json:"updatedAt"`
	Tags      []TagView `json:"tags"`
	Votes     VoteTally `json:"votes"`
	Edits     int       `json:"edits"`
	Signature string    `json:"signature"`
}

type EditView struct {
	ID               string   `json:"id"`
	Editor           string   `json:"editor"`
	Type             string   `json:"type"`
	PreviousSentence string   `json:"previousSentence,omitempty"`
	NewSentence      string   `json:"newSentence"`
	PreviousTags     []string `json:"previousTags,omitempty"`
	NewTags          []string `json:"newTags"`
	CreatedAt        int64    `json:"createdAt"`
	Signature        string   `json:"signature"`
}

// AssumptionDetail is an assumption with its full edit history.
type AssumptionDetail struct {
	AssumptionView
	History []EditView `json:"history"`
}

type ListingView struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CategoryID  string `json:"categoryId"`
	Status      string `json:"status"`
	CreatedBy   string `json:"createdBy"`
	Author      string `json:"author"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
	Location    string `json:"location,omitempty"`
	Reactions   int    `json:"reactions"`
	Reacted     bool   `json:"reacted"`
	Signature   string `json:"signature"`
}

type LocationView struct {
	User      string  `json:"user"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Label     string  `json:"label,omitempty"`
	UpdatedAt int64   `json:"updatedAt"`
	Signature string  `json:"signature"`
}

// WorkspaceView is the full projection of one workspace document.
type WorkspaceView struct {
	ID           string           `json:"id,omitempty"`
	Name         string           `json:"name"`
	Avatar       string           `json:"avatar,omitempty"`
	Version      int              `json:"version"`
	LastModified int64            `json:"lastModified"`
	Fingerprint  string           `json:"fingerprint"`
	Modules      []ModuleView     `json:"modules"`
	Identities   []IdentityView   `json:"identities"`
	Trust        []TrustView      `json:"trust"`
	Assumptions  []AssumptionView `json:"assumptions"`
	Listings     []ListingView    `json:"listings"`
	Locations    []LocationView   `json:"locations"`
	Provenance   map[string]int   `json:"provenance"`
}
