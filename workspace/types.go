package workspace

// Identity is a participant's public profile. The first write by a
// participant creates it; only its owner updates it.
type Identity struct {
	ID          string  `json:"id"`
	DisplayName *string `json:"displayName,omitempty"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
	PublicKey   *string `json:"publicKey,omitempty"`
}

type TrustLevel string

const (
	TrustNone     TrustLevel = "none"
	TrustPartial  TrustLevel = "partial"
	TrustFull     TrustLevel = "full"
	TrustVerified TrustLevel = "verified"
)

func (l TrustLevel) Valid() bool {
	switch l {
	case TrustNone, TrustPartial, TrustFull, TrustVerified:
		return true
	}
	return false
}

// TrustAttestation is a directed edge "Attester vouches for Trustee at
// Level". Records are never deleted: revocation sets RevokedAt so replicas
// merge field by field.
type TrustAttestation struct {
	ID         string     `json:"id"`
	AttesterID string     `json:"attesterId"`
	TrusteeID  string     `json:"trusteeId"`
	Level      TrustLevel `json:"level"`
	Method     *string    `json:"method,omitempty"`
	CreatedAt  int64      `json:"createdAt"`
	UpdatedAt  int64      `json:"updatedAt"`
	RevokedAt  *int64     `json:"revokedAt,omitempty"`
	Signature  string     `json:"signature,omitempty"`
}

// Live reports whether the attestation has not been revoked.
func (a *TrustAttestation) Live() bool { return a.RevokedAt == nil }

// SigningPayload excludes the signature and the revocation stamp, which is
// toggled after signing.
func (a TrustAttestation) SigningPayload() any {
	a.Signature = ""
	a.RevokedAt = nil
	return a
}

// Tag is a shared label. Tags are deduplicated by normalized name at write
// time; concurrent offline creation can still produce two tags with the same
// normalized name until reconciliation folds them.
type Tag struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedBy string `json:"createdBy"`
	CreatedAt int64  `json:"createdAt"`
}

// Assumption is the discussion unit. TagIDs, VoteIDs and EditLogIDs are
// ordered sets edited element by element, never replaced wholesale.
type Assumption struct {
	ID         string   `json:"id"`
	Sentence   string   `json:"sentence"`
	CreatedBy  string   `json:"createdBy"`
	CreatedAt  int64    `json:"createdAt"`
	UpdatedAt  int64    `json:"updatedAt"`
	TagIDs     []string `json:"tagIds"`
	VoteIDs    []string `json:"voteIds"`
	EditLogIDs []string `json:"editLogIds"`
	Signature  string   `json:"signature,omitempty"`
}

// SigningPayload covers the sentence and the resolved tag ids. Vote and edit
// ids are appended by other participants after signing and are excluded.
func (a Assumption) SigningPayload() any {
	return struct {
		ID        string   `json:"id"`
		Sentence  string   `json:"sentence"`
		CreatedBy string   `json:"createdBy"`
		CreatedAt int64    `json:"createdAt"`
		UpdatedAt int64    `json:"updatedAt"`
		TagIDs    []string `json:"tagIds,omitempty"`
	}{a.ID, a.Sentence, a.CreatedBy, a.CreatedAt, a.UpdatedAt, a.TagIDs}
}

type VoteValue string

const (
	VoteGreen  VoteValue = "green"
	VoteYellow VoteValue = "yellow"
	VoteRed    VoteValue = "red"
)

func (v VoteValue) Valid() bool {
	switch v {
	case VoteGreen, VoteYellow, VoteRed:
		return true
	}
	return false
}

// Vote is one voter's opinion on one assumption. At most one live vote
// exists per (AssumptionID, VoterDID).
type Vote struct {
	ID           string    `json:"id"`
	AssumptionID string    `json:"assumptionId"`
	VoterDID     string    `json:"voterDid"`
	Value        VoteValue `json:"value"`
	CreatedAt    int64     `json:"createdAt"`
	UpdatedAt    int64     `json:"updatedAt"`
	Signature    string    `json:"signature,omitempty"`
}

func (v Vote) SigningPayload() any {
	v.Signature = ""
	return v
}

type EditType string

const (
	EditCreate EditType = "create"
	EditUpdate EditType = "edit"
)

// EditEntry is an immutable audit record of an assumption change.
type EditEntry struct {
	ID               string   `json:"id"`
	AssumptionID     string   `json:"assumptionId"`
	EditorDID        string   `json:"editorDid"`
	Type             EditType `json:"type"`
	PreviousSentence string   `json:"previousSentence"`
	NewSentence      string   `json:"newSentence"`
	PreviousTags     []string `json:"previousTags,omitempty"`
	NewTags          []string `json:"newTags"`
	CreatedAt        int64    `json:"createdAt"`
	Signature        string   `json:"signature,omitempty"`
}

func (e EditEntry) SigningPayload() any {
	e.Signature = ""
	return e
}

type ListingType string

const (
	ListingOffer   ListingType = "offer"
	ListingNeed    ListingType = "need"
	ListingService ListingType = "service"
)

func (t ListingType) Valid() bool {
	switch t {
	case ListingOffer, ListingNeed, ListingService:
		return true
	}
	return false
}

type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingFulfilled ListingStatus = "fulfilled"
	ListingCancelled ListingStatus = "cancelled"
)

func (s ListingStatus) Valid() bool {
	switch s {
	case ListingActive, ListingFulfilled, ListingCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s ListingStatus) Terminal() bool {
	return s == ListingFulfilled || s == ListingCancelled
}

// CanTransition reports whether a listing may move from s to next.
// Only active listings move, and only to a terminal state.
func (s ListingStatus) CanTransition(next ListingStatus) bool {
	return s == ListingActive && next.Terminal()
}

// Listing is the marketplace unit.
type Listing struct {
	ID          string        `json:"id"`
	Type        ListingType   `json:"type"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	CategoryID  string        `json:"categoryId"`
	Status      ListingStatus `json:"status"`
	CreatedBy   string        `json:"createdBy"`
	CreatedAt   int64         `json:"createdAt"`
	UpdatedAt   int64         `json:"updatedAt"`
	Location    *string       `json:"location,omitempty"`
	ReactionIDs []string      `json:"reactionIds"`
	Signature   string        `json:"signature,omitempty"`
}

// SigningPayload excludes reaction ids, which other participants append.
func (l Listing) SigningPayload() any {
	l.Signature = ""
	l.ReactionIDs = nil
	return l
}

// Reaction marks a participant's interest in a listing. At most one exists
// per (ListingID, ReactorDID).
type Reaction struct {
	ID         string `json:"id"`
	ListingID  string `json:"listingId"`
	ReactorDID string `json:"reactorDid"`
	CreatedAt  int64  `json:"createdAt"`
	Signature  string `json:"signature,omitempty"`
}

func (r Reaction) SigningPayload() any {
	r.Signature = ""
	return r
}

// UserLocation is a participant's pin on the map. At most one exists per
// UserDID.
type UserLocation struct {
	ID        string  `json:"id"`
	UserDID   string  `json:"userDid"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Label     *string `json:"label,omitempty"`
	CreatedAt int64   `json:"createdAt"`
	UpdatedAt int64   `json:"updatedAt"`
	Signature string  `json:"signature,omitempty"`
}

func (l UserLocation) SigningPayload() any {
	l.Signature = ""
	return l
}
