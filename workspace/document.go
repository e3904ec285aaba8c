package workspace

import "xdao.co/commons/codec"

// CurrentVersion is the schema version stamped on new documents.
const CurrentVersion = 1

// Context is the workspace's display metadata.
type Context struct {
	Name   string  `json:"name"`
	Avatar *string `json:"avatar,omitempty"`
}

// DiscussionData is the discussion module's sub-document.
type DiscussionData struct {
	Assumptions map[string]*Assumption `json:"assumptions"`
	Votes       map[string]*Vote       `json:"votes"`
	Tags        map[string]*Tag        `json:"tags"`
	Edits       map[string]*EditEntry  `json:"edits"`
}

func (d *DiscussionData) fill() bool {
	changed := false
	if d.Assumptions == nil {
		d.Assumptions = map[string]*Assumption{}
		changed = true
	}
	if d.Votes == nil {
		d.Votes = map[string]*Vote{}
		changed = true
	}
	if d.Tags == nil {
		d.Tags = map[string]*Tag{}
		changed = true
	}
	if d.Edits == nil {
		d.Edits = map[string]*EditEntry{}
		changed = true
	}
	return changed
}

// MarketplaceData is the marketplace module's sub-document.
type MarketplaceData struct {
	Listings  map[string]*Listing  `json:"listings"`
	Reactions map[string]*Reaction `json:"reactions"`
}

func (m *MarketplaceData) fill() bool {
	changed := false
	if m.Listings == nil {
		m.Listings = map[string]*Listing{}
		changed = true
	}
	if m.Reactions == nil {
		m.Reactions = map[string]*Reaction{}
		changed = true
	}
	return changed
}

// MapData is the map module's sub-document.
type MapData struct {
	Locations map[string]*UserLocation `json:"locations"`
}

func (m *MapData) fill() bool {
	if m.Locations == nil {
		m.Locations = map[string]*UserLocation{}
		return true
	}
	return false
}

// Data holds one optional sub-document per module. Documents created before
// a module existed simply lack its key.
type Data struct {
	Discussion  *DiscussionData  `json:"discussion,omitempty"`
	Marketplace *MarketplaceData `json:"marketplace,omitempty"`
	Map         *MapData         `json:"map,omitempty"`
}

// Document is the root aggregate of a workspace. Every entity is owned by it
// and refers to others only by id.
type Document struct {
	Version           int                          `json:"version"`
	LastModified      int64                        `json:"lastModified"`
	Context           Context                      `json:"context"`
	EnabledModules    map[ModuleID]bool            `json:"enabledModules"`
	Identities        map[string]*Identity         `json:"identities"`
	TrustAttestations map[string]*TrustAttestation `json:"trustAttestations"`
	Data              Data                         `json:"data"`
}

// Touch stamps LastModified. The stamp never moves backwards; it is a hint
// for humans and is never consulted to resolve conflicts.
func (d *Document) Touch(now int64) {
	if now > d.LastModified {
		d.LastModified = now
	}
}

// Clone returns a deep copy of d.
func (d *Document) Clone() (*Document, error) {
	out := new(Document)
	if err := codec.Clone(d, out); err != nil {
		return nil, WrapError(KindInternal, "WS-INT-001", "clone document", err)
	}
	return out, nil
}

// Discussion returns the discussion sub-document, or nil when absent.
func (d *Document) Discussion() *DiscussionData { return d.Data.Discussion }

// Marketplace returns the marketplace sub-document, or nil when absent.
func (d *Document) Marketplace() *MarketplaceData { return d.Data.Marketplace }

// Map returns the map sub-document, or nil when absent.
func (d *Document) Map() *MapData { return d.Data.Map }
