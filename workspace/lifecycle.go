package workspace

import "strings"

// CreateEmpty builds a new workspace document with the creator's identity
// registered, every module enabled and every module sub-document
// initialized. The creator's public key is stored only when present.
func CreateEmpty(env *Env, creator Identity, name string, avatar *string) (*Document, error) {
	if strings.TrimSpace(creator.ID) == "" {
		return nil, Invalid("WS-VAL-001", "creator identity id is required")
	}
	now := env.Now()
	doc := &Document{
		Version:           CurrentVersion,
		Context:           Context{Name: strings.TrimSpace(name), Avatar: Optional(Value(avatar))},
		EnabledModules:    map[ModuleID]bool{},
		Identities:        map[string]*Identity{},
		TrustAttestations: map[string]*TrustAttestation{},
	}

	id := &Identity{ID: creator.ID}
	id.DisplayName = Optional(Value(creator.DisplayName))
	id.AvatarURL = Optional(Value(creator.AvatarURL))
	id.PublicKey = Optional(Value(creator.PublicKey))
	doc.Identities[id.ID] = id

	for _, m := range moduleTable {
		doc.EnabledModules[m.ID] = true
		m.ensure(&doc.Data)
	}
	doc.Touch(now)
	env.Log().Debug("workspace created", "name", doc.Context.Name, "creator", creator.ID)
	return doc, nil
}

// SetContext updates the workspace name and avatar. A nil avatar leaves the
// current one in place; a pointer to "" clears it.
func SetContext(doc *Document, name string, avatar *string, now int64) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return Invalid("WS-VAL-002", "workspace name is required")
	}
	doc.Context.Name = name
	if avatar != nil {
		doc.Context.Avatar = Optional(*avatar)
	}
	doc.Touch(now)
	return nil
}

// Migrate brings a document written by older code up to the current shape:
// missing top-level maps, module flags and module sub-documents are filled
// in. Nothing is surfaced to the caller beyond whether the document changed.
func Migrate(doc *Document, now int64) bool {
	changed := false
	if doc.EnabledModules == nil {
		doc.EnabledModules = map[ModuleID]bool{}
		changed = true
	}
	if doc.Identities == nil {
		doc.Identities = map[string]*Identity{}
		changed = true
	}
	if doc.TrustAttestations == nil {
		doc.TrustAttestations = map[string]*TrustAttestation{}
		changed = true
	}
	for _, m := range moduleTable {
		if _, ok := doc.EnabledModules[m.ID]; !ok {
			doc.EnabledModules[m.ID] = true
			changed = true
		}
		if m.ensure(&doc.Data) {
			changed = true
		}
	}
	if doc.Version < CurrentVersion {
		doc.Version = CurrentVersion
		changed = true
	}
	if changed {
		doc.Touch(now)
	}
	return changed
}
