// Package identity maintains the per-document participant registry.
//
// A participant's profile is created lazily by their first write. The public
// key is write-once: after it is published nobody, the owner included, can
// replace it through this package.
package identity

import (
	"strings"

	"xdao.co/commons/keys"
	"xdao.co/commons/workspace"
)

// ProfileUpdate carries the display fields to overwrite. A nil field is left
// alone; a pointer to "" clears the field.
type ProfileUpdate struct {
	DisplayName *string
	AvatarURL   *string
}

// Registry mutates the identities of a document.
type Registry struct {
	env *workspace.Env
}

func New(env *workspace.Env) *Registry {
	return &Registry{env: env}
}

func checkID(id string) error {
	if strings.TrimSpace(id) == "" {
		return workspace.Invalid("WS-ID-001", "identity id is required")
	}
	return nil
}

// EnsureIdentity creates an empty profile for id when none exists. It
// reports whether a profile was created; a second call changes nothing.
func (r *Registry) EnsureIdentity(doc *workspace.Document, id string) (bool, error) {
	if err := checkID(id); err != nil {
		return false, err
	}
	if doc.Identities == nil {
		doc.Identities = map[string]*workspace.Identity{}
	}
	if _, ok := doc.Identities[id]; ok {
		return false, nil
	}
	doc.Identities[id] = &workspace.Identity{ID: id}
	doc.Touch(r.env.Now())
	r.env.Log().Debug("identity registered", "identity", id)
	return true, nil
}

// SetPublicKey publishes key for id unless a key is already published. It
// reports whether the key was stored.
func (r *Registry) SetPublicKey(doc *workspace.Document, id, key string) (bool, error) {
	if err := checkID(id); err != nil {
		return false, err
	}
	key = strings.TrimSpace(key)
	if _, _, err := keys.ParsePublicKey(key); err != nil {
		return false, workspace.WrapError(workspace.KindValidation, "WS-ID-002", "malformed public key", err)
	}
	if _, err := r.EnsureIdentity(doc, id); err != nil {
		return false, err
	}
	ident := doc.Identities[id]
	if ident.PublicKey != nil {
		if *ident.PublicKey != key {
			r.env.Log().Debug("public key already published", "identity", id)
		}
		return false, nil
	}
	ident.PublicKey = &key
	doc.Touch(r.env.Now())
	return true, nil
}

// UpdateProfile overwrites the display fields given in u.
func (r *Registry) UpdateProfile(doc *workspace.Document, id string, u ProfileUpdate) error {
	if err := checkID(id); err != nil {
		return err
	}
	if u.DisplayName == nil && u.AvatarURL == nil {
		return nil
	}
	if _, err := r.EnsureIdentity(doc, id); err != nil {
		return err
	}
	ident := doc.Identities[id]
	if u.DisplayName != nil {
		ident.DisplayName = workspace.Optional(*u.DisplayName)
	}
	if u.AvatarURL != nil {
		ident.AvatarURL = workspace.Optional(*u.AvatarURL)
	}
	doc.Touch(r.env.Now())
	return nil
}

// Contribute registers actor before a write and, when a signer is given,
// bootstraps the signer's public key into the registry.
func (r *Registry) Contribute(doc *workspace.Document, actor string, signer keys.Signer) error {
	if _, err := r.EnsureIdentity(doc, actor); err != nil {
		return err
	}
	if signer == nil {
		return nil
	}
	_, err := r.SetPublicKey(doc, actor, signer.PublicKey())
	return err
}

// Lookup returns a copy of the profile for id.
func Lookup(doc *workspace.Document, id string) (workspace.Identity, bool) {
	ident, ok := doc.Identities[id]
	if !ok || ident == nil {
		return workspace.Identity{}, false
	}
	out := workspace.Identity{ID: ident.ID}
	out.DisplayName = copyString(ident.DisplayName)
	out.AvatarURL = copyString(ident.AvatarURL)
	out.PublicKey = copyString(ident.PublicKey)
	return out, true
}

// PublicKey returns the published key of id, or "".
func PublicKey(doc *workspace.Document, id string) string {
	ident, ok := doc.Identities[id]
	if !ok || ident == nil {
		return ""
	}
	return workspace.Value(ident.PublicKey)
}

// DisplayName returns the display name of id, falling back to the id.
func DisplayName(doc *workspace.Document, id string) string {
	if ident, ok := doc.Identities[id]; ok && ident != nil && ident.DisplayName != nil {
		return *ident.DisplayName
	}
	return id
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
