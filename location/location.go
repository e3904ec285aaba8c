// Package location implements the map module: one pin per participant.
package location

import (
	"fmt"
	"math"
	"strings"

	"xdao.co/commons/identity"
	"xdao.co/commons/keys"
	"xdao.co/commons/protocol"
	"xdao.co/commons/signing"
	"xdao.co/commons/workspace"
)

type Service struct {
	env *workspace.Env
	ids *identity.Registry
}

func New(env *workspace.Env) *Service {
	return &Service{env: env, ids: identity.New(env)}
}

func checkCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return workspace.Invalid("WS-MAP-002", fmt.Sprintf("latitude %v out of range", lat))
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return workspace.Invalid("WS-MAP-003", fmt.Sprintf("longitude %v out of range", lng))
	}
	return nil
}

// SetLocation upserts user's pin. An existing pin keeps its id and creation
// time; a nil label leaves the stored label alone and "" clears it.
func (s *Service) SetLocation(doc *workspace.Document, user string, lat, lng float64, label *string, signer keys.Signer) (*workspace.UserLocation, error) {
	if strings.TrimSpace(user) == "" {
		return nil, workspace.Invalid("WS-MAP-001", "user identity is required")
	}
	if err := checkCoordinates(lat, lng); err != nil {
		return nil, err
	}
	if err := s.env.CheckSigner(signer); err != nil {
		return nil, err
	}
	now := s.env.Now()
	if _, err := workspace.EnsureModule(doc, workspace.ModuleMap, now); err != nil {
		return nil, err
	}
	if err := s.ids.Contribute(doc, user, signer); err != nil {
		return nil, err
	}
	m := doc.Map()

	loc, found := find(m, user)
	if found {
		loc.Lat, loc.Lng = lat, lng
		loc.UpdatedAt = now
	} else {
		loc = &workspace.UserLocation{
			ID:        s.env.NewID(),
			UserDID:   user,
			Lat:       lat,
			Lng:       lng,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	if label != nil {
		loc.Label = workspace.Optional(*label)
	}
	loc.Signature = ""
	if signer != nil {
		sig, err := signing.Sign(loc.SigningPayload(), signer)
		if err != nil {
			return nil, workspace.WrapError(workspace.KindInternal, "WS-SIGN-002", "sign location", err)
		}
		loc.Signature = sig
	}
	if !found {
		m.Locations[loc.ID] = loc
	}
	doc.Touch(now)
	s.env.Log().Debug("location set", "user", user, "updated", found)
	return loc, nil
}

// RemoveLocation removes user's pin. It reports whether a pin was removed.
func (s *Service) RemoveLocation(doc *workspace.Document, user string) (bool, error) {
	if strings.TrimSpace(user) == "" {
		return false, workspace.Invalid("WS-MAP-001", "user identity is required")
	}
	m := doc.Map()
	if m == nil {
		return false, nil
	}
	removed := false
	// Every pin of the user goes, including duplicates from offline peers.
	for id, loc := range m.Locations {
		if loc != nil && loc.UserDID == user {
			delete(m.Locations, id)
			removed = true
		}
	}
	if removed {
		doc.Touch(s.env.Now())
	}
	return removed, nil
}

// LocationOf returns user's pin, or nil.
func LocationOf(doc *workspace.Document, user string) *workspace.UserLocation {
	m := doc.Map()
	if m == nil {
		return nil
	}
	loc, _ := find(m, user)
	return loc
}

// find returns user's pin; among duplicates the smallest id wins.
func find(m *workspace.MapData, user string) (*workspace.UserLocation, bool) {
	_, loc, ok := protocol.FindInMap(m.Locations, func(l *workspace.UserLocation) bool { return l.UserDID == user })
	return loc, ok
}
