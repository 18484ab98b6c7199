// Package rbac holds the community role table, the permission evaluator and
// the guard boundary that turns a permission check into an access outcome.
package rbac

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Role classifies an actor. The set of roles is closed; the zero value is
// RoleGuest so an uninitialised role never grants anything.
type Role uint8

const (
	RoleGuest Role = iota
	RoleMember
	RoleModerator
	RoleAdmin
)

// AllRoles lists every role from least to most privileged.
func AllRoles() []Role {
	return []Role{RoleGuest, RoleMember, RoleModerator, RoleAdmin}
}

func (r Role) String() string {
	switch r {
	case RoleGuest:
		return "guest"
	case RoleMember:
		return "member"
	case RoleModerator:
		return "moderator"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	return r <= RoleAdmin
}

// ParseRole converts a stored or submitted role name. Matching is case
// insensitive and the legacy "user" spelling maps to RoleMember.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "guest":
		return RoleGuest, nil
	case "member", "user":
		return RoleMember, nil
	case "moderator":
		return RoleModerator, nil
	case "admin":
		return RoleAdmin, nil
	}
	return RoleGuest, fmt.Errorf("rbac: unknown role %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("rbac: invalid role %d", r)
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Capability is a single named permission. Each capability occupies one bit
// so a role's grant fits in a CapabilitySet.
type Capability uint16

const (
	CapManageUsers Capability = 1 << iota
	CapManageContent
	CapModerateContent
	CapCreateContent
	CapEditOwnContent
	CapDeleteOwnContent
	CapViewPrivateContent
)

var capabilityNames = []struct {
	cap         Capability
	name        string
	description string
}{
	{CapManageUsers, "manage_users", "Manage all users (create, update, delete)"},
	{CapManageContent, "manage_content", "Manage all content (create, update, delete)"},
	{CapModerateContent, "moderate_content", "Moderate content (approve, reject, edit)"},
	{CapCreateContent, "create_content", "Create new content (posts, comments, resources)"},
	{CapEditOwnContent, "edit_own_content", "Edit own content"},
	{CapDeleteOwnContent, "delete_own_content", "Delete own content"},
	{CapViewPrivateContent, "view_private_content", "View private content"},
}

// AllCapabilities lists every capability in declaration order.
func AllCapabilities() []Capability {
	caps := make([]Capability, 0, len(capabilityNames))
	for _, entry := range capabilityNames {
		caps = append(caps, entry.cap)
	}
	return caps
}

func (c Capability) String() string {
	for _, entry := range capabilityNames {
		if entry.cap == c {
			return entry.name
		}
	}
	return "unknown"
}

// Description returns the human readable summary shown in admin panels.
func (c Capability) Description() string {
	for _, entry := range capabilityNames {
		if entry.cap == c {
			return entry.description
		}
	}
	return ""
}

// Valid reports whether c names exactly one known capability.
func (c Capability) Valid() bool {
	for _, entry := range capabilityNames {
		if entry.cap == c {
			return true
		}
	}
	return false
}

// ParseCapability accepts snake_case ("manage_users") as well as the camelCase
// spelling used by older clients ("manageUsers").
func ParseCapability(s string) (Capability, error) {
	needle := normalizeName(s)
	for _, entry := range capabilityNames {
		if normalizeName(entry.name) == needle {
			return entry.cap, nil
		}
	}
	return 0, fmt.Errorf("rbac: unknown capability %q", s)
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "")
	return strings.ReplaceAll(s, "-", "")
}

// MarshalText implements encoding.TextMarshaler.
func (c Capability) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("rbac: invalid capability %d", c)
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Capability) UnmarshalText(text []byte) error {
	parsed, err := ParseCapability(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// CapabilitySet is a set of capabilities with membership-only semantics.
type CapabilitySet uint16

// NewCapabilitySet builds a set from individual capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	var s CapabilitySet
	for _, c := range caps {
		s = s.With(c)
	}
	return s
}

// Has reports whether c is a member of the set. Unknown capabilities are
// never members.
func (s CapabilitySet) Has(c Capability) bool {
	if !c.Valid() {
		return false
	}
	return s&CapabilitySet(c) != 0
}

// With returns a copy of the set including c.
func (s CapabilitySet) With(c Capability) CapabilitySet {
	if !c.Valid() {
		return s
	}
	return s | CapabilitySet(c)
}

// Without returns a copy of the set excluding c.
func (s CapabilitySet) Without(c Capability) CapabilitySet {
	return s &^ CapabilitySet(c)
}

// Contains reports whether every member of other is also in s.
func (s CapabilitySet) Contains(other CapabilitySet) bool {
	return s&other == other
}

// Len returns the number of members.
func (s CapabilitySet) Len() int {
	n := 0
	for _, c := range AllCapabilities() {
		if s.Has(c) {
			n++
		}
	}
	return n
}

// Capabilities lists the members in declaration order.
func (s CapabilitySet) Capabilities() []Capability {
	caps := make([]Capability, 0, s.Len())
	for _, c := range AllCapabilities() {
		if s.Has(c) {
			caps = append(caps, c)
		}
	}
	return caps
}

// Names lists the member names in declaration order.
func (s CapabilitySet) Names() []string {
	caps := s.Capabilities()
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.String()
	}
	return names
}

// MarshalJSON encodes the set as a list of capability names.
func (s CapabilitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes a list of capability names.
func (s *CapabilitySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var set CapabilitySet
	for _, name := range names {
		c, err := ParseCapability(name)
		if err != nil {
			return err
		}
		set = set.With(c)
	}
	*s = set
	return nil
}

// Actor is the authenticated user a permission question is asked about.
// Absence of an actor is expressed as a nil *Actor, never as a guest Actor.
type Actor struct {
	ID            string   `json:"id"`
	DisplayName   string   `json:"display_name"`
	Email         string   `json:"email"`
	Role          Role     `json:"role"`
	EmailVerified bool     `json:"email_verified"`
	Avatar        string   `json:"avatar,omitempty"`
	Languages     []string `json:"languages,omitempty"`
}

// Equal reports whether a and b describe the same actor. A nil and an empty
// language list are the same list.
func (a Actor) Equal(b Actor) bool {
	return a.ID == b.ID &&
		a.DisplayName == b.DisplayName &&
		a.Email == b.Email &&
		a.Role == b.Role &&
		a.EmailVerified == b.EmailVerified &&
		a.Avatar == b.Avatar &&
		slices.Equal(a.Languages, b.Languages)
}
