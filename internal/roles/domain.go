// Package roles reports the fixed community roles alongside live membership
// counts for the admin panel.
package roles

import "github.com/sizang-hub/sizang-hub/internal/rbac"

// Role summarises one role of the closed role table.
type Role struct {
	Name         rbac.Role          `json:"name"`
	Description  string             `json:"description"`
	Capabilities rbac.CapabilitySet `json:"capabilities"`
	Flags        rbac.Flags         `json:"flags"`
	Members      int                `json:"members"`
}

var descriptions = map[rbac.Role]string{
	rbac.RoleAdmin:     "Full access to manage users, content and settings",
	rbac.RoleModerator: "Reviews reports and moderates community content",
	rbac.RoleMember:    "Creates and manages their own posts, groups and resources",
	rbac.RoleGuest:     "Browses public content only",
}
