// Package users manages community member accounts and profiles.
package users

import (
	"time"

	"github.com/sizang-hub/sizang-hub/internal/rbac"
)

// User represents a stored account.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	DisplayName   string     `json:"display_name"`
	PasswordHash  string     `json:"-"`
	Role          rbac.Role  `json:"role"`
	EmailVerified bool       `json:"email_verified"`
	Avatar        string     `json:"avatar,omitempty"`
	Bio           string     `json:"bio,omitempty"`
	Location      string     `json:"location,omitempty"`
	Languages     []string   `json:"languages"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastActiveAt  *time.Time `json:"last_active_at,omitempty"`
}

// Actor projects the account onto the permission model.
func (u User) Actor() rbac.Actor {
	var langs []string
	if len(u.Languages) > 0 {
		langs = u.Languages
	}
	return rbac.Actor{
		ID:            u.ID,
		DisplayName:   u.DisplayName,
		Email:         u.Email,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
		Avatar:        u.Avatar,
		Languages:     langs,
	}
}

// ListFilter narrows user listings.
type ListFilter struct {
	Search string
	Role   *rbac.Role
	Limit  int
	Offset int
}

// ProfileInput carries a partial profile update. Nil fields are unchanged.
type ProfileInput struct {
	DisplayName *string  `json:"display_name" validate:"omitempty,min=2,max=80"`
	Avatar      *string  `json:"avatar" validate:"omitempty,url,max=500"`
	Bio         *string  `json:"bio" validate:"omitempty,max=1000"`
	Location    *string  `json:"location" validate:"omitempty,max=120"`
	Languages   []string `json:"languages" validate:"omitempty,max=10,dive,required,max=35"`
}

// NewUser is the data needed to register an account.
type NewUser struct {
	Email        string
	DisplayName  string
	PasswordHash string
	Role         rbac.Role
	Languages    []string
	Verified     bool
}
