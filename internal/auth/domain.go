// Package auth implements sign-up, email verification, sign-in, sign-out and
// password reset on top of the users store and the session provider.
package auth

import (
	"time"

	"github.com/sizang-hub/sizang-hub/internal/rbac"
)

// TokenPurpose scopes a one-time token.
type TokenPurpose string

const (
	PurposeVerification TokenPurpose = "verification"
	PurposeReset        TokenPurpose = "reset"
)

// oneTimeTokenTTL bounds verification and reset links.
const oneTimeTokenTTL = 24 * time.Hour

// Recipient addresses an outgoing account email.
type Recipient struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// SignupInput registers a new member.
type SignupInput struct {
	Email       string   `json:"email" validate:"required,email,max=254"`
	Password    string   `json:"password" validate:"required,min=8,max=72"`
	DisplayName string   `json:"display_name" validate:"required,min=2,max=80"`
	Languages   []string `json:"languages" validate:"omitempty,max=10,dive,required,max=35"`
}

// LoginInput signs a member in.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ResetInput completes a password reset.
type ResetInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// SessionView is returned by sign-in style endpoints and /me.
type SessionView struct {
	Actor        rbac.Actor         `json:"actor"`
	Capabilities rbac.CapabilitySet `json:"capabilities"`
	Flags        rbac.Flags         `json:"flags"`
	Token        string             `json:"token,omitempty"`
	ExpiresAt    *time.Time         `json:"expires_at,omitempty"`
	CSRFToken    string             `json:"csrf_token,omitempty"`
}

func newSessionView(actor rbac.Actor) SessionView {
	return SessionView{
		Actor:        actor,
		Capabilities: rbac.CapabilitiesFor(actor.Role),
		Flags:        rbac.FlagsFor(actor.Role),
	}
}
