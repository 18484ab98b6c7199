// Package groups implements community groups and their memberships.
package groups

import (
	"context"
	"time"
)

// Privacy controls who can see a group and how members join.
type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
	PrivacySecret  Privacy = "secret"
)

// Valid reports whether p is a known privacy level.
func (p Privacy) Valid() bool {
	switch p {
	case PrivacyPublic, PrivacyPrivate, PrivacySecret:
		return true
	}
	return false
}

// MemberRole is a role inside one group, separate from the site role.
type MemberRole string

const (
	MemberAdmin     MemberRole = "admin"
	MemberModerator MemberRole = "moderator"
	MemberRegular   MemberRole = "member"
)

// MemberStatus tracks a membership through approval.
type MemberStatus string

const (
	StatusActive  MemberStatus = "active"
	StatusPending MemberStatus = "pending"
	StatusInvited MemberStatus = "invited"
	StatusBanned  MemberStatus = "banned"
)

// Group is a community space.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Slug        string    `json:"slug"`
	Privacy     Privacy   `json:"privacy"`
	CreatorID   string    `json:"creator_id"`
	Rules       string    `json:"rules"`
	CoverImage  string    `json:"cover_image,omitempty"`
	Category    string    `json:"category,omitempty"`
	Language    string    `json:"language"`
	Tags        []string  `json:"tags"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Membership links a user to a group.
type Membership struct {
	GroupID     string       `json:"group_id"`
	UserID      string       `json:"user_id"`
	DisplayName string       `json:"display_name,omitempty"`
	Role        MemberRole   `json:"role"`
	Status      MemberStatus `json:"status"`
	JoinedAt    time.Time    `json:"joined_at"`
}

// ListFilter narrows group listings.
type ListFilter struct {
	Search        string
	Language      string
	IncludeSecret bool
	MemberID      string
	Limit         int
	Offset        int
}

// CreateInput creates a group.
type CreateInput struct {
	Name        string   `json:"name" validate:"required,min=3,max=100"`
	Description string   `json:"description" validate:"max=2000"`
	Slug        string   `json:"slug" validate:"omitempty,max=100"`
	Privacy     Privacy  `json:"privacy" validate:"omitempty,oneof=public private secret"`
	Rules       string   `json:"rules" validate:"max=5000"`
	CoverImage  string   `json:"cover_image" validate:"omitempty,url,max=500"`
	Category    string   `json:"category" validate:"max=100"`
	Language    string   `json:"language" validate:"omitempty,max=35"`
	Tags        []string `json:"tags" validate:"omitempty,max=10,dive,required,max=40"`
}

// UpdateInput carries a partial group edit.
type UpdateInput struct {
	Name        *string  `json:"name" validate:"omitempty,min=3,max=100"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	Privacy     *Privacy `json:"privacy" validate:"omitempty,oneof=public private secret"`
	Rules       *string  `json:"rules" validate:"omitempty,max=5000"`
	CoverImage  *string  `json:"cover_image" validate:"omitempty,url,max=500"`
	Category    *string  `json:"category" validate:"omitempty,max=100"`
	Tags        []string `json:"tags" validate:"omitempty,max=10,dive,required,max=40"`
}

// Post is a message on a group's wall.
type Post struct {
	ID            string    `json:"id"`
	GroupID       string    `json:"group_id"`
	Title         string    `json:"title,omitempty"`
	Content       string    `json:"content"`
	AuthorID      string    `json:"author_id"`
	AuthorName    string    `json:"author_name,omitempty"`
	AttachmentURL string    `json:"attachment_url,omitempty"`
	Language      string    `json:"language"`
	CommentCount  int       `json:"comment_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Comment answers a group post.
type Comment struct {
	ID         string    `json:"id"`
	GroupID    string    `json:"group_id"`
	PostID     string    `json:"post_id"`
	Content    string    `json:"content"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Language   string    `json:"language"`
	CreatedAt  time.Time `json:"created_at"`
}

// PostInput creates a group post.
type PostInput struct {
	Title         string `json:"title" validate:"max=200"`
	Content       string `json:"content" validate:"required,max=10000"`
	AttachmentURL string `json:"attachment_url" validate:"omitempty,url,max=1000"`
	Language      string `json:"language" validate:"omitempty,max=35"`
}

// CommentInput answers a group post.
type CommentInput struct {
	Content  string `json:"content" validate:"required,max=5000"`
	Language string `json:"language" validate:"omitempty,max=35"`
}

// InviteInput names the member to invite, by id or by email.
type InviteInput struct {
	UserID string `json:"user_id" validate:"max=64"`
	Email  string `json:"email" validate:"omitempty,email,max=254"`
}

// Notifier is told about group activity that concerns other members.
type Notifier interface {
	Invited(ctx context.Context, g Group, inviterName, userID string) error
	Posted(ctx context.Context, g Group, post Post, memberIDs []string) error
	Commented(ctx context.Context, g Group, post Post, c Comment) error
}

type nopNotifier struct{}

func (nopNotifier) Invited(context.Context, Group, string, string) error { return nil }

func (nopNotifier) Posted(context.Context, Group, Post, []string) error { return nil }

func (nopNotifier) Commented(context.Context, Group, Post, Comment) error { return nil }
