// Package notifications stores per-member activity notices and adapts
// domain events from the other packages into them.
package notifications

import "time"

// Type classifies a notification.
type Type string

const (
	TypeComment     Type = "comment"
	TypeLike        Type = "like"
	TypeMention     Type = "mention"
	TypeGroupInvite Type = "group_invite"
	TypeGroupPost   Type = "group_post"
	TypeResource    Type = "resource"
	TypeReport      Type = "report"
	TypeSystem      Type = "system"
)

// Notification is a notice addressed to one member. IDs are ULIDs so the
// primary key orders notifications by creation time.
type Notification struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        Type      `json:"type"`
	Content     string    `json:"content"`
	RelatedID   string    `json:"related_id,omitempty"`
	RelatedType string    `json:"related_type,omitempty"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListFilter narrows a member's notifications.
type ListFilter struct {
	UserID     string
	UnreadOnly bool
	Limit      int
	Offset     int
}
