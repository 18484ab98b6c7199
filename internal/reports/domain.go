// Package reports lets members flag content for moderator review.
package reports

import "time"

// TargetType names what a report points at.
type TargetType string

const (
	TargetThread   TargetType = "thread"
	TargetReply    TargetType = "reply"
	TargetGroup    TargetType = "group"
	TargetResource TargetType = "resource"
	TargetUser     TargetType = "user"
)

// Status tracks a report through review.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReviewed  Status = "reviewed"
	StatusResolved  Status = "resolved"
	StatusDismissed Status = "dismissed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReviewed, StatusResolved, StatusDismissed:
		return true
	}
	return false
}

// Report is a moderation request.
type Report struct {
	ID         string     `json:"id"`
	Type       TargetType `json:"type"`
	TargetID   string     `json:"target_id"`
	ReporterID string     `json:"reporter_id"`
	Reason     string     `json:"reason"`
	Status     Status     `json:"status"`
	Notes      string     `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ListFilter narrows report listings.
type ListFilter struct {
	Status     Status
	Type       TargetType
	ReporterID string
	Limit      int
	Offset     int
}

// Input files a report.
type Input struct {
	Type     TargetType `json:"type" validate:"required,oneof=thread reply group resource user"`
	TargetID string     `json:"target_id" validate:"required,max=64"`
	Reason   string     `json:"reason" validate:"required,min=3,max=2000"`
}

// Review updates a report's status or notes.
type Review struct {
	Status *Status `json:"status" validate:"omitempty,oneof=pending reviewed resolved dismissed"`
	Notes  *string `json:"notes" validate:"omitempty,max=5000"`
}
