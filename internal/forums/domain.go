// Package forums implements discussion categories, threads and replies.
package forums

import (
	"context"
	"time"
)

// Category groups threads.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Slug        string    `json:"slug"`
	SortOrder   int       `json:"sort_order"`
	ParentID    *string   `json:"parent_id,omitempty"`
	IsActive    bool      `json:"is_active"`
	ThreadCount int       `json:"thread_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Thread is a discussion started by a member.
type Thread struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ContentHTML string    `json:"content_html"`
	CategoryID  string    `json:"category_id"`
	AuthorID    string    `json:"author_id"`
	AuthorName  string    `json:"author_name,omitempty"`
	Language    string    `json:"language"`
	Tags        []string  `json:"tags"`
	IsPinned    bool      `json:"is_pinned"`
	IsLocked    bool      `json:"is_locked"`
	ViewCount   int       `json:"view_count"`
	LikeCount   int       `json:"like_count"`
	ReplyCount  int       `json:"reply_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastReplyAt time.Time `json:"last_reply_at"`
}

// Reply is a comment on a thread, optionally nested under another reply.
type Reply struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"thread_id"`
	ParentID    *string   `json:"parent_id,omitempty"`
	Content     string    `json:"content"`
	ContentHTML string    `json:"content_html"`
	AuthorID    string    `json:"author_id"`
	AuthorName  string    `json:"author_name,omitempty"`
	Language    string    `json:"language"`
	IsEdited    bool      `json:"is_edited"`
	LikeCount   int       `json:"like_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ThreadFilter narrows thread listings.
type ThreadFilter struct {
	CategoryID string
	Language   string
	Search     string
	AuthorID   string
	Limit      int
	Offset     int
}

// ThreadInput creates a thread.
type ThreadInput struct {
	Title      string   `json:"title" validate:"required,min=3,max=200"`
	Content    string   `json:"content" validate:"required,max=20000"`
	CategoryID string   `json:"category_id" validate:"required"`
	Language   string   `json:"language" validate:"omitempty,max=35"`
	Tags       []string `json:"tags" validate:"omitempty,max=10,dive,required,max=40"`
}

// ThreadUpdate carries a partial thread edit.
type ThreadUpdate struct {
	Title      *string  `json:"title" validate:"omitempty,min=3,max=200"`
	Content    *string  `json:"content" validate:"omitempty,max=20000"`
	CategoryID *string  `json:"category_id"`
	Tags       []string `json:"tags" validate:"omitempty,max=10,dive,required,max=40"`
}

// ReplyInput creates a reply.
type ReplyInput struct {
	Content  string  `json:"content" validate:"required,max=10000"`
	ParentID *string `json:"parent_id"`
	Language string  `json:"language" validate:"omitempty,max=35"`
}

// CategoryInput creates or replaces a category.
type CategoryInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description string  `json:"description" validate:"max=500"`
	Slug        string  `json:"slug" validate:"required,max=100"`
	SortOrder   int     `json:"sort_order"`
	ParentID    *string `json:"parent_id"`
}

// LikeTarget names what a like applies to.
type LikeTarget string

const (
	LikeThread LikeTarget = "thread"
	LikeReply  LikeTarget = "reply"
)

// Notifier is told about activity that concerns another member.
type Notifier interface {
	ReplyPosted(ctx context.Context, thread Thread, reply Reply) error
	ContentLiked(ctx context.Context, ownerID, likerID string, target LikeTarget, targetID string) error
	Mentioned(ctx context.Context, thread Thread, authorName string, userIDs []string) error
}

type nopNotifier struct{}

func (nopNotifier) ReplyPosted(context.Context, Thread, Reply) error { return nil }

func (nopNotifier) ContentLiked(context.Context, string, string, LikeTarget, string) error {
	return nil
}

func (nopNotifier) Mentioned(context.Context, Thread, string, []string) error { return nil }
