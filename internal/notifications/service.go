package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sizang-hub/sizang-hub/internal/ids"
	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
)

// Sink accepts notifications for delivery. The Service stores them
// directly; the job queue defers them to the worker.
type Sink interface {
	Deliver(ctx context.Context, items ...Notification) error
}

// Service reads and writes member notifications.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Deliver stores items, assigning IDs and timestamps where missing.
func (s *Service) Deliver(ctx context.Context, items ...Notification) error {
	for i := range items {
		if items[i].UserID == "" || items[i].Content == "" {
			return errors.New("notifications: user and content are required")
		}
		if items[i].ID == "" {
			items[i].ID = ids.Sortable()
		}
		if items[i].CreatedAt.IsZero() {
			items[i].CreatedAt = s.now()
		}
	}
	return s.repo.Insert(ctx, items...)
}

// List returns the actor's notifications.
func (s *Service) List(ctx context.Context, actor *rbac.Actor, filter ListFilter) ([]Notification, int, error) {
	if actor == nil {
		return nil, 0, httpx.ErrUnauthorized
	}
	filter.UserID = actor.ID
	return s.repo.List(ctx, filter)
}

// UnreadCount counts the actor's unread notifications.
func (s *Service) UnreadCount(ctx context.Context, actor *rbac.Actor) (int, error) {
	if actor == nil {
		return 0, httpx.ErrUnauthorized
	}
	return s.repo.UnreadCount(ctx, actor.ID)
}

// MarkRead flags one of the actor's notifications as read.
func (s *Service) MarkRead(ctx context.Context, actor *rbac.Actor, id string) error {
	if actor == nil {
		return httpx.ErrUnauthorized
	}
	if id == "" {
		return fmt.Errorf("%w: notification id required", httpx.ErrValidation)
	}
	return s.repo.MarkRead(ctx, actor.ID, id)
}

// MarkAllRead flags all of the actor's notifications as read.
func (s *Service) MarkAllRead(ctx context.Context, actor *rbac.Actor) (int64, error) {
	if actor == nil {
		return 0, httpx.ErrUnauthorized
	}
	return s.repo.MarkAllRead(ctx, actor.ID)
}

// Prune removes read notifications older than retention.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteReadBefore(ctx, s.now().Add(-retention))
}
