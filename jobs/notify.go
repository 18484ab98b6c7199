package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/sizang-hub/sizang-hub/internal/admin"
	jobmetrics "github.com/sizang-hub/sizang-hub/internal/jobs"
	"github.com/sizang-hub/sizang-hub/internal/notifications"
	"github.com/sizang-hub/sizang-hub/internal/users"
)

const announcementBatch = 200

var (
	_ notifications.Sink = (*Client)(nil)
	_ admin.Announcer    = (*Client)(nil)
)

// Deliver enqueues notifications for the worker to store.
func (c *Client) Deliver(ctx context.Context, items ...notifications.Notification) error {
	if len(items) == 0 {
		return nil
	}
	task, err := NewNotificationTask(NotificationPayload{Items: items})
	return c.enqueue(ctx, task, err)
}

// Announce enqueues a fan-out of content to every member.
func (c *Client) Announce(ctx context.Context, actorID, content string) error {
	task, err := NewAnnouncementTask(AnnouncementPayload{ActorID: actorID, Content: content})
	return c.enqueue(ctx, task, err)
}

// NotificationJob stores queued notifications.
type NotificationJob struct {
	Store   notifications.Sink
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskNotificationDeliver tasks.
func (j *NotificationJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	var payload NotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode notification payload: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskNotificationDeliver)
	defer func() { resultErr = tracker.End(resultErr) }()
	if err := j.Store.Deliver(ctx, payload.Items...); err != nil {
		return err
	}
	j.Metrics.AddDelivered("notification", len(payload.Items))
	return nil
}

// MemberLister pages through accounts.
type MemberLister interface {
	List(ctx context.Context, filter users.ListFilter) ([]users.User, int, error)
}

// AnnouncementJob writes a system notification for every member.
type AnnouncementJob struct {
	Members MemberLister
	Store   notifications.Sink
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskAnnouncement tasks.
func (j *AnnouncementJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	var payload AnnouncementPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode announcement payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Content == "" {
		return fmt.Errorf("empty announcement: %w", asynq.SkipRetry)
	}
	if j.Members == nil || j.Store == nil {
		return errors.New("announcement: handler not configured")
	}
	tracker := j.Metrics.Track(TaskAnnouncement)
	defer func() { resultErr = tracker.End(resultErr) }()

	sent := 0
	for offset := 0; ; offset += announcementBatch {
		members, total, err := j.Members.List(ctx, users.ListFilter{Limit: announcementBatch, Offset: offset})
		if err != nil {
			return err
		}
		batch := make([]notifications.Notification, 0, len(members))
		for _, m := range members {
			batch = append(batch, notifications.Notification{
				UserID:      m.ID,
				Type:        notifications.TypeSystem,
				Content:     payload.Content,
				RelatedID:   payload.ActorID,
				RelatedType: "announcement",
			})
		}
		if err := j.Store.Deliver(ctx, batch...); err != nil {
			return err
		}
		sent += len(batch)
		if len(members) < announcementBatch || offset+announcementBatch >= total {
			break
		}
	}
	j.Metrics.AddDelivered("notification", sent)
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("announcement delivered", slog.String("actor_id", payload.ActorID), slog.Int("recipients", sent))
	return nil
}
