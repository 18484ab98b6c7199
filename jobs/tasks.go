package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/sizang-hub/sizang-hub/internal/auth"
	"github.com/sizang-hub/sizang-hub/internal/notifications"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries account email, which users wait on.
	QueueCritical = "critical"

	TaskSendEmail           = "mail:send"
	TaskNotificationDeliver = "notification:deliver"
	TaskAnnouncement        = "notification:announce"
	TaskCleanup             = "maintenance:cleanup"
)

// EmailKind selects the account email template.
type EmailKind string

const (
	EmailVerification  EmailKind = "verification"
	EmailWelcome       EmailKind = "welcome"
	EmailPasswordReset EmailKind = "password_reset"
)

// SendEmailPayload describes one account email. The body is rendered by the
// worker so template changes apply to queued mail.
type SendEmailPayload struct {
	Kind      EmailKind      `json:"kind"`
	Recipient auth.Recipient `json:"recipient"`
	Token     string         `json:"token,omitempty"`
}

// NotificationPayload carries notifications to store.
type NotificationPayload struct {
	Items []notifications.Notification `json:"items"`
}

// AnnouncementPayload is a system notice for every member.
type AnnouncementPayload struct {
	ActorID string `json:"actor_id"`
	Content string `json:"content"`
}

// CleanupPayload tunes the maintenance sweep.
type CleanupPayload struct {
	IdempotencyRetentionHours int `json:"idempotency_retention_hours"`
	NotificationRetentionDays int `json:"notification_retention_days"`
}

// NewSendEmailTask constructs an email task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	return newTask(TaskSendEmail, payload, asynq.Queue(QueueCritical), asynq.MaxRetry(5))
}

// NewNotificationTask constructs a notification delivery task.
func NewNotificationTask(payload NotificationPayload) (*asynq.Task, error) {
	return newTask(TaskNotificationDeliver, payload, asynq.Queue(QueueDefault))
}

// NewAnnouncementTask constructs an announcement fan-out task.
func NewAnnouncementTask(payload AnnouncementPayload) (*asynq.Task, error) {
	return newTask(TaskAnnouncement, payload, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}

// NewCleanupTask constructs the periodic maintenance task.
func NewCleanupTask(payload CleanupPayload) (*asynq.Task, error) {
	return newTask(TaskCleanup, payload, asynq.Queue(QueueDefault))
}

func newTask(kind string, payload any, opts ...asynq.Option) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(kind, body, opts...), nil
}
