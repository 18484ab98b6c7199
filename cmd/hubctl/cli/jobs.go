package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/sizang-hub/sizang-hub/jobs"
)

// Inspector is the subset of asynq.Inspector the CLI reads.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for queued jobs.
type JobsCLI struct {
	enqueuer  jobs.Enqueuer
	inspector Inspector
	closer    func() error
}

// NewJobsCLI initialises the helpers against Redis.
func NewJobsCLI(redisOpts asynq.RedisClientOpt) *JobsCLI {
	client := asynq.NewClient(redisOpts)
	return &JobsCLI{enqueuer: client, inspector: asynq.NewInspector(redisOpts), closer: client.Close}
}

// NewJobsCLIWith builds JobsCLI over existing dependencies.
func NewJobsCLIWith(enqueuer jobs.Enqueuer, inspector Inspector) *JobsCLI {
	return &JobsCLI{enqueuer: enqueuer, inspector: inspector}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.closer != nil {
		if closeErr := c.closer(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported maintenance job by task type.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.enqueuer == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var (
		task *asynq.Task
		err  error
	)
	switch name {
	case jobs.TaskCleanup:
		task, err = jobs.NewCleanupTask(jobs.CleanupPayload{IdempotencyRetentionHours: 48, NotificationRetentionDays: 90})
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.enqueuer.EnqueueContext(ctx, task)
}

// Announce queues a system notice for every member.
func (c *JobsCLI) Announce(ctx context.Context, actorID, content string) (*asynq.TaskInfo, error) {
	if c == nil || c.enqueuer == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	if content == "" {
		return nil, errors.New("jobs cli: announcement content required")
	}
	task, err := jobs.NewAnnouncementTask(jobs.AnnouncementPayload{ActorID: actorID, Content: content})
	if err != nil {
		return nil, err
	}
	return c.enqueuer.EnqueueContext(ctx, task)
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueues reports metrics for the critical and default queues. A
// queue that has never been used reports zeros.
func (c *JobsCLI) InspectQueues(ctx context.Context) ([]QueueStats, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	out := make([]QueueStats, 0, 2)
	for _, queue := range []string{jobs.QueueCritical, jobs.QueueDefault} {
		info, err := c.inspector.GetQueueInfo(queue)
		if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, fmt.Errorf("jobs cli: inspect %s: %w", queue, err)
		}
		stats := QueueStats{Queue: queue}
		if info != nil {
			stats.Pending = info.Pending
			stats.Active = info.Active
			stats.Scheduled = info.Scheduled
			stats.Retry = info.Retry
			stats.Archived = info.Archived
		}
		out = append(out, stats)
	}
	return out, nil
}

// ListScheduled returns scheduled task infos for queue.
func (c *JobsCLI) ListScheduled(ctx context.Context, queue string, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(queue, asynq.PageSize(size), asynq.Page(1))
}
