package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sizang-hub/sizang-hub/jobs"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

type fakeInspector struct {
	closed bool
}

func (f *fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if queue == jobs.QueueCritical {
		return nil, asynq.ErrQueueNotFound
	}
	return &asynq.QueueInfo{Queue: queue, Pending: 3, Retry: 1}, nil
}

func (f *fakeInspector) ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return []*asynq.TaskInfo{{ID: "s1", Type: jobs.TaskCleanup, NextProcessAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}}, nil
}

func (f *fakeInspector) Close() error {
	f.closed = true
	return nil
}

func run(t *testing.T, opts Options, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(opts)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func withFakes() (Options, *fakeEnqueuer, *fakeInspector) {
	enq := &fakeEnqueuer{}
	insp := &fakeInspector{}
	return Options{NewJobs: func(string) *JobsCLI { return NewJobsCLIWith(enq, insp) }}, enq, insp
}

func TestTriggerCleanup(t *testing.T) {
	opts, enq, insp := withFakes()
	out, err := run(t, opts, "jobs", "trigger", jobs.TaskCleanup)
	require.NoError(t, err)
	assert.Contains(t, out, "enqueued maintenance:cleanup as t1")
	require.Len(t, enq.tasks, 1)
	var payload jobs.CleanupPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, 48, payload.IdempotencyRetentionHours)
	assert.True(t, insp.closed)
}

func TestTriggerRejectsUnknownJob(t *testing.T) {
	opts, enq, _ := withFakes()
	_, err := run(t, opts, "jobs", "trigger", "fin:refresh")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported job")
	assert.Empty(t, enq.tasks)
}

func TestStatsToleratesUnusedQueue(t *testing.T) {
	opts, _, _ := withFakes()
	out, err := run(t, opts, "jobs", "stats")
	require.NoError(t, err)
	assert.Regexp(t, `critical\s+0\s+0\s+0\s+0\s+0`, out)
	assert.Regexp(t, `default\s+3\s+0\s+0\s+1\s+0`, out)
}

func TestScheduledListsTasks(t *testing.T) {
	opts, _, _ := withFakes()
	out, err := run(t, opts, "jobs", "scheduled", "--size", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "s1\tmaintenance:cleanup\t2025-03-01T00:00:00Z")
}

func TestAnnounceRequiresActor(t *testing.T) {
	opts, enq, _ := withFakes()
	_, err := run(t, opts, "announce", "Hello")
	require.Error(t, err)

	out, err := run(t, opts, "announce", "--actor", "a1", "Pawlpi kikhopna")
	require.NoError(t, err)
	assert.Contains(t, out, "announcement queued as t1")
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, jobs.TaskAnnouncement, enq.tasks[0].Type())
}

func TestMigrateUsesDSN(t *testing.T) {
	var got string
	opts := Options{Migrate: func(ctx context.Context, dsn string) error {
		got = dsn
		return nil
	}}
	out, err := run(t, opts, "--pg-dsn", "postgres://example/hub", "migrate")
	require.NoError(t, err)
	assert.Equal(t, "postgres://example/hub", got)
	assert.Contains(t, out, "migrations applied")

	opts.Migrate = func(ctx context.Context, dsn string) error { return errors.New("no database") }
	_, err = run(t, opts, "migrate")
	assert.EqualError(t, err, "no database")
}

func TestCommunityValidate(t *testing.T) {
	out, err := run(t, Options{}, "community", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "ok: 3 languages")

	path := filepath.Join(t.TempDir(), "community.yaml")
	require.NoError(t, os.WriteFile(path, []byte("languages:\n  - code: en\n    name: English\n  - code: en\n    name: Again\n"), 0o600))
	_, err = run(t, Options{}, "community", "validate", path)
	assert.Error(t, err)
}
