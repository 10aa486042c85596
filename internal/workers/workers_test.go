package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ailawyer-pro/ailawyer/internal/tasks"
)

type fakePurger struct {
	removed int64
	err     error
	calls   int
}

func (f *fakePurger) PurgeExpired(context.Context) (int64, error) {
	f.calls++
	return f.removed, f.err
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: tasks.QueueLow, Type: task.Type()}, nil
}

func TestHandlePurgeExpiredSessions(t *testing.T) {
	task, err := tasks.NewPurgeExpiredSessionsTask(time.Now(), "")
	require.NoError(t, err)

	purger := &fakePurger{removed: 3}
	require.NoError(t, HandlePurgeExpiredSessions(context.Background(), task, purger, zerolog.Nop()))
	assert.Equal(t, 1, purger.calls)

	failing := &fakePurger{err: errors.New("database is locked")}
	err = HandlePurgeExpiredSessions(context.Background(), task, failing, zerolog.Nop())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry, "store errors are retried")
}

func TestHandlePurgeExpiredSessions_MalformedPayloadSkipsRetry(t *testing.T) {
	task := asynq.NewTask(tasks.TypePurgeExpiredSessions, []byte("not json"))
	purger := &fakePurger{}

	err := HandlePurgeExpiredSessions(context.Background(), task, purger, zerolog.Nop())
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Zero(t, purger.calls)
}

func TestEnqueuePurge(t *testing.T) {
	enq := &fakeEnqueuer{}
	info, err := EnqueuePurge(enq, time.Now(), "01JADMIN", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "task-1", info.ID)
	require.Len(t, enq.tasks, 1)

	payload, err := tasks.ParsePurgePayload(enq.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, "01JADMIN", payload.RequestedBy)

	_, err = EnqueuePurge(&fakeEnqueuer{err: errors.New("redis down")}, time.Now(), "", zerolog.Nop())
	assert.Error(t, err)
}

func TestEnqueuePurge_DeduplicatesWithinWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2026, 10, 19, 3, 1, 0, 0, time.UTC)

	first, err := EnqueuePurge(client, now, "", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, tasks.PurgeTaskID(now, PurgeWindow), first.ID)

	// A manual request moments later lands in the same window.
	_, err = EnqueuePurge(client, now.Add(30*time.Second), "01JADMIN", zerolog.Nop())
	assert.ErrorIs(t, err, ErrPurgePending)

	next, err := EnqueuePurge(client, now.Add(PurgeWindow), "", zerolog.Nop())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, next.ID)
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("*/15 * * * *")
	require.NoError(t, err)

	from := time.Date(2026, 10, 19, 10, 7, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 19, 10, 15, 0, 0, time.UTC), s.Next(from))

	_, err = ParseSchedule("every now and then")
	assert.Error(t, err)

	_, err = ParseSchedule("0 0 * * * *")
	assert.Error(t, err, "six-field expressions are rejected")
}

func TestNewCleanupScheduler(t *testing.T) {
	c, err := NewCleanupScheduler(&fakeEnqueuer{}, "0 3 * * *", zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	_, err = NewCleanupScheduler(&fakeEnqueuer{}, "bogus", zerolog.Nop())
	assert.Error(t, err)
}
