package workers

import (
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/ailawyer-pro/ailawyer/internal/tasks"
)

// standard 5-field format: minute hour day-of-month month day-of-week
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// PurgeWindow is the granularity of purge de-duplication: scheduled and
// manually requested purges in the same window share one task.
const PurgeWindow = 5 * time.Minute

// ErrPurgePending is returned when the current window already has a purge
var ErrPurgePending = errors.New("session purge already pending")

// ParseSchedule validates a cron expression
func ParseSchedule(expr string) (cron.Schedule, error) {
	schedule, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", expr, err)
	}
	return schedule, nil
}

// NewCleanupScheduler returns a stopped cron that enqueues a session purge
// on every tick of schedule. The caller starts and stops it.
func NewCleanupScheduler(enqueuer tasks.Enqueuer, schedule string, logger zerolog.Logger) (*cron.Cron, error) {
	parsed, err := ParseSchedule(schedule)
	if err != nil {
		return nil, err
	}

	log := logger.With().Str("component", "cleanup_scheduler").Logger()
	c := cron.New(cron.WithParser(scheduleParser))
	c.Schedule(parsed, cron.FuncJob(func() {
		if _, err := EnqueuePurge(enqueuer, time.Now(), "", log); err != nil && !errors.Is(err, ErrPurgePending) {
			return
		}
		log.Debug().Time("next_run", parsed.Next(time.Now())).Msg("Next session purge scheduled")
	}))

	log.Info().
		Str("schedule", schedule).
		Time("next_run", parsed.Next(time.Now())).
		Msg("Session cleanup scheduled")
	return c, nil
}

// EnqueuePurge schedules a session purge task. It returns ErrPurgePending
// when the window containing now already has one.
func EnqueuePurge(enqueuer tasks.Enqueuer, now time.Time, requestedBy string, logger zerolog.Logger) (*asynq.TaskInfo, error) {
	task, err := tasks.NewPurgeExpiredSessionsTask(now, requestedBy)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create purge task")
		return nil, err
	}

	taskID := tasks.PurgeTaskID(now, PurgeWindow)
	info, err := enqueuer.Enqueue(task, asynq.TaskID(taskID))
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		logger.Info().Str("task_id", taskID).Str("requested_by", requestedBy).Msg("Session purge already pending")
		return nil, fmt.Errorf("%w: %s", ErrPurgePending, taskID)
	}
	if err != nil {
		logger.Error().Err(err).Str("requested_by", requestedBy).Msg("Failed to enqueue purge task")
		return nil, fmt.Errorf("failed to enqueue purge task: %w", err)
	}

	logger.Info().
		Str("task_id", info.ID).
		Str("queue", info.Queue).
		Str("requested_by", requestedBy).
		Msg("Session purge enqueued")
	return info, nil
}
