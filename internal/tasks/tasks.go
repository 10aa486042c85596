package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TypePurgeExpiredSessions = "session:purge_expired"
)

// Queue names, highest priority first
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Enqueuer is the subset of *asynq.Client used to schedule work
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// PurgePayload carries the reference time for a session purge
type PurgePayload struct {
	RequestedAt time.Time `json:"requested_at"`
	RequestedBy string    `json:"requested_by,omitempty"` // user ID, empty for the scheduler
}

// NewPurgeExpiredSessionsTask creates a task that deletes expired sessions
func NewPurgeExpiredSessionsTask(requestedAt time.Time, requestedBy string) (*asynq.Task, error) {
	payload, err := json.Marshal(PurgePayload{
		RequestedAt: requestedAt.UTC(),
		RequestedBy: requestedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypePurgeExpiredSessions, payload,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
	), nil
}

// PurgeTaskID names the purge for the window containing at. asynq rejects a
// second task with the same ID, so at most one purge runs per window.
func PurgeTaskID(at time.Time, window time.Duration) string {
	return fmt.Sprintf("%s:%d", TypePurgeExpiredSessions, at.UTC().Truncate(window).Unix())
}

// ParsePurgePayload parses a purge task payload
func ParsePurgePayload(task *asynq.Task) (PurgePayload, error) {
	var payload PurgePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}
