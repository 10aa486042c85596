package tasks

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurgeTaskPayload(t *testing.T) {
	at := time.Date(2026, 10, 19, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	task, err := NewPurgeExpiredSessionsTask(at, "01JADMIN")
	require.NoError(t, err)
	assert.Equal(t, TypePurgeExpiredSessions, task.Type())

	payload, err := ParsePurgePayload(task)
	require.NoError(t, err)
	assert.True(t, payload.RequestedAt.Equal(at))
	assert.Equal(t, time.UTC, payload.RequestedAt.Location())
	assert.Equal(t, "01JADMIN", payload.RequestedBy)
}

func TestParsePurgePayload_Malformed(t *testing.T) {
	_, err := ParsePurgePayload(asynq.NewTask(TypePurgeExpiredSessions, []byte("{")))
	assert.Error(t, err)
}

func TestPurgeTaskID(t *testing.T) {
	base := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)

	assert.Equal(t, PurgeTaskID(base, 5*time.Minute), PurgeTaskID(base.Add(4*time.Minute), 5*time.Minute))
	assert.NotEqual(t, PurgeTaskID(base, 5*time.Minute), PurgeTaskID(base.Add(5*time.Minute), 5*time.Minute))
}
