package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-events/backend/internal/models"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, nil), mr
}

func TestEnqueueDequeueNotification(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	n := models.Notification{EventID: "e1", Kind: "event_updated", Recipients: []string{"a", "b"}}

	id, err := q.EnqueueNotification(ctx, n)
	require.NoError(t, err)
	queued, dead, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), queued)
	assert.Zero(t, dead)

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, JobTypeNotify, job.Type)
	assert.Zero(t, job.Attempt)

	got, err := job.NotificationPayload()
	require.NoError(t, err)
	assert.Equal(t, "e1", got.EventID)
	assert.Equal(t, "event_updated", got.Kind)
	assert.Equal(t, []string{"a", "b"}, got.Recipients)
}

func TestDequeueTimesOutEmpty(t *testing.T) {
	q, _ := newTestQueue(t)

	job, err := q.Dequeue(context.Background(), time.Second)
	assert.NoError(t, err)
	assert.Nil(t, job)
}

func TestDequeueDeadLettersUndecodableEntry(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()
	_, err := mr.RPush(QueueNotifications, "{not json")
	require.NoError(t, err)

	job, err := q.Dequeue(ctx, time.Second)
	assert.NoError(t, err)
	assert.Nil(t, job)

	dlq, err := mr.List(QueueDLQ)
	require.NoError(t, err)
	assert.Equal(t, []string{"{not json"}, dlq)
}

func TestRetryDeadLettersAtMaxRetries(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	_, err := q.EnqueueNotification(ctx, models.Notification{EventID: "e1", Kind: "custom", Recipients: []string{"a"}})
	require.NoError(t, err)
	cause := errors.New("smtp down")

	for attempt := 1; attempt < MaxRetries; attempt++ {
		job, err := q.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, job)
		dead, err := q.Retry(ctx, job, cause)
		require.NoError(t, err)
		assert.False(t, dead)
		assert.Equal(t, attempt, job.Attempt)
	}

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, MaxRetries-1, job.Attempt)
	assert.Equal(t, "smtp down", job.LastError)

	dead, err := q.Retry(ctx, job, cause)
	require.NoError(t, err)
	assert.True(t, dead)

	queued, deadCount, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, queued)
	assert.Equal(t, int64(1), deadCount)
}

func TestNotificationPayloadRejectsOtherTypes(t *testing.T) {
	job := &Job{Type: "resize", Payload: []byte(`{}`)}
	_, err := job.NotificationPayload()
	assert.Error(t, err)
}
