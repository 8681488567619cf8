package queue_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadflow/internal/models"
	"leadflow/internal/queue"
)

func queues(t *testing.T) map[string]queue.AutomationQueue {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]queue.AutomationQueue{
		"memory": queue.NewMemoryQueue(),
		"redis":  queue.NewRedisQueue(client, "test:automation"),
	}
}

func TestQueueFIFOAndDedupe(t *testing.T) {
	for name, q := range queues(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := q.Dequeue(ctx)
			require.ErrorIs(t, err, queue.ErrEmpty)

			jobs := []models.AutomationJob{
				{ID: "j1", LeadID: 1, Stage: models.StageQualifying, TransitionID: "t1"},
				{ID: "j2", LeadID: 2, Stage: models.StageWarmNurturing, TransitionID: "t2"},
			}
			for _, j := range jobs {
				require.NoError(t, q.Enqueue(ctx, j))
			}
			require.NoError(t, q.Enqueue(ctx, jobs[0]))

			n, err := q.Len(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 2, n)

			first, err := q.Dequeue(ctx)
			require.NoError(t, err)
			assert.Equal(t, "j1", first.ID)
			assert.Equal(t, models.StageQualifying, first.Stage)
			assert.False(t, first.EnqueuedAt.IsZero())

			second, err := q.Dequeue(ctx)
			require.NoError(t, err)
			assert.Equal(t, "j2", second.ID)

			_, err = q.Dequeue(ctx)
			assert.ErrorIs(t, err, queue.ErrEmpty)
		})
	}
}
