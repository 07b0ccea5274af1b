package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atende-relay/internal/models"
)

func TestEnqueueDequeueOrdering(t *testing.T) {
	conn := newTestDB(t)
	repo := NewQueueRepository(conn)

	low, err := repo.Enqueue("conv-1", "texto", `{"a":1}`, 0, 3)
	require.NoError(t, err)
	_, err = repo.Enqueue("conv-2", "texto", `{"b":2}`, 0, 3)
	require.NoError(t, err)
	high, err := repo.Enqueue("conv-3", "texto", `{"c":3}`, 5, 3)
	require.NoError(t, err)

	// Highest priority first, then FIFO within priority.
	e1, err := repo.DequeueNext()
	require.NoError(t, err)
	require.NotNil(t, e1)
	assert.Equal(t, high.ID, e1.ID)
	assert.Equal(t, models.QueueProcessing, e1.Status)

	e2, err := repo.DequeueNext()
	require.NoError(t, err)
	require.NotNil(t, e2)
	assert.Equal(t, low.ID, e2.ID)
}

func TestDequeueClaimsAtMostOnce(t *testing.T) {
	conn := newTestDB(t)
	repo := NewQueueRepository(conn)

	entry, err := repo.Enqueue("conv-1", "texto", `{}`, 0, 3)
	require.NoError(t, err)

	first, err := repo.DequeueNext()
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, entry.ID, first.ID)

	// The only entry is already processing; a second consumer gets nothing.
	second, err := repo.DequeueNext()
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestDequeueRespectsSchedule(t *testing.T) {
	conn := newTestDB(t)
	repo := NewQueueRepository(conn)

	e, err := repo.Enqueue("conv-1", "texto", `{}`, 0, 3)
	require.NoError(t, err)
	require.NoError(t, repo.Requeue(e, "provider timeout", time.Hour))

	// Backoff pushed the entry into the future; nothing is eligible now.
	got, err := repo.DequeueNext()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRequeueIncrementsRetryCount(t *testing.T) {
	conn := newTestDB(t)
	repo := NewQueueRepository(conn)

	e, err := repo.Enqueue("conv-1", "texto", `{}`, 0, 3)
	require.NoError(t, err)
	claimed, err := repo.DequeueNext()
	require.NoError(t, err)
	require.NoError(t, repo.Requeue(claimed, "boom", 0))

	again, err := repo.DequeueNext()
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, e.ID, again.ID)
	assert.Equal(t, 1, again.RetryCount)
	assert.Equal(t, "boom", again.ErrorMessage.String)
}

func TestMoveToDeadLetterPreservesPayload(t *testing.T) {
	conn := newTestDB(t)
	repo := NewQueueRepository(conn)

	e, err := repo.Enqueue("conv-1", "imagem", `{"message":{"tipo":"imagem"}}`, 0, 3)
	require.NoError(t, err)
	e.RetryCount = 2 // third attempt failing

	require.NoError(t, repo.MoveToDeadLetter(e, "no imageUrl"))

	failed, err := repo.RecentFailed(10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, e.ID, failed[0].OriginalMessageID)
	assert.Equal(t, "conv-1", failed[0].CorrelationID)
	assert.Equal(t, `{"message":{"tipo":"imagem"}}`, failed[0].Payload)
	assert.Equal(t, 3, failed[0].FailureCount)

	// The queue entry is terminal and never claimed again.
	got, err := repo.DequeueNext()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStatsAndPurge(t *testing.T) {
	conn := newTestDB(t)
	repo := NewQueueRepository(conn)

	_, err := repo.Enqueue("conv-1", "texto", `{}`, 0, 3)
	require.NoError(t, err)
	done, err := repo.Enqueue("conv-2", "texto", `{}`, 0, 3)
	require.NoError(t, err)
	require.NoError(t, repo.MarkDone(done.ID))

	stats, err := repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Done)
	assert.GreaterOrEqual(t, stats.OldestPendingAge, 0.0)

	// Retention window 0 purges every finished row immediately.
	n, err := repo.Purge(-time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stats, err = repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 0, stats.Done)
}
