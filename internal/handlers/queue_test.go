package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atende-relay/internal/db"
	"atende-relay/internal/repositories"
)

func newQueueEnv(t *testing.T) (*repositories.QueueRepository, *QueueHandler) {
	t.Helper()
	conn, err := db.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() { conn.Close() })

	queue := repositories.NewQueueRepository(conn)
	return queue, NewQueueHandler(queue)
}

func TestQueueStatusEndpoint(t *testing.T) {
	queue, handler := newQueueEnv(t)

	_, err := queue.Enqueue("conv-1", "texto", `{}`, 0, 3)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.Status(rec, httptest.NewRequest(http.MethodGet, "/queue/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Pending int `json:"pending"`
			Done    int `json:"done"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Data.Pending)
}

func TestQueueFailedEndpoint(t *testing.T) {
	queue, handler := newQueueEnv(t)

	for i := 0; i < 3; i++ {
		e, err := queue.Enqueue("conv-1", "texto", `{}`, 0, 1)
		require.NoError(t, err)
		require.NoError(t, queue.MoveToDeadLetter(e, "provider down"))
		time.Sleep(2 * time.Millisecond)
	}

	rec := httptest.NewRecorder()
	handler.Failed(rec, httptest.NewRequest(http.MethodGet, "/queue/failed?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    []struct {
			ErrorMessage string `json:"error_message"`
			FailureCount int    `json:"failure_count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "provider down", resp.Data[0].ErrorMessage)
	assert.Equal(t, 1, resp.Data[0].FailureCount)
}
