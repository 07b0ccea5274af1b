package handlers

import (
	"net/http"
	"strconv"

	"atende-relay/internal/repositories"
)

// QueueHandler exposes the read-only operational view of the outbound queue.
type QueueHandler struct {
	queue *repositories.QueueRepository
}

func NewQueueHandler(queue *repositories.QueueRepository) *QueueHandler {
	return &QueueHandler{queue: queue}
}

func (h *QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.Stats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    stats,
	})
}

func (h *QueueHandler) Failed(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	msgs, err := h.queue.RecentFailed(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    msgs,
	})
}
