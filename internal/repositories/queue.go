package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"atende-relay/internal/models"
)

type QueueRepository struct {
	db *sqlx.DB
}

func NewQueueRepository(db *sqlx.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Enqueue stores a pending outbound unit of work. Payload is the JSON-encoded
// canonical outbound message plus routing fields.
func (r *QueueRepository) Enqueue(correlationID, messageType, payload string, priority, maxRetries int) (*models.QueueEntry, error) {
	now := time.Now().UTC()
	e := &models.QueueEntry{
		ID:            uuid.NewString(),
		CorrelationID: correlationID,
		MessageType:   messageType,
		Payload:       payload,
		Priority:      priority,
		Status:        models.QueuePending,
		MaxRetries:    maxRetries,
		ScheduledAt:   now,
		CreatedAt:     now,
	}
	query := r.db.Rebind(`INSERT INTO message_queue (id, correlation_id, message_type, payload, priority, status, retry_count, max_retries, scheduled_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.Exec(query, e.ID, e.CorrelationID, e.MessageType, e.Payload, e.Priority, e.Status, e.RetryCount, e.MaxRetries, e.ScheduledAt, e.CreatedAt); err != nil {
		return nil, fmt.Errorf("error enqueueing message: %w", err)
	}
	return e, nil
}

// DequeueNext claims the oldest eligible pending entry, highest priority
// first. The claim is a conditional update on status = 'pending', so two
// concurrent consumers can never mark the same entry processing. Returns nil
// when nothing is eligible.
func (r *QueueRepository) DequeueNext() (*models.QueueEntry, error) {
	for {
		var e models.QueueEntry
		query := r.db.Rebind(`SELECT * FROM message_queue
			WHERE status = ? AND scheduled_at <= ?
			ORDER BY priority DESC, scheduled_at ASC LIMIT 1`)
		err := r.db.Get(&e, query, models.QueuePending, time.Now().UTC())
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("error selecting queue entry: %w", err)
		}

		claim := r.db.Rebind(`UPDATE message_queue SET status = ? WHERE id = ? AND status = ?`)
		res, err := r.db.Exec(claim, models.QueueProcessing, e.ID, models.QueuePending)
		if err != nil {
			return nil, fmt.Errorf("error claiming queue entry: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// Lost the claim race, pick the next candidate.
			continue
		}
		e.Status = models.QueueProcessing
		return &e, nil
	}
}

// MarkDone finishes a successfully dispatched entry.
func (r *QueueRepository) MarkDone(id string) error {
	query := r.db.Rebind(`UPDATE message_queue SET status = ?, processed_at = ? WHERE id = ?`)
	_, err := r.db.Exec(query, models.QueueDone, time.Now().UTC(), id)
	return err
}

// Requeue returns a failed entry to pending with an incremented retry count
// and a backoff-delayed schedule.
func (r *QueueRepository) Requeue(e *models.QueueEntry, errMsg string, delay time.Duration) error {
	query := r.db.Rebind(`UPDATE message_queue
		SET status = ?, retry_count = ?, error_message = ?, scheduled_at = ?
		WHERE id = ?`)
	_, err := r.db.Exec(query, models.QueuePending, e.RetryCount+1, errMsg, time.Now().UTC().Add(delay), e.ID)
	if err != nil {
		return fmt.Errorf("error requeueing entry: %w", err)
	}
	return nil
}

// MoveToDeadLetter marks the entry failed and copies it into
// failed_messages, preserving the payload and cumulative failure count.
func (r *QueueRepository) MoveToDeadLetter(e *models.QueueEntry, errMsg string) error {
	now := time.Now().UTC()
	failureCount := e.RetryCount + 1

	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("error starting dead-letter transaction: %w", err)
	}
	defer tx.Rollback()

	mark := tx.Rebind(`UPDATE message_queue SET status = ?, retry_count = ?, error_message = ?, processed_at = ? WHERE id = ?`)
	if _, err := tx.Exec(mark, models.QueueFailed, failureCount, errMsg, now, e.ID); err != nil {
		return fmt.Errorf("error marking entry failed: %w", err)
	}

	insert := tx.Rebind(`INSERT INTO failed_messages (id, original_message_id, correlation_id, message_type, payload, error_message, failure_count, first_failed_at, last_failed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	firstFailed := e.CreatedAt
	if e.RetryCount == 0 {
		firstFailed = now
	}
	if _, err := tx.Exec(insert, uuid.NewString(), e.ID, e.CorrelationID, e.MessageType, e.Payload, errMsg, failureCount, firstFailed, now, now); err != nil {
		return fmt.Errorf("error inserting dead letter: %w", err)
	}

	return tx.Commit()
}

// QueueStats is the read-only operational view of the queue.
type QueueStats struct {
	Pending          int     `json:"pending"`
	Processing       int     `json:"processing"`
	Done             int     `json:"done"`
	Failed           int     `json:"failed"`
	DeadLetters      int     `json:"dead_letters"`
	OldestPendingAge float64 `json:"oldest_pending_age_seconds"`
}

func (r *QueueRepository) Stats() (*QueueStats, error) {
	stats := &QueueStats{}
	rows := []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}{}
	if err := r.db.Select(&rows, `SELECT status, COUNT(*) AS n FROM message_queue GROUP BY status`); err != nil {
		return nil, fmt.Errorf("error aggregating queue stats: %w", err)
	}
	for _, row := range rows {
		switch row.Status {
		case models.QueuePending:
			stats.Pending = row.N
		case models.QueueProcessing:
			stats.Processing = row.N
		case models.QueueDone:
			stats.Done = row.N
		case models.QueueFailed:
			stats.Failed = row.N
		}
	}

	if err := r.db.Get(&stats.DeadLetters, `SELECT COUNT(*) FROM failed_messages`); err != nil {
		return nil, fmt.Errorf("error counting dead letters: %w", err)
	}

	var oldest time.Time
	query := r.db.Rebind(`SELECT scheduled_at FROM message_queue WHERE status = ? ORDER BY scheduled_at ASC LIMIT 1`)
	err := r.db.Get(&oldest, query, models.QueuePending)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("error finding oldest pending entry: %w", err)
	}
	if err == nil {
		stats.OldestPendingAge = time.Since(oldest).Seconds()
	}
	return stats, nil
}

// RecentFailed lists the newest dead-letter entries.
func (r *QueueRepository) RecentFailed(limit int) ([]models.FailedMessage, error) {
	var msgs []models.FailedMessage
	query := r.db.Rebind(`SELECT * FROM failed_messages ORDER BY last_failed_at DESC LIMIT ?`)
	if err := r.db.Select(&msgs, query, limit); err != nil {
		return nil, fmt.Errorf("error loading failed messages: %w", err)
	}
	return msgs, nil
}

// Purge removes done/failed queue rows older than the retention window and
// returns how many were deleted.
func (r *QueueRepository) Purge(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	query := r.db.Rebind(`DELETE FROM message_queue WHERE status IN (?, ?) AND created_at < ?`)
	res, err := r.db.Exec(query, models.QueueDone, models.QueueFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error purging queue: %w", err)
	}
	return res.RowsAffected()
}
