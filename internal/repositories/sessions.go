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

type SessionRepository struct {
	db *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// ActiveByConversa returns the conversation's active session, or nil. The
// conversa_id unique constraint keeps at most one session per conversation.
func (r *SessionRepository) ActiveByConversa(conversaID string) (*models.ChatbotSession, error) {
	var s models.ChatbotSession
	query := r.db.Rebind(`SELECT * FROM chatbot_sessions WHERE conversa_id = ? AND status = ? LIMIT 1`)
	err := r.db.Get(&s, query, conversaID, models.SessaoAtiva)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading session: %w", err)
	}
	return &s, nil
}

func (r *SessionRepository) Create(conversaID, flowID, nodeID string) (*models.ChatbotSession, error) {
	now := time.Now().UTC()
	s := &models.ChatbotSession{
		ID:            uuid.NewString(),
		ConversaID:    conversaID,
		FlowID:        flowID,
		CurrentNodeID: nodeID,
		Status:        models.SessaoAtiva,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	query := r.db.Rebind(`INSERT INTO chatbot_sessions (id, conversa_id, flow_id, current_node_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.Exec(query, s.ID, s.ConversaID, s.FlowID, s.CurrentNodeID, s.Status, s.CreatedAt, s.UpdatedAt); err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return s, nil
}

// Advance moves the session cursor to a new node.
func (r *SessionRepository) Advance(id, nodeID string) error {
	query := r.db.Rebind(`UPDATE chatbot_sessions SET current_node_id = ?, updated_at = ? WHERE id = ?`)
	_, err := r.db.Exec(query, nodeID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("error advancing session: %w", err)
	}
	return nil
}

// SetStatus terminates or transfers the session. Terminal statuses are never
// reverted by the relay.
func (r *SessionRepository) SetStatus(id, status string) error {
	query := r.db.Rebind(`UPDATE chatbot_sessions SET status = ?, updated_at = ? WHERE id = ?`)
	_, err := r.db.Exec(query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("error updating session status: %w", err)
	}
	return nil
}

// SaveData replaces the session's collected answers blob.
func (r *SessionRepository) SaveData(id, data string) error {
	query := r.db.Rebind(`UPDATE chatbot_sessions SET session_data = ?, updated_at = ? WHERE id = ?`)
	_, err := r.db.Exec(query, data, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("error saving session data: %w", err)
	}
	return nil
}
