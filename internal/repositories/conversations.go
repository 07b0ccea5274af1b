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

// ErrConversationClaimed is returned when a conditional agent update loses
// the race to another agent.
var ErrConversationClaimed = errors.New("conversation already claimed by another agent")

type ConversationRepository struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// FindOpen returns the most recently updated open conversation for the
// contact on the given channel, or nil when none is open.
func (r *ConversationRepository) FindOpen(contatoID, canal string) (*models.Conversa, error) {
	var c models.Conversa
	query := r.db.Rebind(`SELECT * FROM conversas
		WHERE contato_id = ? AND canal = ? AND status IN (?, ?)
		ORDER BY updated_at DESC LIMIT 1`)
	err := r.db.Get(&c, query, contatoID, canal, models.ConversaAtiva, models.ConversaEmAtendimento)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding open conversation: %w", err)
	}
	return &c, nil
}

// CountOpen reports how many conversations are open for the contact on the
// channel. Used by the strict single-open-conversation mode.
func (r *ConversationRepository) CountOpen(contatoID, canal string) (int, error) {
	var n int
	query := r.db.Rebind(`SELECT COUNT(*) FROM conversas
		WHERE contato_id = ? AND canal = ? AND status IN (?, ?)`)
	err := r.db.Get(&n, query, contatoID, canal, models.ConversaAtiva, models.ConversaEmAtendimento)
	if err != nil {
		return 0, fmt.Errorf("error counting open conversations: %w", err)
	}
	return n, nil
}

func (r *ConversationRepository) Create(empresaID, contatoID, canal string) (*models.Conversa, error) {
	now := time.Now().UTC()
	c := &models.Conversa{
		ID:         uuid.NewString(),
		EmpresaID:  empresaID,
		ContatoID:  contatoID,
		Status:     models.ConversaAtiva,
		Canal:      canal,
		Prioridade: "normal",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	query := r.db.Rebind(`INSERT INTO conversas (id, empresa_id, contato_id, status, canal, prioridade, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.Exec(query, c.ID, c.EmpresaID, c.ContatoID, c.Status, c.Canal, c.Prioridade, c.CreatedAt, c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("error creating conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepository) ByID(id string) (*models.Conversa, error) {
	var c models.Conversa
	query := r.db.Rebind(`SELECT * FROM conversas WHERE id = ?`)
	err := r.db.Get(&c, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading conversation: %w", err)
	}
	return &c, nil
}

// Touch bumps updated_at so recency-based open-conversation selection keeps
// working.
func (r *ConversationRepository) Touch(id string) error {
	query := r.db.Rebind(`UPDATE conversas SET updated_at = ? WHERE id = ?`)
	_, err := r.db.Exec(query, time.Now().UTC(), id)
	return err
}

// Assume claims the conversation for an agent. The update only succeeds while
// agente_id is still null, so two agents can never claim the same
// conversation.
func (r *ConversationRepository) Assume(id, agenteID string) error {
	query := r.db.Rebind(`UPDATE conversas
		SET agente_id = ?, status = ?, updated_at = ?
		WHERE id = ? AND agente_id IS NULL`)
	res, err := r.db.Exec(query, agenteID, models.ConversaEmAtendimento, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("error claiming conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConversationClaimed
	}
	return nil
}

// Release drops the agent assignment. Guarded by the current agent id so a
// stale release cannot undo another agent's claim.
func (r *ConversationRepository) Release(id, agenteID string) error {
	query := r.db.Rebind(`UPDATE conversas
		SET agente_id = NULL, status = ?, updated_at = ?
		WHERE id = ? AND agente_id = ?`)
	res, err := r.db.Exec(query, models.ConversaAtiva, time.Now().UTC(), id, agenteID)
	if err != nil {
		return fmt.Errorf("error releasing conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConversationClaimed
	}
	return nil
}

// MoveToSetor routes the conversation to a sector and makes it claimable
// again. Used by the chatbot transfer action and by agent-initiated
// transfers.
func (r *ConversationRepository) MoveToSetor(id, setor string) error {
	query := r.db.Rebind(`UPDATE conversas
		SET setor = ?, agente_id = NULL, status = ?, updated_at = ?
		WHERE id = ?`)
	_, err := r.db.Exec(query, setor, models.ConversaAtiva, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("error moving conversation to sector: %w", err)
	}
	return nil
}
