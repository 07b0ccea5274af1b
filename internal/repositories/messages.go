package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"atende-relay/internal/models"
)

type MessageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append inserts one immutable message row. Metadata is stored as a JSON
// blob; a nil map writes NULL.
func (r *MessageRepository) Append(conversaID, conteudo, remetenteTipo, remetenteNome, tipoMensagem string, metadata map[string]interface{}) (*models.Mensagem, error) {
	var meta sql.NullString
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("error encoding message metadata: %w", err)
		}
		meta = sql.NullString{String: string(raw), Valid: true}
	}

	m := &models.Mensagem{
		ID:            uuid.NewString(),
		ConversaID:    conversaID,
		Conteudo:      conteudo,
		RemetenteTipo: remetenteTipo,
		TipoMensagem:  tipoMensagem,
		Metadata:      meta,
		CreatedAt:     time.Now().UTC(),
	}
	if remetenteNome != "" {
		m.RemetenteNome = sql.NullString{String: remetenteNome, Valid: true}
	}

	query := r.db.Rebind(`INSERT INTO mensagens (id, conversa_id, conteudo, remetente_tipo, remetente_nome, tipo_mensagem, metadata, lida, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.Exec(query, m.ID, m.ConversaID, m.Conteudo, m.RemetenteTipo, m.RemetenteNome, m.TipoMensagem, m.Metadata, m.Lida, m.CreatedAt); err != nil {
		return nil, fmt.Errorf("error appending message: %w", err)
	}
	return m, nil
}

// ByConversa returns the conversation's messages in arrival order.
func (r *MessageRepository) ByConversa(conversaID string) ([]models.Mensagem, error) {
	var msgs []models.Mensagem
	query := r.db.Rebind(`SELECT * FROM mensagens WHERE conversa_id = ? ORDER BY created_at ASC`)
	if err := r.db.Select(&msgs, query, conversaID); err != nil {
		return nil, fmt.Errorf("error loading messages: %w", err)
	}
	return msgs, nil
}
