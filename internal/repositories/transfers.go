package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"atende-relay/internal/models"
)

type TransferRepository struct {
	db *sqlx.DB
}

func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Record writes one transfer event. Empty agent ids are stored as NULL; the
// chatbot's sector transfer has no agents on either side.
func (r *TransferRepository) Record(conversaID, deAgenteID, paraAgenteID, motivo string) (*models.Transferencia, error) {
	t := &models.Transferencia{
		ID:         uuid.NewString(),
		ConversaID: conversaID,
		Status:     "concluida",
		CreatedAt:  time.Now().UTC(),
	}
	if deAgenteID != "" {
		t.DeAgenteID = sql.NullString{String: deAgenteID, Valid: true}
	}
	if paraAgenteID != "" {
		t.ParaAgenteID = sql.NullString{String: paraAgenteID, Valid: true}
	}
	if motivo != "" {
		t.Motivo = sql.NullString{String: motivo, Valid: true}
	}

	query := r.db.Rebind(`INSERT INTO transferencias (id, conversa_id, de_agente_id, para_agente_id, motivo, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.Exec(query, t.ID, t.ConversaID, t.DeAgenteID, t.ParaAgenteID, t.Motivo, t.Status, t.CreatedAt); err != nil {
		return nil, fmt.Errorf("error recording transfer: %w", err)
	}
	return t, nil
}
