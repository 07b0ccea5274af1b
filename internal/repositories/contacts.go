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

type ContactRepository struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// FindByTelefone returns the tenant's contact with an exact phone match, or
// nil when none exists.
func (r *ContactRepository) FindByTelefone(empresaID, telefone string) (*models.Contato, error) {
	var c models.Contato
	query := r.db.Rebind(`SELECT * FROM contatos WHERE empresa_id = ? AND telefone = ? LIMIT 1`)
	err := r.db.Get(&c, query, empresaID, telefone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding contact: %w", err)
	}
	return &c, nil
}

func (r *ContactRepository) Create(empresaID, nome, telefone string) (*models.Contato, error) {
	now := time.Now().UTC()
	c := &models.Contato{
		ID:        uuid.NewString(),
		EmpresaID: empresaID,
		Nome:      nome,
		Telefone:  telefone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	query := r.db.Rebind(`INSERT INTO contatos (id, empresa_id, nome, telefone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.Exec(query, c.ID, c.EmpresaID, c.Nome, c.Telefone, c.CreatedAt, c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("error creating contact: %w", err)
	}
	return c, nil
}
