package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/patrickmn/go-cache"

	"atende-relay/internal/models"
)

// ConfigRepository reads per-tenant Evolution API connection settings. Rows
// are read-only from the relay's perspective and cached briefly; the admin UI
// owns mutation.
type ConfigRepository struct {
	db    *sqlx.DB
	cache *cache.Cache
}

func NewConfigRepository(db *sqlx.DB) *ConfigRepository {
	return &ConfigRepository{
		db:    db,
		cache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

// ByInstanceName returns the active config for an instance, or nil.
func (r *ConfigRepository) ByInstanceName(instanceName string) (*models.EvolutionConfig, error) {
	key := "instance:" + instanceName
	if v, found := r.cache.Get(key); found {
		cfg := v.(models.EvolutionConfig)
		return &cfg, nil
	}

	var cfg models.EvolutionConfig
	query := r.db.Rebind(`SELECT * FROM evolution_api_config WHERE instance_name = ? AND ativo = ? LIMIT 1`)
	err := r.db.Get(&cfg, query, instanceName, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading evolution config: %w", err)
	}

	r.cache.Set(key, cfg, cache.DefaultExpiration)
	return &cfg, nil
}

// ByEmpresaID returns the tenant's active config, or nil.
func (r *ConfigRepository) ByEmpresaID(empresaID string) (*models.EvolutionConfig, error) {
	key := "empresa:" + empresaID
	if v, found := r.cache.Get(key); found {
		cfg := v.(models.EvolutionConfig)
		return &cfg, nil
	}

	var cfg models.EvolutionConfig
	query := r.db.Rebind(`SELECT * FROM evolution_api_config WHERE empresa_id = ? AND ativo = ? LIMIT 1`)
	err := r.db.Get(&cfg, query, empresaID, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading evolution config: %w", err)
	}

	r.cache.Set(key, cfg, cache.DefaultExpiration)
	return &cfg, nil
}
