package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"atende-relay/internal/models"
)

// FlowRepository reads the tenant-authored chatbot flow graph. The graph is
// read-only at runtime; the authoring UI owns mutation.
type FlowRepository struct {
	db *sqlx.DB
}

func NewFlowRepository(db *sqlx.DB) *FlowRepository {
	return &FlowRepository{db: db}
}

// ActiveFlows returns the tenant's active flows, highest priority first.
func (r *FlowRepository) ActiveFlows(empresaID string) ([]models.ChatbotFlow, error) {
	var flows []models.ChatbotFlow
	query := r.db.Rebind(`SELECT * FROM chatbot_flows
		WHERE empresa_id = ? AND status = 'ativo'
		ORDER BY priority DESC, created_at ASC`)
	if err := r.db.Select(&flows, query, empresaID); err != nil {
		return nil, fmt.Errorf("error loading flows: %w", err)
	}
	return flows, nil
}

// EntryNode returns the flow's first node by authoring order, or nil when the
// flow has no nodes.
func (r *FlowRepository) EntryNode(flowID string) (*models.ChatbotNode, error) {
	var n models.ChatbotNode
	query := r.db.Rebind(`SELECT * FROM chatbot_nodes WHERE flow_id = ? ORDER BY ordem ASC, created_at ASC LIMIT 1`)
	err := r.db.Get(&n, query, flowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading entry node: %w", err)
	}
	return &n, nil
}

// NodeByNodeID resolves a node by its flow-scoped logical id.
func (r *FlowRepository) NodeByNodeID(flowID, nodeID string) (*models.ChatbotNode, error) {
	var n models.ChatbotNode
	query := r.db.Rebind(`SELECT * FROM chatbot_nodes WHERE flow_id = ? AND node_id = ? LIMIT 1`)
	err := r.db.Get(&n, query, flowID, nodeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading node: %w", err)
	}
	return &n, nil
}

// OptionsByNode returns a node's options in authoring order.
func (r *FlowRepository) OptionsByNode(nodeRowID string) ([]models.ChatbotOption, error) {
	var opts []models.ChatbotOption
	query := r.db.Rebind(`SELECT * FROM chatbot_options WHERE node_id = ? ORDER BY ordem ASC, created_at ASC`)
	if err := r.db.Select(&opts, query, nodeRowID); err != nil {
		return nil, fmt.Errorf("error loading options: %w", err)
	}
	return opts, nil
}
