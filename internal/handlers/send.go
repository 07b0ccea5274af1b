package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"atende-relay/internal/evolution"
	"atende-relay/internal/models"
	"atende-relay/internal/repositories"
	"atende-relay/internal/services"
)

// SendRequest is the relay's own outbound send contract, used by the agent
// UI. One of EmpresaID/InstanceName selects the tenant connection.
type SendRequest struct {
	Telefone     string                    `json:"telefone"`
	Mensagem     string                    `json:"mensagem"`
	Tipo         string                    `json:"tipo,omitempty"`
	Opcoes       *evolution.OutboundOpcoes `json:"opcoes,omitempty"`
	EmpresaID    string                    `json:"empresaId,omitempty"`
	InstanceName string                    `json:"instanceName,omitempty"`
}

// SendHandler performs a synchronous provider dispatch for agent-initiated
// sends. Chatbot traffic goes through the outbound queue instead; this
// endpoint mirrors the provider result back to the caller so the UI can show
// failures immediately.
type SendHandler struct {
	configs *repositories.ConfigRepository
	sender  services.Sender
}

func NewSendHandler(configs *repositories.ConfigRepository, sender services.Sender) *SendHandler {
	return &SendHandler{configs: configs, sender: sender}
}

func (h *SendHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		return
	}

	if req.Telefone == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("telefone é obrigatório"))
		return
	}
	if req.EmpresaID == "" && req.InstanceName == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("instanceName ou empresaId é obrigatório"))
		return
	}

	var cfg *models.EvolutionConfig
	var err error
	if req.InstanceName != "" {
		cfg, err = h.configs.ByInstanceName(req.InstanceName)
	} else {
		cfg, err = h.configs.ByEmpresaID(req.EmpresaID)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if cfg == nil {
		respondError(w, http.StatusInternalServerError, fmt.Errorf("configuração Evolution API não encontrada"))
		return
	}

	msg := &evolution.OutboundMessage{
		Telefone: req.Telefone,
		Mensagem: req.Mensagem,
		Tipo:     req.Tipo,
		Opcoes:   req.Opcoes,
	}
	inst := evolution.Instance{
		ServerURL:    cfg.ServerURL,
		InstanceName: cfg.InstanceName,
		APIKey:       cfg.APIKey,
	}

	providerResp, err := h.sender.Send(r.Context(), inst, msg)
	if err != nil {
		log.Error().Err(err).Str("instance", cfg.InstanceName).Str("tipo", req.Tipo).Msg("Outbound send failed")
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success":           false,
			"error":             err.Error(),
			"evolutionResponse": providerResp,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"message":           "Mensagem enviada com sucesso via Evolution API",
		"data":              providerResp,
		"evolutionResponse": providerResp,
	})
}
