package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"atende-relay/internal/repositories"
)

// ConversationHandler covers the agent-side ownership operations: assume,
// release, and transfer. Claims are conditional updates so two agents can
// never own the same conversation.
type ConversationHandler struct {
	conversations *repositories.ConversationRepository
	transfers     *repositories.TransferRepository
}

func NewConversationHandler(
	conversations *repositories.ConversationRepository,
	transfers *repositories.TransferRepository,
) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, transfers: transfers}
}

type agentRequest struct {
	AgenteID string `json:"agenteId"`
}

type transferRequest struct {
	DeAgenteID   string `json:"deAgenteId,omitempty"`
	ParaAgenteID string `json:"paraAgenteId,omitempty"`
	Setor        string `json:"setor,omitempty"`
	Motivo       string `json:"motivo,omitempty"`
}

func (h *ConversationHandler) Assume(w http.ResponseWriter, r *http.Request) {
	conversaID := mux.Vars(r)["id"]

	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgenteID == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("agenteId é obrigatório"))
		return
	}

	err := h.conversations.Assume(conversaID, req.AgenteID)
	if errors.Is(err, repositories.ErrConversationClaimed) {
		respondError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	log.Info().Str("conversaId", conversaID).Str("agenteId", req.AgenteID).Msg("Conversation assumed")
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *ConversationHandler) Release(w http.ResponseWriter, r *http.Request) {
	conversaID := mux.Vars(r)["id"]

	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgenteID == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("agenteId é obrigatório"))
		return
	}

	err := h.conversations.Release(conversaID, req.AgenteID)
	if errors.Is(err, repositories.ErrConversationClaimed) {
		respondError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	log.Info().Str("conversaId", conversaID).Str("agenteId", req.AgenteID).Msg("Conversation released")
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Transfer moves a conversation to a sector or another agent and records the
// transfer event.
func (h *ConversationHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	conversaID := mux.Vars(r)["id"]

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		return
	}
	if req.Setor == "" && req.ParaAgenteID == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("setor ou paraAgenteId é obrigatório"))
		return
	}

	if req.Setor != "" {
		if err := h.conversations.MoveToSetor(conversaID, req.Setor); err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
	} else {
		// Direct agent-to-agent transfer: release then claim for the target.
		if req.DeAgenteID != "" {
			if err := h.conversations.Release(conversaID, req.DeAgenteID); err != nil && !errors.Is(err, repositories.ErrConversationClaimed) {
				respondError(w, http.StatusInternalServerError, err)
				return
			}
		}
		err := h.conversations.Assume(conversaID, req.ParaAgenteID)
		if errors.Is(err, repositories.ErrConversationClaimed) {
			respondError(w, http.StatusConflict, err)
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
	}

	t, err := h.transfers.Record(conversaID, req.DeAgenteID, req.ParaAgenteID, req.Motivo)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	log.Info().Str("conversaId", conversaID).Str("transferId", t.ID).Msg("Conversation transferred")
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "transferId": t.ID})
}
