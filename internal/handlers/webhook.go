package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"atende-relay/internal/events"
	"atende-relay/internal/evolution"
	"atende-relay/internal/repositories"
	"atende-relay/internal/services"
)

// WebhookHandler ingests Evolution API webhook deliveries: normalize, resolve
// contact/conversation, append the message, and feed the chatbot engine.
type WebhookHandler struct {
	resolver  *services.Resolver
	engine    *services.ChatbotEngine
	messages  *repositories.MessageRepository
	publisher *events.Publisher
}

func NewWebhookHandler(
	resolver *services.Resolver,
	engine *services.ChatbotEngine,
	messages *repositories.MessageRepository,
	publisher *events.Publisher,
) *WebhookHandler {
	return &WebhookHandler{
		resolver:  resolver,
		engine:    engine,
		messages:  messages,
		publisher: publisher,
	}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var payload evolution.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		// Malformed bodies are acknowledged so the provider does not
		// redeliver something we will never be able to parse.
		log.Warn().Err(err).Msg("Webhook body is not valid JSON, ignoring")
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Evento ignorado",
		})
		return
	}

	ev, skipReason := evolution.Normalize(&payload)
	if ev == nil {
		log.Debug().
			Str("event", payload.Event).
			Str("instance", payload.Instance).
			Str("reason", skipReason).
			Msg("Webhook event ignored")
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Evento ignorado",
		})
		return
	}

	log.Info().
		Str("instance", ev.Instance).
		Str("telefone", ev.Telefone).
		Str("tipo", ev.TipoMensagem).
		Msg("Processing inbound message")

	contato, conversa, novaConversa, err := h.resolver.Resolve(ev)
	if err != nil {
		// Tenant resolution and datastore failures answer 500 so the
		// provider's webhook retry can redeliver the event.
		log.Error().Err(err).Str("instance", ev.Instance).Msg("Failed to resolve inbound event")
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	metadata := map[string]interface{}{
		"messageId": ev.MessageID,
		"remoteJid": ev.RemoteJid,
		"instance":  ev.Instance,
		"timestamp": ev.Timestamp,
	}
	if ev.MediaURL != "" {
		metadata["mediaUrl"] = ev.MediaURL
		metadata["mimeType"] = ev.MimeType
	}
	if ev.FileName != "" {
		metadata["fileName"] = ev.FileName
	}
	if ev.SelectedID != "" {
		metadata["selectedId"] = ev.SelectedID
	}

	mensagem, err := h.messages.Append(conversa.ID, ev.Conteudo, "cliente", ev.NomeContato, ev.TipoMensagem, metadata)
	if err != nil {
		log.Error().Err(err).Str("conversaId", conversa.ID).Msg("Failed to append inbound message")
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	// Chatbot defects must not block ingestion; the engine degrades
	// internally and never returns an error here.
	if novaConversa {
		h.engine.StartFlow(conversa, contato, ev)
	} else {
		h.engine.HandleInbound(conversa, contato, ev)
	}

	h.publisher.PublishInbound(conversa.EmpresaID, conversa.ID, mensagem.ID, ev)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Mensagem processada com sucesso",
		"conversaId": conversa.ID,
		"mensagemId": mensagem.ID,
	})
}
