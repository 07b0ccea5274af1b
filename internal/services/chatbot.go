package services

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"atende-relay/internal/evolution"
	"atende-relay/internal/models"
	"atende-relay/internal/repositories"
)

const didNotUnderstandPrefix = "Desculpe, não entendi. "

// ChatbotEngine advances per-conversation flow sessions. Every failure inside
// the engine degrades to ending the session and handing the conversation to
// human agents; nothing here may fail the webhook.
type ChatbotEngine struct {
	flows         *repositories.FlowRepository
	sessions      *repositories.SessionRepository
	conversations *repositories.ConversationRepository
	transfers     *repositories.TransferRepository
	messages      *repositories.MessageRepository
	queue         *repositories.QueueRepository
	matcher       OptionMatcher
	maxRetries    int
}

func NewChatbotEngine(
	flows *repositories.FlowRepository,
	sessions *repositories.SessionRepository,
	conversations *repositories.ConversationRepository,
	transfers *repositories.TransferRepository,
	messages *repositories.MessageRepository,
	queue *repositories.QueueRepository,
	matcher OptionMatcher,
	maxRetries int,
) *ChatbotEngine {
	if matcher == nil {
		matcher = DefaultMatcher()
	}
	return &ChatbotEngine{
		flows:         flows,
		sessions:      sessions,
		conversations: conversations,
		transfers:     transfers,
		messages:      messages,
		queue:         queue,
		matcher:       matcher,
		maxRetries:    maxRetries,
	}
}

// StartFlow selects the tenant's flow for a new conversation and opens a
// session at its entry node. When no flow matches, the conversation simply
// waits for a human.
func (e *ChatbotEngine) StartFlow(conversa *models.Conversa, contato *models.Contato, ev *evolution.InboundEvent) {
	flow, err := e.selectFlow(conversa.EmpresaID, ev)
	if err != nil {
		log.Error().Err(err).Str("conversaId", conversa.ID).Msg("Flow selection failed")
		return
	}
	if flow == nil {
		log.Debug().Str("conversaId", conversa.ID).Msg("No chatbot flow for conversation")
		return
	}

	entry, err := e.flows.EntryNode(flow.ID)
	if err != nil || entry == nil {
		log.Warn().Err(err).Str("flowId", flow.ID).Msg("Flow has no entry node, skipping chatbot")
		return
	}

	session, err := e.sessions.Create(conversa.ID, flow.ID, entry.NodeID)
	if err != nil {
		log.Error().Err(err).Str("conversaId", conversa.ID).Msg("Failed to create chatbot session")
		return
	}

	log.Info().
		Str("conversaId", conversa.ID).
		Str("flowId", flow.ID).
		Str("nodeId", entry.NodeID).
		Msg("Chatbot session started")

	e.emitNodePrompt(conversa, contato, session, entry, "")

	if entry.TipoResposta == "final" {
		e.finalize(session, "entry node is terminal")
	}
}

// HandleInbound interprets an inbound event against the conversation's
// active session. Sessions in a terminal status are never advanced.
func (e *ChatbotEngine) HandleInbound(conversa *models.Conversa, contato *models.Contato, ev *evolution.InboundEvent) {
	session, err := e.sessions.ActiveByConversa(conversa.ID)
	if err != nil {
		log.Error().Err(err).Str("conversaId", conversa.ID).Msg("Session lookup failed")
		return
	}
	if session == nil {
		return
	}

	node, err := e.flows.NodeByNodeID(session.FlowID, session.CurrentNodeID)
	if err != nil || node == nil {
		e.finalize(session, "current node missing")
		return
	}

	opts, err := e.flows.OptionsByNode(node.ID)
	if err != nil {
		e.finalize(session, "option lookup failed")
		return
	}

	option := e.matcher.Match(ev, opts)
	if option == nil {
		// A fresh send, not a retry of an earlier queue entry.
		e.emitNodePrompt(conversa, contato, session, node, didNotUnderstandPrefix)
		return
	}

	e.recordAnswer(session, node.NodeID, option.OptionID)

	switch option.ProximaAcao {
	case models.AcaoNextNode:
		e.advance(conversa, contato, session, option)

	case models.AcaoTransferir:
		e.transfer(conversa, contato, session, option)

	case models.AcaoFinalizar:
		if option.MensagemFinal.Valid && option.MensagemFinal.String != "" {
			e.emitText(conversa, contato, option.MensagemFinal.String)
		}
		e.finalize(session, "flow finished")

	default:
		log.Warn().Str("acao", option.ProximaAcao).Str("sessionId", session.ID).Msg("Unknown option action")
		e.finalize(session, "unknown option action")
	}
}

func (e *ChatbotEngine) advance(conversa *models.Conversa, contato *models.Contato, session *models.ChatbotSession, option *models.ChatbotOption) {
	if !option.ProximoNodeID.Valid || option.ProximoNodeID.String == "" {
		e.finalize(session, "option has no target node")
		return
	}

	next, err := e.flows.NodeByNodeID(session.FlowID, option.ProximoNodeID.String)
	if err != nil || next == nil {
		e.finalize(session, "target node missing")
		return
	}

	if err := e.sessions.Advance(session.ID, next.NodeID); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("Failed to advance session")
		e.finalize(session, "advance failed")
		return
	}
	session.CurrentNodeID = next.NodeID

	e.emitNodePrompt(conversa, contato, session, next, "")

	if next.TipoResposta == "final" {
		e.finalize(session, "reached terminal node")
	}
}

func (e *ChatbotEngine) transfer(conversa *models.Conversa, contato *models.Contato, session *models.ChatbotSession, option *models.ChatbotOption) {
	setor := option.SetorTransferencia.String
	if setor == "" {
		e.finalize(session, "transfer option has no sector")
		return
	}

	if err := e.sessions.SetStatus(session.ID, models.SessaoTransferida); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("Failed to mark session transferred")
		return
	}
	if err := e.conversations.MoveToSetor(conversa.ID, setor); err != nil {
		log.Error().Err(err).Str("conversaId", conversa.ID).Msg("Failed to route conversation to sector")
		return
	}
	if _, err := e.transfers.Record(conversa.ID, "", "", "chatbot: "+option.Texto); err != nil {
		log.Error().Err(err).Str("conversaId", conversa.ID).Msg("Failed to record transfer")
	}

	log.Info().Str("conversaId", conversa.ID).Str("setor", setor).Msg("Conversation transferred by chatbot")

	if option.MensagemFinal.Valid && option.MensagemFinal.String != "" {
		e.emitText(conversa, contato, option.MensagemFinal.String)
	}
}

// selectFlow picks the flow whose trigger keywords match the inbound content,
// in priority order, falling back to the tenant's default flow.
func (e *ChatbotEngine) selectFlow(empresaID string, ev *evolution.InboundEvent) (*models.ChatbotFlow, error) {
	flows, err := e.flows.ActiveFlows(empresaID)
	if err != nil {
		return nil, err
	}

	content := strings.ToLower(ev.Conteudo)
	var fallback *models.ChatbotFlow
	for i := range flows {
		f := &flows[i]
		if f.IsDefault && fallback == nil {
			fallback = f
		}
		if !f.TriggerConditions.Valid || f.TriggerConditions.String == "" {
			continue
		}
		var keywords []string
		if err := json.Unmarshal([]byte(f.TriggerConditions.String), &keywords); err != nil {
			log.Warn().Err(err).Str("flowId", f.ID).Msg("Invalid trigger conditions, ignoring")
			continue
		}
		for _, kw := range keywords {
			if kw != "" && strings.Contains(content, strings.ToLower(kw)) {
				return f, nil
			}
		}
	}
	return fallback, nil
}

// finalize degrades the session to finalizado. Lookup failures land here so
// the conversation falls back to human handling instead of erroring the
// webhook.
func (e *ChatbotEngine) finalize(session *models.ChatbotSession, reason string) {
	if err := e.sessions.SetStatus(session.ID, models.SessaoFinalizada); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("Failed to finalize session")
		return
	}
	log.Info().Str("sessionId", session.ID).Str("reason", reason).Msg("Chatbot session finalized")
}

// recordAnswer appends the selection to the session's collected answers.
func (e *ChatbotEngine) recordAnswer(session *models.ChatbotSession, nodeID, optionID string) {
	answers := map[string]string{}
	if session.SessionData.Valid && session.SessionData.String != "" {
		if err := json.Unmarshal([]byte(session.SessionData.String), &answers); err != nil {
			answers = map[string]string{}
		}
	}
	answers[nodeID] = optionID
	raw, err := json.Marshal(answers)
	if err != nil {
		return
	}
	if err := e.sessions.SaveData(session.ID, string(raw)); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("Failed to save session data")
	}
}

// emitNodePrompt renders the node as an outbound message: interactive nodes
// become button/list sends built from their options, everything else is text.
func (e *ChatbotEngine) emitNodePrompt(conversa *models.Conversa, contato *models.Contato, session *models.ChatbotSession, node *models.ChatbotNode, prefix string) {
	msg := &evolution.OutboundMessage{
		Telefone: contato.Telefone,
		Mensagem: prefix + node.Mensagem,
		Tipo:     evolution.TipoTexto,
	}

	opts, err := e.flows.OptionsByNode(node.ID)
	if err != nil {
		log.Error().Err(err).Str("nodeId", node.NodeID).Msg("Option lookup for prompt failed, sending plain text")
		opts = nil
	}

	switch {
	case node.TipoResposta == "botoes" && len(opts) > 0:
		msg.Tipo = evolution.TipoBotoes
		botoes := make([]evolution.Botao, 0, len(opts))
		for _, o := range opts {
			botoes = append(botoes, evolution.Botao{ID: o.OptionID, Text: o.Texto})
		}
		msg.Opcoes = &evolution.OutboundOpcoes{Botoes: botoes}

	case node.TipoResposta == "lista" && len(opts) > 0:
		msg.Tipo = evolution.TipoLista
		rows := make([]evolution.ListRow, 0, len(opts))
		for _, o := range opts {
			rows = append(rows, evolution.ListRow{ID: o.OptionID, Title: o.Texto})
		}
		msg.Opcoes = &evolution.OutboundOpcoes{
			Lista: &evolution.ListaMensagem{
				Title:       node.Nome,
				Description: node.Mensagem,
				ButtonText:  "Escolher",
				Sections:    []evolution.ListSecao{{Title: node.Nome, Rows: rows}},
			},
		}
	}

	e.enqueue(conversa, msg)
}

func (e *ChatbotEngine) emitText(conversa *models.Conversa, contato *models.Contato, text string) {
	e.enqueue(conversa, &evolution.OutboundMessage{
		Telefone: contato.Telefone,
		Mensagem: text,
		Tipo:     evolution.TipoTexto,
	})
}

// enqueue records the bot reply on the conversation and hands it to the
// outbound queue keyed by the tenant.
func (e *ChatbotEngine) enqueue(conversa *models.Conversa, msg *evolution.OutboundMessage) {
	payload := DispatchPayload{EmpresaID: conversa.EmpresaID, Message: *msg}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("conversaId", conversa.ID).Msg("Failed to encode outbound payload")
		return
	}

	if _, err := e.queue.Enqueue(conversa.ID, msg.Tipo, string(raw), 0, e.maxRetries); err != nil {
		log.Error().Err(err).Str("conversaId", conversa.ID).Msg("Failed to enqueue bot message")
		return
	}

	if _, err := e.messages.Append(conversa.ID, msg.Mensagem, "bot", "Chatbot", msg.Tipo, nil); err != nil {
		log.Error().Err(err).Str("conversaId", conversa.ID).Msg("Failed to append bot message")
	}
}
