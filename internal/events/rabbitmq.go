package events

import (
	"encoding/json"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"atende-relay/internal/evolution"
)

// Publisher mirrors accepted inbound events to a broker queue so automation
// consumers (n8n and friends) can react without polling the database.
// Publishing is best-effort and disabled when no broker URL is configured.
type Publisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
	enabled bool
}

// NewPublisher connects to RabbitMQ. An empty URL returns a disabled
// publisher; a connection failure logs and disables rather than aborting
// startup, since event mirroring is not on the ingestion path.
func NewPublisher(url, queue string) *Publisher {
	if url == "" {
		log.Info().Msg("RABBITMQ_URL is not set, event publishing disabled")
		return &Publisher{}
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		log.Error().Err(err).Msg("Could not connect to RabbitMQ, event publishing disabled")
		return &Publisher{}
	}
	channel, err := conn.Channel()
	if err != nil {
		log.Error().Err(err).Msg("Could not open RabbitMQ channel, event publishing disabled")
		return &Publisher{}
	}

	log.Info().Str("queue", queue).Msg("RabbitMQ connection established")
	return &Publisher{conn: conn, channel: channel, queue: queue, enabled: true}
}

// InboundEventMessage is the broker payload for one accepted inbound message.
type InboundEventMessage struct {
	EmpresaID    string `json:"empresaId"`
	Instance     string `json:"instance"`
	ConversaID   string `json:"conversaId"`
	MensagemID   string `json:"mensagemId"`
	Telefone     string `json:"telefone"`
	TipoMensagem string `json:"tipoMensagem"`
	Conteudo     string `json:"conteudo"`
	Timestamp    int64  `json:"timestamp"`
}

// PublishInbound mirrors an accepted event. Failures are logged, never
// propagated; the webhook response does not depend on the broker.
func (p *Publisher) PublishInbound(empresaID, conversaID, mensagemID string, ev *evolution.InboundEvent) {
	if !p.enabled {
		return
	}

	body, err := json.Marshal(InboundEventMessage{
		EmpresaID:    empresaID,
		Instance:     ev.Instance,
		ConversaID:   conversaID,
		MensagemID:   mensagemID,
		Telefone:     ev.Telefone,
		TipoMensagem: ev.TipoMensagem,
		Conteudo:     ev.Conteudo,
		Timestamp:    ev.Timestamp,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode broker event")
		return
	}

	// Declare is idempotent.
	if _, err := p.channel.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		log.Error().Err(err).Str("queue", p.queue).Msg("Could not declare RabbitMQ queue")
		return
	}
	err = p.channel.Publish("", p.queue, false, false, amqp091.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		log.Error().Err(err).Str("queue", p.queue).Msg("Could not publish inbound event")
		return
	}
	log.Debug().Str("queue", p.queue).Str("conversaId", conversaID).Msg("Inbound event published to RabbitMQ")
}

// Close releases the broker connection.
func (p *Publisher) Close() {
	if !p.enabled {
		return
	}
	_ = p.channel.Close()
	_ = p.conn.Close()
}
