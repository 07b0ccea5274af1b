package models

import (
	"database/sql"
	"time"
)

// Conversation statuses. "ativo" and "em-atendimento" count as open.
const (
	ConversaAtiva         = "ativo"
	ConversaAguardando    = "aguardando"
	ConversaEmAtendimento = "em-atendimento"
	ConversaFechada       = "fechado"
)

// Chatbot session statuses.
const (
	SessaoAtiva       = "ativo"
	SessaoFinalizada  = "finalizado"
	SessaoTransferida = "transferido"
)

// Option actions.
const (
	AcaoNextNode   = "next_node"
	AcaoTransferir = "transferir"
	AcaoFinalizar  = "finalizar"
)

// Queue entry statuses.
const (
	QueuePending    = "pending"
	QueueProcessing = "processing"
	QueueDone       = "done"
	QueueFailed     = "failed"
)

type Contato struct {
	ID        string         `db:"id"`
	EmpresaID string         `db:"empresa_id"`
	Nome      string         `db:"nome"`
	Telefone  string         `db:"telefone"`
	Email     sql.NullString `db:"email"`
	Tags      sql.NullString `db:"tags"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

type Conversa struct {
	ID         string         `db:"id"`
	EmpresaID  string         `db:"empresa_id"`
	ContatoID  string         `db:"contato_id"`
	AgenteID   sql.NullString `db:"agente_id"`
	Status     string         `db:"status"`
	Canal      string         `db:"canal"`
	Prioridade string         `db:"prioridade"`
	Setor      sql.NullString `db:"setor"`
	Tags       sql.NullString `db:"tags"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

type Mensagem struct {
	ID            string         `db:"id"`
	ConversaID    string         `db:"conversa_id"`
	Conteudo      string         `db:"conteudo"`
	RemetenteTipo string         `db:"remetente_tipo"` // cliente, agente, bot
	RemetenteNome sql.NullString `db:"remetente_nome"`
	TipoMensagem  string         `db:"tipo_mensagem"`
	Metadata      sql.NullString `db:"metadata"` // JSON blob
	Lida          bool           `db:"lida"`
	CreatedAt     time.Time      `db:"created_at"`
}

type ChatbotFlow struct {
	ID                string         `db:"id"`
	EmpresaID         string         `db:"empresa_id"`
	Nome              string         `db:"nome"`
	Status            string         `db:"status"`
	IsDefault         bool           `db:"is_default"`
	Priority          int            `db:"priority"`
	MensagemInicial   string         `db:"mensagem_inicial"`
	TriggerConditions sql.NullString `db:"trigger_conditions"` // JSON keyword list
	CreatedAt         time.Time      `db:"created_at"`
}

type ChatbotNode struct {
	ID           string    `db:"id"`
	FlowID       string    `db:"flow_id"`
	NodeID       string    `db:"node_id"`
	Nome         string    `db:"nome"`
	Mensagem     string    `db:"mensagem"`
	TipoResposta string    `db:"tipo_resposta"` // texto, botoes, lista, final
	Ordem        int       `db:"ordem"`
	CreatedAt    time.Time `db:"created_at"`
}

type ChatbotOption struct {
	ID                 string         `db:"id"`
	NodeID             string         `db:"node_id"`
	OptionID           string         `db:"option_id"`
	Texto              string         `db:"texto"`
	ProximaAcao        string         `db:"proxima_acao"`
	ProximoNodeID      sql.NullString `db:"proximo_node_id"`
	SetorTransferencia sql.NullString `db:"setor_transferencia"`
	MensagemFinal      sql.NullString `db:"mensagem_final"`
	Ordem              int            `db:"ordem"`
	CreatedAt          time.Time      `db:"created_at"`
}

type ChatbotSession struct {
	ID            string         `db:"id"`
	ConversaID    string         `db:"conversa_id"`
	FlowID        string         `db:"flow_id"`
	CurrentNodeID string         `db:"current_node_id"`
	SessionData   sql.NullString `db:"session_data"`
	Status        string         `db:"status"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

type QueueEntry struct {
	ID            string         `db:"id"`
	CorrelationID string         `db:"correlation_id"`
	MessageType   string         `db:"message_type"`
	Payload       string         `db:"payload"`
	Priority      int            `db:"priority"`
	Status        string         `db:"status"`
	RetryCount    int            `db:"retry_count"`
	MaxRetries    int            `db:"max_retries"`
	ErrorMessage  sql.NullString `db:"error_message"`
	ScheduledAt   time.Time      `db:"scheduled_at"`
	ProcessedAt   sql.NullTime   `db:"processed_at"`
	CreatedAt     time.Time      `db:"created_at"`
}

type FailedMessage struct {
	ID                string    `db:"id" json:"id"`
	OriginalMessageID string    `db:"original_message_id" json:"original_message_id"`
	CorrelationID     string    `db:"correlation_id" json:"correlation_id"`
	MessageType       string    `db:"message_type" json:"message_type"`
	Payload           string    `db:"payload" json:"payload"`
	ErrorMessage      string    `db:"error_message" json:"error_message"`
	FailureCount      int       `db:"failure_count" json:"failure_count"`
	FirstFailedAt     time.Time `db:"first_failed_at" json:"first_failed_at"`
	LastFailedAt      time.Time `db:"last_failed_at" json:"last_failed_at"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

type EvolutionConfig struct {
	ID           string         `db:"id"`
	EmpresaID    string         `db:"empresa_id"`
	InstanceName string         `db:"instance_name"`
	APIKey       string         `db:"api_key"`
	ServerURL    string         `db:"server_url"`
	WebhookURL   sql.NullString `db:"webhook_url"`
	Ativo        bool           `db:"ativo"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

type Transferencia struct {
	ID           string         `db:"id"`
	ConversaID   string         `db:"conversa_id"`
	DeAgenteID   sql.NullString `db:"de_agente_id"`
	ParaAgenteID sql.NullString `db:"para_agente_id"`
	Motivo       sql.NullString `db:"motivo"`
	Status       string         `db:"status"`
	CreatedAt    time.Time      `db:"created_at"`
}

type Setor struct {
	ID        string         `db:"id"`
	EmpresaID sql.NullString `db:"empresa_id"`
	Nome      string         `db:"nome"`
	Descricao sql.NullString `db:"descricao"`
	Ativo     bool           `db:"ativo"`
	CreatedAt time.Time      `db:"created_at"`
}
