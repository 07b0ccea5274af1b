package db

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Connect opens the relay database. A postgres:// DSN selects lib/pq,
// anything else is treated as a sqlite file path (or ":memory:").
func Connect(dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}

	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	}

	conn, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if driver == "sqlite" {
		// Serialized access keeps the conditional-update claim semantics
		// simple under the file-based driver.
		conn.SetMaxOpenConns(1)
	}

	log.Info().Str("driver", driver).Msg("Database connection established")
	return conn, nil
}

// Migrate creates the relay tables when they do not exist yet.
func Migrate(conn *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	log.Info().Int("tables", len(schema)).Msg("Database migration completed")
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS empresas (
		id TEXT PRIMARY KEY,
		nome TEXT NOT NULL,
		ativo BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS evolution_api_config (
		id TEXT PRIMARY KEY,
		empresa_id TEXT NOT NULL,
		instance_name TEXT NOT NULL,
		api_key TEXT NOT NULL,
		server_url TEXT NOT NULL,
		webhook_url TEXT,
		ativo BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS contatos (
		id TEXT PRIMARY KEY,
		empresa_id TEXT NOT NULL,
		nome TEXT NOT NULL,
		telefone TEXT NOT NULL,
		email TEXT,
		tags TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contatos_telefone ON contatos (empresa_id, telefone)`,
	`CREATE TABLE IF NOT EXISTS conversas (
		id TEXT PRIMARY KEY,
		empresa_id TEXT NOT NULL,
		contato_id TEXT NOT NULL,
		agente_id TEXT,
		status TEXT NOT NULL,
		canal TEXT NOT NULL,
		prioridade TEXT NOT NULL,
		setor TEXT,
		tags TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversas_contato ON conversas (contato_id, status)`,
	`CREATE TABLE IF NOT EXISTS mensagens (
		id TEXT PRIMARY KEY,
		conversa_id TEXT NOT NULL,
		conteudo TEXT NOT NULL,
		remetente_tipo TEXT NOT NULL,
		remetente_nome TEXT,
		tipo_mensagem TEXT NOT NULL,
		metadata TEXT,
		lida BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_mensagens_conversa ON mensagens (conversa_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS chatbot_flows (
		id TEXT PRIMARY KEY,
		empresa_id TEXT NOT NULL,
		nome TEXT NOT NULL,
		status TEXT NOT NULL,
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		priority INTEGER NOT NULL DEFAULT 0,
		mensagem_inicial TEXT NOT NULL,
		trigger_conditions TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chatbot_nodes (
		id TEXT PRIMARY KEY,
		flow_id TEXT NOT NULL,
		node_id TEXT NOT NULL,
		nome TEXT NOT NULL,
		mensagem TEXT NOT NULL,
		tipo_resposta TEXT NOT NULL,
		ordem INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_flow ON chatbot_nodes (flow_id, node_id)`,
	`CREATE TABLE IF NOT EXISTS chatbot_options (
		id TEXT PRIMARY KEY,
		node_id TEXT NOT NULL,
		option_id TEXT NOT NULL,
		texto TEXT NOT NULL,
		proxima_acao TEXT NOT NULL,
		proximo_node_id TEXT,
		setor_transferencia TEXT,
		mensagem_final TEXT,
		ordem INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_options_node ON chatbot_options (node_id, ordem)`,
	`CREATE TABLE IF NOT EXISTS chatbot_sessions (
		id TEXT PRIMARY KEY,
		conversa_id TEXT NOT NULL UNIQUE,
		flow_id TEXT NOT NULL,
		current_node_id TEXT NOT NULL,
		session_data TEXT,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS message_queue (
		id TEXT PRIMARY KEY,
		correlation_id TEXT NOT NULL,
		message_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 3,
		error_message TEXT,
		scheduled_at TIMESTAMP NOT NULL,
		processed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_claim ON message_queue (status, priority, scheduled_at)`,
	`CREATE TABLE IF NOT EXISTS failed_messages (
		id TEXT PRIMARY KEY,
		original_message_id TEXT NOT NULL,
		correlation_id TEXT NOT NULL,
		message_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		error_message TEXT NOT NULL,
		failure_count INTEGER NOT NULL,
		first_failed_at TIMESTAMP NOT NULL,
		last_failed_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transferencias (
		id TEXT PRIMARY KEY,
		conversa_id TEXT NOT NULL,
		de_agente_id TEXT,
		para_agente_id TEXT,
		motivo TEXT,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS setores (
		id TEXT PRIMARY KEY,
		empresa_id TEXT,
		nome TEXT NOT NULL,
		descricao TEXT,
		ativo BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL
	)`,
}
