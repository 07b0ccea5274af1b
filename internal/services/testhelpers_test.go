package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"atende-relay/internal/db"
	"atende-relay/internal/models"
	"atende-relay/internal/repositories"
)

type testEnv struct {
	db            *sqlx.DB
	contacts      *repositories.ContactRepository
	conversations *repositories.ConversationRepository
	messages      *repositories.MessageRepository
	flows         *repositories.FlowRepository
	sessions      *repositories.SessionRepository
	queue         *repositories.QueueRepository
	configs       *repositories.ConfigRepository
	transfers     *repositories.TransferRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() { conn.Close() })
	return &testEnv{
		db:            conn,
		contacts:      repositories.NewContactRepository(conn),
		conversations: repositories.NewConversationRepository(conn),
		messages:      repositories.NewMessageRepository(conn),
		flows:         repositories.NewFlowRepository(conn),
		sessions:      repositories.NewSessionRepository(conn),
		queue:         repositories.NewQueueRepository(conn),
		configs:       repositories.NewConfigRepository(conn),
		transfers:     repositories.NewTransferRepository(conn),
	}
}

func (env *testEnv) newEngine() *ChatbotEngine {
	return NewChatbotEngine(env.flows, env.sessions, env.conversations, env.transfers, env.messages, env.queue, DefaultMatcher(), 3)
}

func (env *testEnv) seedContato(t *testing.T, empresaID string) *models.Contato {
	t.Helper()
	c, err := env.contacts.Create(empresaID, "Maria", "5511999887766")
	require.NoError(t, err)
	return c
}

func (env *testEnv) seedConversa(t *testing.T, empresaID, contatoID string) *models.Conversa {
	t.Helper()
	c, err := env.conversations.Create(empresaID, contatoID, "whatsapp")
	require.NoError(t, err)
	return c
}

func (env *testEnv) seedFlow(t *testing.T, empresaID string, isDefault bool, priority int, triggers string) string {
	t.Helper()
	id := uuid.NewString()
	var trig interface{}
	if triggers != "" {
		trig = triggers
	}
	_, err := env.db.Exec(env.db.Rebind(`INSERT INTO chatbot_flows (id, empresa_id, nome, status, is_default, priority, mensagem_inicial, trigger_conditions, created_at)
		VALUES (?, ?, ?, 'ativo', ?, ?, 'Bem-vindo', ?, ?)`),
		id, empresaID, "Fluxo "+id[:8], isDefault, priority, trig, time.Now().UTC())
	require.NoError(t, err)
	return id
}

// seedNode inserts a node and returns its row id. nodeID is the flow-scoped
// logical id sessions point at.
func (env *testEnv) seedNode(t *testing.T, flowID, nodeID, mensagem, tipoResposta string, ordem int) string {
	t.Helper()
	id := uuid.NewString()
	_, err := env.db.Exec(env.db.Rebind(`INSERT INTO chatbot_nodes (id, flow_id, node_id, nome, mensagem, tipo_resposta, ordem, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		id, flowID, nodeID, "Nó "+nodeID, mensagem, tipoResposta, ordem, time.Now().UTC())
	require.NoError(t, err)
	return id
}

func (env *testEnv) seedOption(t *testing.T, nodeRowID, optionID, texto, acao, proximoNodeID, setor, mensagemFinal string, ordem int) {
	t.Helper()
	var proximo, setorV, final interface{}
	if proximoNodeID != "" {
		proximo = proximoNodeID
	}
	if setor != "" {
		setorV = setor
	}
	if mensagemFinal != "" {
		final = mensagemFinal
	}
	_, err := env.db.Exec(env.db.Rebind(`INSERT INTO chatbot_options (id, node_id, option_id, texto, proxima_acao, proximo_node_id, setor_transferencia, mensagem_final, ordem, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		uuid.NewString(), nodeRowID, optionID, texto, acao, proximo, setorV, final, ordem, time.Now().UTC())
	require.NoError(t, err)
}

func (env *testEnv) seedEvolutionConfig(t *testing.T, empresaID, instanceName, serverURL string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := env.db.Exec(env.db.Rebind(`INSERT INTO evolution_api_config (id, empresa_id, instance_name, api_key, server_url, ativo, created_at, updated_at)
		VALUES (?, ?, ?, 'test-key', ?, ?, ?, ?)`),
		uuid.NewString(), empresaID, instanceName, serverURL, true, now, now)
	require.NoError(t, err)
}

func (env *testEnv) pendingEntries(t *testing.T) []models.QueueEntry {
	t.Helper()
	var entries []models.QueueEntry
	require.NoError(t, env.db.Select(&entries, `SELECT * FROM message_queue ORDER BY created_at ASC`))
	return entries
}
