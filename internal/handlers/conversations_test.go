package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atende-relay/internal/db"
	"atende-relay/internal/models"
	"atende-relay/internal/repositories"
)

type conversationEnv struct {
	db            *sqlx.DB
	conversations *repositories.ConversationRepository
	router        *mux.Router
}

func newConversationEnv(t *testing.T) *conversationEnv {
	t.Helper()
	conn, err := db.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() { conn.Close() })

	conversations := repositories.NewConversationRepository(conn)
	handler := NewConversationHandler(conversations, repositories.NewTransferRepository(conn))

	router := mux.NewRouter()
	router.HandleFunc("/conversations/{id}/assumir", handler.Assume).Methods(http.MethodPost)
	router.HandleFunc("/conversations/{id}/liberar", handler.Release).Methods(http.MethodPost)
	router.HandleFunc("/conversations/{id}/transferir", handler.Transfer).Methods(http.MethodPost)

	return &conversationEnv{db: conn, conversations: conversations, router: router}
}

func (env *conversationEnv) seedConversa(t *testing.T) *models.Conversa {
	t.Helper()
	contato, err := repositories.NewContactRepository(env.db).Create("empresa-1", "Maria", "5511999887766")
	require.NoError(t, err)
	conversa, err := env.conversations.Create("empresa-1", contato.ID, "whatsapp")
	require.NoError(t, err)
	return conversa
}

func (env *conversationEnv) post(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestAssumeEndpoint(t *testing.T) {
	env := newConversationEnv(t)
	conversa := env.seedConversa(t)

	rec := env.post(t, "/conversations/"+conversa.ID+"/assumir", map[string]string{"agenteId": "agente-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := env.conversations.ByID(conversa.ID)
	require.NoError(t, err)
	assert.Equal(t, "agente-1", got.AgenteID.String)
	assert.Equal(t, models.ConversaEmAtendimento, got.Status)

	// A second agent gets a conflict, not a silent steal.
	rec = env.post(t, "/conversations/"+conversa.ID+"/assumir", map[string]string{"agenteId": "agente-2"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAssumeRequiresAgent(t *testing.T) {
	env := newConversationEnv(t)
	conversa := env.seedConversa(t)

	rec := env.post(t, "/conversations/"+conversa.ID+"/assumir", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReleaseEndpoint(t *testing.T) {
	env := newConversationEnv(t)
	conversa := env.seedConversa(t)
	require.NoError(t, env.conversations.Assume(conversa.ID, "agente-1"))

	rec := env.post(t, "/conversations/"+conversa.ID+"/liberar", map[string]string{"agenteId": "agente-2"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.post(t, "/conversations/"+conversa.ID+"/liberar", map[string]string{"agenteId": "agente-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := env.conversations.ByID(conversa.ID)
	require.NoError(t, err)
	assert.False(t, got.AgenteID.Valid)
	assert.Equal(t, models.ConversaAtiva, got.Status)
}

func TestTransferToSector(t *testing.T) {
	env := newConversationEnv(t)
	conversa := env.seedConversa(t)
	require.NoError(t, env.conversations.Assume(conversa.ID, "agente-1"))

	rec := env.post(t, "/conversations/"+conversa.ID+"/transferir", map[string]string{
		"deAgenteId": "agente-1",
		"setor":      "financeiro",
		"motivo":     "cobrança",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["transferId"])

	got, err := env.conversations.ByID(conversa.ID)
	require.NoError(t, err)
	assert.Equal(t, "financeiro", got.Setor.String)
	assert.False(t, got.AgenteID.Valid)

	var transfers int
	require.NoError(t, env.db.Get(&transfers, env.db.Rebind(`SELECT COUNT(*) FROM transferencias WHERE conversa_id = ?`), conversa.ID))
	assert.Equal(t, 1, transfers)
}

func TestTransferBetweenAgents(t *testing.T) {
	env := newConversationEnv(t)
	conversa := env.seedConversa(t)
	require.NoError(t, env.conversations.Assume(conversa.ID, "agente-1"))

	rec := env.post(t, "/conversations/"+conversa.ID+"/transferir", map[string]string{
		"deAgenteId":   "agente-1",
		"paraAgenteId": "agente-2",
		"motivo":       "fim de turno",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := env.conversations.ByID(conversa.ID)
	require.NoError(t, err)
	assert.Equal(t, "agente-2", got.AgenteID.String)
}

func TestTransferRequiresTarget(t *testing.T) {
	env := newConversationEnv(t)
	conversa := env.seedConversa(t)

	rec := env.post(t, "/conversations/"+conversa.ID+"/transferir", map[string]string{"motivo": "sem destino"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
