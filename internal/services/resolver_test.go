package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(env *testEnv, defaultEmpresa string, singleOpen bool) *Resolver {
	return NewResolver(env.configs, env.contacts, env.conversations, defaultEmpresa, singleOpen)
}

func TestResolveCreatesContactAndConversationOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seedEvolutionConfig(t, "empresa-1", "vendas-01", "https://evo.example")
	r := newResolver(env, "", false)

	contato, conversa, novo, err := r.Resolve(inbound("Oi"))
	require.NoError(t, err)
	assert.True(t, novo)
	assert.Equal(t, "empresa-1", contato.EmpresaID)
	assert.Equal(t, "5511999887766", contato.Telefone)
	assert.Equal(t, "Maria", contato.Nome)

	// A second event from the same phone reuses both records.
	contato2, conversa2, novo2, err := r.Resolve(inbound("Ainda aí?"))
	require.NoError(t, err)
	assert.False(t, novo2)
	assert.Equal(t, contato.ID, contato2.ID)
	assert.Equal(t, conversa.ID, conversa2.ID)

	var contatos, conversas int
	require.NoError(t, env.db.Get(&contatos, `SELECT COUNT(*) FROM contatos`))
	require.NoError(t, env.db.Get(&conversas, `SELECT COUNT(*) FROM conversas`))
	assert.Equal(t, 1, contatos)
	assert.Equal(t, 1, conversas)
}

func TestResolveTenantFallsBackToDefault(t *testing.T) {
	env := newTestEnv(t)
	r := newResolver(env, "empresa-default", false)

	empresaID, err := r.ResolveTenant("unknown-instance")
	require.NoError(t, err)
	assert.Equal(t, "empresa-default", empresaID)
}

func TestResolveTenantFailsWithoutFallback(t *testing.T) {
	env := newTestEnv(t)
	r := newResolver(env, "", false)

	_, err := r.ResolveTenant("unknown-instance")
	assert.ErrorIs(t, err, ErrTenantNotResolved)

	_, _, _, err = r.Resolve(inbound("Oi"))
	assert.ErrorIs(t, err, ErrTenantNotResolved)
}

func TestResolveReusesFinishedConversationsNever(t *testing.T) {
	env := newTestEnv(t)
	env.seedEvolutionConfig(t, "empresa-1", "vendas-01", "https://evo.example")
	r := newResolver(env, "", false)

	_, conversa, _, err := r.Resolve(inbound("Oi"))
	require.NoError(t, err)

	_, err = env.db.Exec(env.db.Rebind(`UPDATE conversas SET status = 'fechado' WHERE id = ?`), conversa.ID)
	require.NoError(t, err)

	_, conversa2, novo, err := r.Resolve(inbound("Voltei"))
	require.NoError(t, err)
	assert.True(t, novo)
	assert.NotEqual(t, conversa.ID, conversa2.ID)
}
