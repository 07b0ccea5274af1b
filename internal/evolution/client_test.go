package evolution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	path    string
	apikey  string
	payload map[string]interface{}
}

func providerServer(t *testing.T, status int, body map[string]interface{}) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		seen = append(seen, recordedRequest{
			path:    r.URL.Path,
			apikey:  r.Header.Get("apikey"),
			payload: payload,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func testInstance(srv *httptest.Server) Instance {
	return Instance{ServerURL: srv.URL, InstanceName: "vendas-01", APIKey: "secret-key"}
}

func TestSendText(t *testing.T) {
	srv, seen := providerServer(t, http.StatusOK, map[string]interface{}{"key": map[string]interface{}{"id": "ABC"}})
	client := NewClient(5 * time.Second)

	resp, err := client.Send(context.Background(), testInstance(srv), &OutboundMessage{
		Telefone: "+55 (11) 99988-7766",
		Mensagem: "Olá",
		Tipo:     TipoTexto,
	})
	require.NoError(t, err)
	assert.Contains(t, resp, "key")

	require.Len(t, *seen, 1)
	got := (*seen)[0]
	assert.Equal(t, "/message/sendText/vendas-01", got.path)
	assert.Equal(t, "secret-key", got.apikey)
	assert.Equal(t, "5511999887766", got.payload["number"])
	assert.Equal(t, "Olá", got.payload["text"])
	assert.Equal(t, true, got.payload["linkPreview"])
}

func TestSendMediaEndpoints(t *testing.T) {
	tests := []struct {
		name      string
		msg       *OutboundMessage
		path      string
		mediatype string
	}{
		{
			name: "image",
			msg: &OutboundMessage{
				Telefone: "5511999887766",
				Mensagem: "legenda",
				Tipo:     TipoImagem,
				Opcoes:   &OutboundOpcoes{ImageURL: "https://cdn/img.jpg"},
			},
			path:      "/message/sendMedia/vendas-01",
			mediatype: "image",
		},
		{
			name: "document",
			msg: &OutboundMessage{
				Telefone: "5511999887766",
				Tipo:     TipoDocumento,
				Opcoes:   &OutboundOpcoes{DocumentURL: "https://cdn/doc.pdf", FileName: "nota.pdf"},
			},
			path:      "/message/sendMedia/vendas-01",
			mediatype: "document",
		},
		{
			name: "audio",
			msg: &OutboundMessage{
				Telefone: "5511999887766",
				Tipo:     TipoAudio,
				Opcoes:   &OutboundOpcoes{AudioURL: "https://cdn/voz.ogg"},
			},
			path:      "/message/sendMedia/vendas-01",
			mediatype: "audio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, seen := providerServer(t, http.StatusOK, map[string]interface{}{"success": true})
			client := NewClient(5 * time.Second)

			_, err := client.Send(context.Background(), testInstance(srv), tt.msg)
			require.NoError(t, err)
			require.Len(t, *seen, 1)
			assert.Equal(t, tt.path, (*seen)[0].path)
			assert.Equal(t, tt.mediatype, (*seen)[0].payload["mediatype"])
		})
	}
}

func TestSendButtonsAndList(t *testing.T) {
	srv, seen := providerServer(t, http.StatusOK, map[string]interface{}{"success": true})
	client := NewClient(5 * time.Second)

	_, err := client.Send(context.Background(), testInstance(srv), &OutboundMessage{
		Telefone: "5511999887766",
		Mensagem: "Escolha uma opção",
		Tipo:     TipoBotoes,
		Opcoes: &OutboundOpcoes{
			Botoes: []Botao{{ID: "1", Text: "Suporte"}, {ID: "2", Text: "Vendas"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, *seen, 1)
	assert.Equal(t, "/message/sendButtons/vendas-01", (*seen)[0].path)
	buttonMessage := (*seen)[0].payload["buttonMessage"].(map[string]interface{})
	assert.Equal(t, "Escolha uma opção", buttonMessage["text"])

	_, err = client.Send(context.Background(), testInstance(srv), &OutboundMessage{
		Telefone: "5511999887766",
		Tipo:     TipoLista,
		Opcoes: &OutboundOpcoes{
			Lista: &ListaMensagem{
				Title:       "Menu",
				Description: "Escolha",
				ButtonText:  "Abrir",
				Sections: []ListSecao{
					{Title: "Menu", Rows: []ListRow{{ID: "1", Title: "Suporte"}}},
				},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, *seen, 2)
	assert.Equal(t, "/message/sendList/vendas-01", (*seen)[1].path)
}

func TestSendValidatesBeforeHTTP(t *testing.T) {
	srv, seen := providerServer(t, http.StatusOK, map[string]interface{}{"success": true})
	client := NewClient(5 * time.Second)

	// Image without imageUrl must be rejected before any provider call and
	// never fall back to a text send.
	_, err := client.Send(context.Background(), testInstance(srv), &OutboundMessage{
		Telefone: "5511999887766",
		Mensagem: "sem url",
		Tipo:     TipoImagem,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "imageUrl")
	assert.Empty(t, *seen)

	_, err = client.Send(context.Background(), testInstance(srv), &OutboundMessage{
		Telefone: "5511999887766",
		Tipo:     TipoBotoes,
		Opcoes:   &OutboundOpcoes{},
	})
	require.Error(t, err)
	assert.Empty(t, *seen)

	_, err = client.Send(context.Background(), testInstance(srv), &OutboundMessage{
		Telefone: "abc",
		Mensagem: "oi",
		Tipo:     TipoTexto,
	})
	require.Error(t, err)
	assert.Empty(t, *seen)
}

func TestSendFailureStatuses(t *testing.T) {
	srv, _ := providerServer(t, http.StatusBadRequest, map[string]interface{}{"error": "invalid"})
	client := NewClient(5 * time.Second)

	_, err := client.Send(context.Background(), testInstance(srv), &OutboundMessage{
		Telefone: "5511999887766",
		Mensagem: "oi",
		Tipo:     TipoTexto,
	})
	require.Error(t, err)

	// 2xx without the provider's success markers still fails.
	srv2, _ := providerServer(t, http.StatusOK, map[string]interface{}{"status": "queued"})
	_, err = client.Send(context.Background(), testInstance(srv2), &OutboundMessage{
		Telefone: "5511999887766",
		Mensagem: "oi",
		Tipo:     TipoTexto,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "success markers")
}
