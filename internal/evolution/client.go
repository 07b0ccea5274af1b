package evolution

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// OutboundMessage is the canonical form a producer enqueues. Exactly one HTTP
// call to the provider results from it; the kind decides endpoint and shape.
type OutboundMessage struct {
	Telefone string          `json:"telefone"`
	Mensagem string          `json:"mensagem"`
	Tipo     string          `json:"tipo"`
	Opcoes   *OutboundOpcoes `json:"opcoes,omitempty"`
}

type OutboundOpcoes struct {
	ImageURL    string         `json:"imageUrl,omitempty"`
	Caption     string         `json:"caption,omitempty"`
	DocumentURL string         `json:"documentUrl,omitempty"`
	FileName    string         `json:"fileName,omitempty"`
	AudioURL    string         `json:"audioUrl,omitempty"`
	VideoURL    string         `json:"videoUrl,omitempty"`
	Botoes      []Botao        `json:"botoes,omitempty"`
	Footer      string         `json:"footer,omitempty"`
	Lista       *ListaMensagem `json:"lista,omitempty"`
}

type Botao struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type ListaMensagem struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	ButtonText  string      `json:"buttonText"`
	Sections    []ListSecao `json:"sections"`
	FooterText  string      `json:"footerText,omitempty"`
}

type ListSecao struct {
	Title string    `json:"title"`
	Rows  []ListRow `json:"rows"`
}

type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Instance identifies one tenant's Evolution API connection.
type Instance struct {
	ServerURL    string
	InstanceName string
	APIKey       string
}

// Client dispatches outbound messages to the Evolution API REST endpoints.
type Client struct {
	httpClient *resty.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: resty.New().SetTimeout(timeout),
	}
}

// Send performs exactly one provider call for msg against inst. A non-2xx
// status or a body without the provider's success markers ("key" or
// "success") counts as a dispatch failure. The client never retries; retry
// bookkeeping belongs to the queue.
func (c *Client) Send(ctx context.Context, inst Instance, msg *OutboundMessage) (map[string]interface{}, error) {
	endpoint, payload, err := buildRequest(inst, msg)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("endpoint", endpoint).
		Str("tipo", msg.Tipo).
		Str("telefone", msg.Telefone).
		Msg("Dispatching message to Evolution API")

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("apikey", inst.APIKey).
		SetBody(payload).
		Post(endpoint)
	if err != nil {
		return nil, fmt.Errorf("evolution API request failed: %w", err)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("evolution API returned invalid JSON (status %d)", resp.StatusCode())
	}

	if resp.IsError() {
		return body, fmt.Errorf("evolution API error: status %d - %s", resp.StatusCode(), resp.String())
	}

	if _, hasKey := body["key"]; !hasKey {
		if ok, _ := body["success"].(bool); !ok {
			return body, fmt.Errorf("evolution API response lacks success markers")
		}
	}

	return body, nil
}

// buildRequest validates kind-specific required fields and assembles the
// endpoint plus wire payload. Validation failures happen before any HTTP
// call so a malformed entry is never sent as the wrong kind.
func buildRequest(inst Instance, msg *OutboundMessage) (string, map[string]interface{}, error) {
	baseURL := strings.TrimSuffix(inst.ServerURL, "/")
	number := NormalizePhone(msg.Telefone)
	if number == "" {
		return "", nil, fmt.Errorf("telefone is empty after normalization")
	}

	opcoes := msg.Opcoes
	if opcoes == nil {
		opcoes = &OutboundOpcoes{}
	}

	var endpoint string
	var payload map[string]interface{}

	switch msg.Tipo {
	case TipoTexto, "":
		endpoint = fmt.Sprintf("%s/message/sendText/%s", baseURL, inst.InstanceName)
		payload = map[string]interface{}{
			"number":      number,
			"text":        msg.Mensagem,
			"delay":       0,
			"linkPreview": true,
		}

	case TipoImagem:
		if opcoes.ImageURL == "" {
			return "", nil, fmt.Errorf("imageUrl is required for image messages")
		}
		caption := opcoes.Caption
		if caption == "" {
			caption = msg.Mensagem
		}
		endpoint = fmt.Sprintf("%s/message/sendMedia/%s", baseURL, inst.InstanceName)
		payload = map[string]interface{}{
			"number":    number,
			"mediatype": "image",
			"media":     opcoes.ImageURL,
			"caption":   caption,
		}

	case TipoDocumento:
		if opcoes.DocumentURL == "" {
			return "", nil, fmt.Errorf("documentUrl is required for document messages")
		}
		fileName := opcoes.FileName
		if fileName == "" {
			fileName = "documento.pdf"
		}
		endpoint = fmt.Sprintf("%s/message/sendMedia/%s", baseURL, inst.InstanceName)
		payload = map[string]interface{}{
			"number":    number,
			"mediatype": "document",
			"media":     opcoes.DocumentURL,
			"fileName":  fileName,
		}

	case TipoAudio:
		if opcoes.AudioURL == "" {
			return "", nil, fmt.Errorf("audioUrl is required for audio messages")
		}
		endpoint = fmt.Sprintf("%s/message/sendMedia/%s", baseURL, inst.InstanceName)
		payload = map[string]interface{}{
			"number":    number,
			"mediatype": "audio",
			"media":     opcoes.AudioURL,
		}

	case TipoVideo:
		if opcoes.VideoURL == "" {
			return "", nil, fmt.Errorf("videoUrl is required for video messages")
		}
		caption := opcoes.Caption
		if caption == "" {
			caption = msg.Mensagem
		}
		endpoint = fmt.Sprintf("%s/message/sendMedia/%s", baseURL, inst.InstanceName)
		payload = map[string]interface{}{
			"number":    number,
			"mediatype": "video",
			"media":     opcoes.VideoURL,
			"caption":   caption,
		}

	case TipoBotoes:
		if len(opcoes.Botoes) == 0 {
			return "", nil, fmt.Errorf("botoes is required for button messages")
		}
		buttonMessage := map[string]interface{}{
			"text":    msg.Mensagem,
			"buttons": opcoes.Botoes,
		}
		if opcoes.Footer != "" {
			buttonMessage["footer"] = opcoes.Footer
		}
		endpoint = fmt.Sprintf("%s/message/sendButtons/%s", baseURL, inst.InstanceName)
		payload = map[string]interface{}{
			"number":        number,
			"buttonMessage": buttonMessage,
		}

	case TipoLista:
		if opcoes.Lista == nil {
			return "", nil, fmt.Errorf("lista is required for list messages")
		}
		listMessage := map[string]interface{}{
			"title":       opcoes.Lista.Title,
			"description": opcoes.Lista.Description,
			"buttonText":  opcoes.Lista.ButtonText,
			"sections":    opcoes.Lista.Sections,
		}
		if opcoes.Lista.FooterText != "" {
			listMessage["footerText"] = opcoes.Lista.FooterText
		}
		endpoint = fmt.Sprintf("%s/message/sendList/%s", baseURL, inst.InstanceName)
		payload = map[string]interface{}{
			"number":      number,
			"listMessage": listMessage,
		}

	default:
		return "", nil, fmt.Errorf("unsupported message type: %s", msg.Tipo)
	}

	return endpoint, payload, nil
}
