package evolution

import (
	"strings"
)

// InboundEvent is the canonical form of an accepted inbound message.
type InboundEvent struct {
	Instance       string
	MessageID      string
	RemoteJid      string
	Telefone       string
	NomeContato    string
	TipoMensagem   string
	Conteudo       string
	MediaURL       string
	MimeType       string
	FileName       string
	SelectedID     string
	Timestamp      int64
}

// SkipReasons for events the relay acknowledges without processing.
const (
	SkipNotUpsert   = "event is not MESSAGES_UPSERT"
	SkipFromMe      = "message sent by the instance itself"
	SkipUnsupported = "unsupported message shape"
	SkipEmpty       = "message has no content"
)

// Normalize turns a raw webhook payload into a canonical inbound event.
// A nil event with a non-empty reason means the payload is acknowledged but
// ignored; only inbound user messages pass through.
func Normalize(p *WebhookPayload) (*InboundEvent, string) {
	if p.Event != "MESSAGES_UPSERT" {
		return nil, SkipNotUpsert
	}
	if p.Data.Key.FromMe {
		return nil, SkipFromMe
	}

	nome := p.Data.PushName
	if nome == "" {
		nome = "Cliente"
	}

	ev := &InboundEvent{
		Instance:    p.Instance,
		MessageID:   p.Data.Key.ID,
		RemoteJid:   p.Data.Key.RemoteJid,
		Telefone:    NormalizePhone(p.Data.Key.RemoteJid),
		NomeContato: nome,
		Timestamp:   p.Data.MessageTimestamp,
	}

	if !extractContent(p.Data.Message, ev) {
		return nil, SkipUnsupported
	}
	if ev.Conteudo == "" {
		return nil, SkipEmpty
	}
	return ev, ""
}

// extractContent resolves the message kind with a fixed precedence: plain
// text, extended text, image, document, audio, video, button reply, list
// reply. The first populated field wins.
func extractContent(m *MessageContent, ev *InboundEvent) bool {
	if m == nil {
		return false
	}

	switch {
	case m.Conversation != "":
		ev.TipoMensagem = TipoTexto
		ev.Conteudo = m.Conversation
	case m.ExtendedTextMessage != nil:
		ev.TipoMensagem = TipoTexto
		ev.Conteudo = m.ExtendedTextMessage.Text
	case m.ImageMessage != nil:
		ev.TipoMensagem = TipoImagem
		ev.Conteudo = m.ImageMessage.Caption
		if ev.Conteudo == "" {
			ev.Conteudo = "[Imagem]"
		}
		ev.MediaURL = m.ImageMessage.URL
		ev.MimeType = m.ImageMessage.Mimetype
	case m.DocumentMessage != nil:
		ev.TipoMensagem = TipoDocumento
		ev.Conteudo = m.DocumentMessage.Title
		if ev.Conteudo == "" {
			ev.Conteudo = m.DocumentMessage.FileName
		}
		ev.MediaURL = m.DocumentMessage.URL
		ev.MimeType = m.DocumentMessage.Mimetype
		ev.FileName = m.DocumentMessage.FileName
	case m.AudioMessage != nil:
		ev.TipoMensagem = TipoAudio
		ev.Conteudo = "[Áudio]"
		ev.MediaURL = m.AudioMessage.URL
		ev.MimeType = m.AudioMessage.Mimetype
	case m.VideoMessage != nil:
		ev.TipoMensagem = TipoVideo
		ev.Conteudo = m.VideoMessage.Caption
		if ev.Conteudo == "" {
			ev.Conteudo = "[Vídeo]"
		}
		ev.MediaURL = m.VideoMessage.URL
		ev.MimeType = m.VideoMessage.Mimetype
	case m.ButtonsResponse != nil:
		ev.TipoMensagem = TipoBotaoResposta
		ev.Conteudo = m.ButtonsResponse.SelectedDisplayText
		ev.SelectedID = m.ButtonsResponse.SelectedButtonID
	case m.ListResponse != nil:
		ev.TipoMensagem = TipoListaResposta
		ev.Conteudo = m.ListResponse.SingleSelectReply.SelectedRowID
		ev.SelectedID = m.ListResponse.SingleSelectReply.SelectedRowID
	default:
		return false
	}
	return true
}

// NormalizePhone strips the WhatsApp JID suffix and every non-digit rune.
func NormalizePhone(jid string) string {
	s := strings.TrimSuffix(jid, "@s.whatsapp.net")
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
