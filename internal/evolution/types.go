package evolution

// WebhookPayload is the raw body Evolution API posts to the relay.
type WebhookPayload struct {
	Event    string      `json:"event"`
	Instance string      `json:"instance"`
	Data     WebhookData `json:"data"`
}

type WebhookData struct {
	Key              MessageKey      `json:"key"`
	PushName         string          `json:"pushName,omitempty"`
	Message          *MessageContent `json:"message,omitempty"`
	MessageTimestamp int64           `json:"messageTimestamp"`
	Status           string          `json:"status,omitempty"`
}

type MessageKey struct {
	RemoteJid string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// MessageContent carries one of the kind-specific shapes. Which field is set
// decides the message kind, in the precedence order of ExtractContent.
type MessageContent struct {
	Conversation        string                  `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedTextMessage    `json:"extendedTextMessage,omitempty"`
	ImageMessage        *MediaMessage           `json:"imageMessage,omitempty"`
	DocumentMessage     *DocumentMessage        `json:"documentMessage,omitempty"`
	AudioMessage        *MediaMessage           `json:"audioMessage,omitempty"`
	VideoMessage        *MediaMessage           `json:"videoMessage,omitempty"`
	ButtonsResponse     *ButtonsResponseMessage `json:"buttonsResponseMessage,omitempty"`
	ListResponse        *ListResponseMessage    `json:"listResponseMessage,omitempty"`
}

type ExtendedTextMessage struct {
	Text string `json:"text"`
}

type MediaMessage struct {
	URL      string `json:"url"`
	Mimetype string `json:"mimetype"`
	Caption  string `json:"caption,omitempty"`
}

type DocumentMessage struct {
	URL      string `json:"url"`
	Mimetype string `json:"mimetype"`
	Title    string `json:"title,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

type ButtonsResponseMessage struct {
	SelectedButtonID    string `json:"selectedButtonId"`
	SelectedDisplayText string `json:"selectedDisplayText"`
}

type ListResponseMessage struct {
	SingleSelectReply SingleSelectReply `json:"singleSelectReply"`
}

type SingleSelectReply struct {
	SelectedRowID string `json:"selectedRowId"`
}

// Message kinds as stored in mensagens.tipo_mensagem.
const (
	TipoTexto         = "texto"
	TipoImagem        = "imagem"
	TipoDocumento     = "documento"
	TipoAudio         = "audio"
	TipoVideo         = "video"
	TipoBotoes        = "botoes"
	TipoLista         = "lista"
	TipoBotaoResposta = "botao_resposta"
	TipoListaResposta = "lista_resposta"
)
