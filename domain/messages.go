package domain

// InboundKind identifies the variant of an InboundMessage.
type InboundKind string

const (
	InboundAudio     InboundKind = "audio_data"
	InboundTextProbe InboundKind = "test_ai"
	InboundPing      InboundKind = "ping"
)

// InboundMessage is a decoded client frame. Audio is set for InboundAudio,
// Text for InboundTextProbe.
type InboundMessage struct {
	Kind  InboundKind
	Audio []byte
	Text  string
}

// OutboundKind identifies the variant of an OutboundMessage.
type OutboundKind string

const (
	OutboundStatus        OutboundKind = "status"
	OutboundTranscription OutboundKind = "transcription"
	OutboundAIResponse    OutboundKind = "ai_response"
	OutboundAudio         OutboundKind = "audio_response"
	OutboundError         OutboundKind = "error"
	OutboundPong          OutboundKind = "pong"
)

// Stage names carried by status updates.
const (
	StageProcessing   = "processing"
	StageGenerating   = "generating"
	StageSynthesizing = "synthesizing"
)

var stageText = map[string]string{
	StageProcessing:   "Processing audio...",
	StageGenerating:   "Generating AI response...",
	StageSynthesizing: "Generating speech...",
}

// OutboundMessage is a server frame before wire encoding.
type OutboundMessage struct {
	Kind    OutboundKind
	Stage   string
	Message string
	Text    string
	Audio   []byte
}

func NewStatus(stage string) OutboundMessage {
	text, ok := stageText[stage]
	if !ok {
		text = stage
	}
	return OutboundMessage{Kind: OutboundStatus, Stage: stage, Message: text}
}

func NewTranscription(text string) OutboundMessage {
	return OutboundMessage{Kind: OutboundTranscription, Text: text}
}

func NewAIResponse(text string) OutboundMessage {
	return OutboundMessage{Kind: OutboundAIResponse, Text: text}
}

// NewAudioResult carries synthesized speech together with the text it voices.
func NewAudioResult(audio []byte, text string) OutboundMessage {
	return OutboundMessage{Kind: OutboundAudio, Audio: audio, Text: text}
}

func NewErrorNotice(message string) OutboundMessage {
	return OutboundMessage{Kind: OutboundError, Message: message}
}

func NewPong() OutboundMessage {
	return OutboundMessage{Kind: OutboundPong, Message: "Connection is active"}
}
