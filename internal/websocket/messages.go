package websocket

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/satriahrh/voicerelay/domain"
)

// inboundFrame is the JSON shape of a client frame.
type inboundFrame struct {
	Type      string  `json:"type"`
	AudioData *string `json:"audio_data,omitempty"`
	Text      *string `json:"text,omitempty"`
}

// outboundFrame is the JSON shape of a server frame.
type outboundFrame struct {
	Type      string `json:"type"`
	Stage     string `json:"stage,omitempty"`
	Message   string `json:"message,omitempty"`
	Text      string `json:"text,omitempty"`
	AudioData string `json:"audio_data,omitempty"`
}

// DecodeInbound parses one text frame into an InboundMessage.
// Every failure is a *domain.ProtocolError.
func DecodeInbound(frame []byte) (domain.InboundMessage, error) {
	var in inboundFrame
	if err := json.Unmarshal(frame, &in); err != nil {
		return domain.InboundMessage{}, &domain.ProtocolError{Reason: "Invalid JSON message"}
	}

	kind := domain.InboundKind(in.Type)
	switch kind {
	case domain.InboundPing:
		return domain.InboundMessage{Kind: kind}, nil

	case domain.InboundAudio:
		if in.AudioData == nil || *in.AudioData == "" {
			return domain.InboundMessage{}, &domain.ProtocolError{Reason: "Audio data not found"}
		}
		data, err := base64.StdEncoding.DecodeString(*in.AudioData)
		if err != nil {
			return domain.InboundMessage{}, &domain.ProtocolError{Reason: "Audio data is not valid base64"}
		}
		return domain.InboundMessage{Kind: kind, Audio: data}, nil

	case domain.InboundTextProbe:
		if in.Text == nil || *in.Text == "" {
			return domain.InboundMessage{}, &domain.ProtocolError{Reason: "Test text not found"}
		}
		return domain.InboundMessage{Kind: kind, Text: *in.Text}, nil

	case "":
		return domain.InboundMessage{}, &domain.ProtocolError{Reason: "Message type not found"}

	default:
		return domain.InboundMessage{}, &domain.ProtocolError{Reason: fmt.Sprintf("Unsupported message type: %s", in.Type)}
	}
}

// EncodeOutbound renders an OutboundMessage as one JSON text frame.
func EncodeOutbound(msg domain.OutboundMessage) ([]byte, error) {
	out := outboundFrame{Type: string(msg.Kind)}

	switch msg.Kind {
	case domain.OutboundStatus:
		out.Stage = msg.Stage
		out.Message = msg.Message
	case domain.OutboundTranscription, domain.OutboundAIResponse:
		out.Text = msg.Text
	case domain.OutboundAudio:
		out.Text = msg.Text
		out.AudioData = base64.StdEncoding.EncodeToString(msg.Audio)
	case domain.OutboundError, domain.OutboundPong:
		out.Message = msg.Message
	default:
		return nil, fmt.Errorf("unknown outbound kind %q", msg.Kind)
	}

	return json.Marshal(out)
}
