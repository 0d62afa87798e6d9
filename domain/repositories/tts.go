package repositories

import "context"

// Synthesizer turns reply text into encoded speech audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Voice describes a voice offered by a synthesizer.
type Voice struct {
	ID       string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// VoiceLister is implemented by synthesizers that can enumerate their voices.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]Voice, error)
	GetVoice(ctx context.Context, voiceID string) (*Voice, error)
}
