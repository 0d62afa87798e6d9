package repositories

import (
	"context"

	"github.com/satriahrh/voicerelay/domain"
)

// Transcript is the recognized text of an utterance.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	// Unscored is set when the provider reported no confidence at all.
	Unscored bool `json:"unscored,omitempty"`
}

// Transcriber abstracts speech recognition services
type Transcriber interface {
	Transcribe(ctx context.Context, audio *domain.NormalizedAudio) (*Transcript, error)
}
