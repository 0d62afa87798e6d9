package speech

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicerelay/domain"
	"github.com/satriahrh/voicerelay/domain/repositories"
	"github.com/satriahrh/voicerelay/internal/audio"
)

// MockSpeechToText is a placeholder implementation for speech recognition
type MockSpeechToText struct {
	logger *zap.Logger
}

var _ repositories.Transcriber = (*MockSpeechToText)(nil)

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

// Transcribe picks a canned sentence from the utterance length
func (s *MockSpeechToText) Transcribe(ctx context.Context, in *domain.NormalizedAudio) (*repositories.Transcript, error) {
	s.logger.Info("Processing mock speech-to-text",
		zap.Int("audioSize", len(in.Data)),
		zap.Duration("duration", in.Duration))

	switch {
	case in.Duration > 3*time.Second:
		return &repositories.Transcript{Text: "Hello there, I would like to tell you about my day.", Confidence: 0.93}, nil
	case in.Duration > time.Second:
		return &repositories.Transcript{Text: "Thanks for listening.", Confidence: 0.91}, nil
	default:
		return &repositories.Transcript{Text: "Hello!", Confidence: 0.88}, nil
	}
}

// MockTextToSpeech is a placeholder implementation for text-to-speech
type MockTextToSpeech struct {
	logger *zap.Logger
}

var _ repositories.Synthesizer = (*MockTextToSpeech)(nil)

// NewMockTextToSpeech creates a new mock text-to-speech service
func NewMockTextToSpeech(logger *zap.Logger) *MockTextToSpeech {
	return &MockTextToSpeech{
		logger: logger,
	}
}

// Synthesize renders a short tone whose length follows the word count
func (t *MockTextToSpeech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	const rate = domain.TargetSampleRate
	samples := make([]int16, words*rate/4)
	for i := range samples {
		samples[i] = int16(3000 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}

	t.logger.Info("Processing mock text-to-speech",
		zap.Int("textLength", len(text)),
		zap.Int("samples", len(samples)))

	return audio.EncodeWAV(samples, rate, 1)
}
