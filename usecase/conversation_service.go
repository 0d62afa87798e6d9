package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/satriahrh/voicerelay/domain"
	"github.com/satriahrh/voicerelay/domain/entities"
	"github.com/satriahrh/voicerelay/domain/repositories"
	"github.com/satriahrh/voicerelay/internal/audio"
)

// DefaultMinConfidence is the transcript confidence floor.
const DefaultMinConfidence = 0.1

// AudioNormalizer converts raw client audio to the canonical shape.
type AudioNormalizer interface {
	Normalize(ctx context.Context, data []byte, format domain.AudioFormat) (*domain.NormalizedAudio, error)
}

// SessionDirectory looks up live sessions and delivers messages to them.
type SessionDirectory interface {
	Session(id string) (*entities.Session, bool)
	Deliver(id string, msg domain.OutboundMessage)
}

// ConversationService orchestrates the conversation flow
type ConversationService struct {
	normalizer    AudioNormalizer
	transcriber   repositories.Transcriber
	chatService   *ChatService
	synthesizer   repositories.Synthesizer
	sessions      SessionDirectory
	minConfidence float64
	logger        *zap.Logger
}

// ConversationConfig holds orchestrator policy
type ConversationConfig struct {
	MinConfidence float64
}

// NewConversationService creates a new conversation service
func NewConversationService(
	config ConversationConfig,
	normalizer AudioNormalizer,
	stt repositories.Transcriber,
	chatService *ChatService,
	tts repositories.Synthesizer,
	sessions SessionDirectory,
	logger *zap.Logger,
) *ConversationService {
	if config.MinConfidence <= 0 {
		config.MinConfidence = DefaultMinConfidence
	}
	return &ConversationService{
		normalizer:    normalizer,
		transcriber:   stt,
		chatService:   chatService,
		synthesizer:   tts,
		sessions:      sessions,
		minConfidence: config.MinConfidence,
		logger:        logger,
	}
}

// Handle processes one inbound message for a session. Callers must not run
// two Handle calls for the same session concurrently, except for pings.
func (s *ConversationService) Handle(ctx context.Context, sessionID string, msg domain.InboundMessage) {
	switch msg.Kind {
	case domain.InboundPing:
		s.sessions.Deliver(sessionID, domain.NewPong())
	case domain.InboundAudio:
		s.processAudio(ctx, sessionID, msg.Audio)
	case domain.InboundTextProbe:
		s.processText(ctx, sessionID, msg.Text)
	default:
		err := &domain.ProtocolError{Reason: "Unsupported message type: " + string(msg.Kind)}
		s.sessions.Deliver(sessionID, domain.NewErrorNotice(err.UserMessage()))
	}
}

func (s *ConversationService) deliverTo(sessionID string) func(domain.OutboundMessage) {
	return func(msg domain.OutboundMessage) {
		s.sessions.Deliver(sessionID, msg)
	}
}

// processAudio runs Idle -> Normalizing -> Transcribing -> Generating -> Synthesizing -> Done
func (s *ConversationService) processAudio(ctx context.Context, sessionID string, data []byte) {
	session, ok := s.sessions.Session(sessionID)
	if !ok {
		s.logger.Debug("Session gone before audio run started", zap.String("sessionID", sessionID))
		return
	}
	r := newRun("audio", sessionID, s.deliverTo(sessionID), s.logger)

	if r.advance(StateNormalizing) != nil {
		return
	}
	r.emit(domain.NewStatus(domain.StageProcessing))

	format := audio.Detect(data)
	r.logger.Info("Processing audio submission",
		zap.Int("bytes", len(data)),
		zap.String("format", string(format)))

	normalized, err := s.normalizer.Normalize(ctx, data, format)
	if err != nil {
		r.fail(err)
		return
	}

	// Transcription shares the "processing" status sent above.
	if r.advance(StateTranscribing) != nil {
		return
	}
	transcript, err := s.transcriber.Transcribe(ctx, normalized)
	if err != nil {
		r.fail(domain.ClassifyRemoteError("transcription", err))
		return
	}
	if transcript.Text == "" {
		r.fail(domain.ErrNoSpeech)
		return
	}
	if !transcript.Unscored && transcript.Confidence < s.minConfidence {
		r.fail(&domain.LowConfidenceError{Transcript: transcript.Text, Confidence: transcript.Confidence})
		return
	}

	r.logger.Info("Transcription completed",
		zap.String("text", transcript.Text),
		zap.Float64("confidence", transcript.Confidence))
	r.emit(domain.NewTranscription(transcript.Text))

	s.respondAndSpeak(ctx, r, session, transcript.Text)
}

// processText enters the state machine at Generating
func (s *ConversationService) processText(ctx context.Context, sessionID, text string) {
	session, ok := s.sessions.Session(sessionID)
	if !ok {
		s.logger.Debug("Session gone before text run started", zap.String("sessionID", sessionID))
		return
	}
	r := newRun("text", sessionID, s.deliverTo(sessionID), s.logger)
	s.respondAndSpeak(ctx, r, session, text)
}

func (s *ConversationService) respondAndSpeak(ctx context.Context, r *run, session *entities.Session, text string) {
	if r.advance(StateGenerating) != nil {
		return
	}
	r.emit(domain.NewStatus(domain.StageGenerating))

	reply, err := s.chatService.Reply(ctx, session, text)
	if err != nil {
		r.fail(err)
		return
	}
	r.emit(domain.NewAIResponse(reply))

	if r.advance(StateSynthesizing) != nil {
		return
	}
	r.emit(domain.NewStatus(domain.StageSynthesizing))

	speech, err := s.synthesizer.Synthesize(ctx, reply)
	if err != nil {
		r.fail(domain.ClassifyRemoteError("speech synthesis", err))
		return
	}
	if len(speech) == 0 {
		r.fail(domain.NewRemoteFailure("speech synthesis", domain.RemoteEmptyResult, nil))
		return
	}

	r.complete(domain.NewAudioResult(speech, reply))
}
