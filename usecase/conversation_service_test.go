package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voicerelay/domain"
	"github.com/satriahrh/voicerelay/domain/entities"
	"github.com/satriahrh/voicerelay/domain/repositories"
)

type fakeDirectory struct {
	mu       sync.Mutex
	sessions map[string]*entities.Session
	sent     []domain.OutboundMessage
}

func newFakeDirectory(ids ...string) *fakeDirectory {
	d := &fakeDirectory{sessions: map[string]*entities.Session{}}
	for _, id := range ids {
		d.sessions[id] = entities.NewSession(id, "", entities.DefaultHistoryLimit)
	}
	return d
}

func (d *fakeDirectory) Session(id string) (*entities.Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[id]
	return s, ok
}

func (d *fakeDirectory) Deliver(id string, msg domain.OutboundMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sessions[id]; !ok {
		return
	}
	d.sent = append(d.sent, msg)
}

func (d *fakeDirectory) kinds() []domain.OutboundKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.OutboundKind, len(d.sent))
	for i, m := range d.sent {
		out[i] = m.Kind
	}
	return out
}

type fakeNormalizer struct {
	out   *domain.NormalizedAudio
	err   error
	calls int
}

func (f *fakeNormalizer) Normalize(_ context.Context, data []byte, _ domain.AudioFormat) (*domain.NormalizedAudio, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return &domain.NormalizedAudio{Data: data, SampleRate: 16000, Channels: 1, BitDepth: 16}, nil
}

type fakeTranscriber struct {
	transcript *repositories.Transcript
	err        error
	calls      int
}

func (f *fakeTranscriber) Transcribe(context.Context, *domain.NormalizedAudio) (*repositories.Transcript, error) {
	f.calls++
	return f.transcript, f.err
}

type fakeResponder struct {
	reply       string
	err         error
	calls       int
	lastHistory []entities.Turn
}

func (f *fakeResponder) Respond(_ context.Context, text string, history []entities.Turn) (string, error) {
	f.calls++
	f.lastHistory = history
	if f.err != nil {
		return "", f.err
	}
	if f.reply != "" {
		return f.reply, nil
	}
	return "reply to " + text, nil
}

type fakeSynthesizer struct {
	audio []byte
	err   error
	calls int
}

func (f *fakeSynthesizer) Synthesize(context.Context, string) ([]byte, error) {
	f.calls++
	return f.audio, f.err
}

type harness struct {
	dir         *fakeDirectory
	normalizer  *fakeNormalizer
	transcriber *fakeTranscriber
	responder   *fakeResponder
	synthesizer *fakeSynthesizer
	service     *ConversationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	h := &harness{
		dir:         newFakeDirectory("s1"),
		normalizer:  &fakeNormalizer{},
		transcriber: &fakeTranscriber{transcript: &repositories.Transcript{Text: "merhaba", Confidence: 0.9}},
		responder:   &fakeResponder{},
		synthesizer: &fakeSynthesizer{audio: []byte{0xFF, 0xFB, 0x90}},
	}
	h.service = NewConversationService(ConversationConfig{}, h.normalizer, h.transcriber,
		NewChatService(h.responder, logger), h.synthesizer, h.dir, logger)
	return h
}

func audioMsg() domain.InboundMessage {
	return domain.InboundMessage{Kind: domain.InboundAudio, Audio: make([]byte, 4096)}
}

func assertKinds(t *testing.T, got []domain.OutboundKind, want ...domain.OutboundKind) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
}

func TestAudioRunOrdering(t *testing.T) {
	h := newHarness(t)

	h.service.Handle(context.Background(), "s1", audioMsg())

	assertKinds(t, h.dir.kinds(),
		domain.OutboundStatus, domain.OutboundTranscription,
		domain.OutboundStatus, domain.OutboundAIResponse,
		domain.OutboundStatus, domain.OutboundAudio)

	sent := h.dir.sent
	if sent[0].Stage != domain.StageProcessing || sent[2].Stage != domain.StageGenerating || sent[4].Stage != domain.StageSynthesizing {
		t.Errorf("Unexpected stages %q %q %q", sent[0].Stage, sent[2].Stage, sent[4].Stage)
	}
	if sent[1].Text != "merhaba" {
		t.Errorf("Expected transcription 'merhaba', got %q", sent[1].Text)
	}
	if sent[5].Text != "reply to merhaba" || len(sent[5].Audio) != 3 {
		t.Errorf("Unexpected audio result %+v", sent[5])
	}
}

func TestConversationContextGrowsPerRun(t *testing.T) {
	h := newHarness(t)
	session, _ := h.dir.Session("s1")

	for i := 1; i <= 7; i++ {
		h.service.Handle(context.Background(), "s1", domain.InboundMessage{Kind: domain.InboundTextProbe, Text: fmt.Sprintf("q%d", i)})
		want := 2 * i
		if want > 10 {
			want = 10
		}
		if got := session.Conversation().Len(); got != want {
			t.Fatalf("After run %d expected %d turns, got %d", i, want, got)
		}
	}

	// the responder saw the prior turns, oldest first
	if len(h.responder.lastHistory) != 10 || h.responder.lastHistory[0].Content != "q2" {
		t.Errorf("Unexpected history passed to responder: %d turns", len(h.responder.lastHistory))
	}
}

func TestNormalizationFailure(t *testing.T) {
	h := newHarness(t)
	h.normalizer.err = &domain.NormalizationFailure{Kind: domain.TooSmall}

	h.service.Handle(context.Background(), "s1", audioMsg())

	assertKinds(t, h.dir.kinds(), domain.OutboundStatus, domain.OutboundError)
	if h.transcriber.calls != 0 || h.responder.calls != 0 {
		t.Error("No remote call should follow a normalization failure")
	}
}

func TestTranscriptionTimeout(t *testing.T) {
	h := newHarness(t)
	h.transcriber.transcript = nil
	h.transcriber.err = domain.NewRemoteFailure("transcription", domain.RemoteTimeout, context.DeadlineExceeded)

	h.service.Handle(context.Background(), "s1", audioMsg())

	kinds := h.dir.kinds()
	assertKinds(t, kinds, domain.OutboundStatus, domain.OutboundError)
	if !strings.Contains(h.dir.sent[1].Message, "unavailable") {
		t.Errorf("Expected technical unavailability message, got %q", h.dir.sent[1].Message)
	}
	session, _ := h.dir.Session("s1")
	if session.Conversation().Len() != 0 {
		t.Error("Failed run must not touch the conversation context")
	}
}

func TestTranscriptSoftFailures(t *testing.T) {
	tests := []struct {
		name       string
		transcript *repositories.Transcript
		want       string
	}{
		{"low confidence", &repositories.Transcript{Text: "mumble", Confidence: 0.05}, "Poor audio quality, please try again"},
		{"empty transcript", &repositories.Transcript{Text: "", Confidence: 0.9}, "No speech detected, please try again"},
		{"silence", &repositories.Transcript{}, "No speech detected, please try again"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.transcriber.transcript = tt.transcript

			h.service.Handle(context.Background(), "s1", audioMsg())

			assertKinds(t, h.dir.kinds(), domain.OutboundStatus, domain.OutboundError)
			if h.dir.sent[1].Message != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, h.dir.sent[1].Message)
			}
			if h.responder.calls != 0 {
				t.Error("Responder must not run after a soft transcription failure")
			}
		})
	}
}

func TestUnscoredTranscriptSkipsConfidenceFloor(t *testing.T) {
	h := newHarness(t)
	h.transcriber.transcript = &repositories.Transcript{Text: "merhaba", Unscored: true}

	h.service.Handle(context.Background(), "s1", audioMsg())

	assertKinds(t, h.dir.kinds(),
		domain.OutboundStatus, domain.OutboundTranscription,
		domain.OutboundStatus, domain.OutboundAIResponse,
		domain.OutboundStatus, domain.OutboundAudio)
	if h.responder.calls != 1 {
		t.Errorf("Expected one generation call, got %d", h.responder.calls)
	}
}

func TestGenerationFailure(t *testing.T) {
	h := newHarness(t)
	h.responder.err = errors.New("quota exceeded")

	h.service.Handle(context.Background(), "s1", audioMsg())

	assertKinds(t, h.dir.kinds(),
		domain.OutboundStatus, domain.OutboundTranscription,
		domain.OutboundStatus, domain.OutboundError)
	if h.synthesizer.calls != 0 {
		t.Error("Synthesizer must not run after a generation failure")
	}
	session, _ := h.dir.Session("s1")
	if session.Conversation().Len() != 0 {
		t.Error("Context must only grow after a successful generation")
	}
}

func TestSynthesisFailureDoesNotResendText(t *testing.T) {
	h := newHarness(t)
	h.synthesizer.err = domain.NewRemoteFailure("speech synthesis", domain.RemoteServerError, errors.New("503"))

	h.service.Handle(context.Background(), "s1", audioMsg())

	assertKinds(t, h.dir.kinds(),
		domain.OutboundStatus, domain.OutboundTranscription,
		domain.OutboundStatus, domain.OutboundAIResponse,
		domain.OutboundStatus, domain.OutboundError)

	aiResponses := 0
	for _, k := range h.dir.kinds() {
		if k == domain.OutboundAIResponse {
			aiResponses++
		}
	}
	if aiResponses != 1 {
		t.Errorf("Expected exactly one ai_response, got %d", aiResponses)
	}
	session, _ := h.dir.Session("s1")
	if session.Conversation().Len() != 2 {
		t.Error("Generation succeeded, so the exchange stays in context")
	}
}

func TestTextProbeEntersAtGenerating(t *testing.T) {
	h := newHarness(t)

	h.service.Handle(context.Background(), "s1", domain.InboundMessage{Kind: domain.InboundTextProbe, Text: "hello"})

	assertKinds(t, h.dir.kinds(),
		domain.OutboundStatus, domain.OutboundAIResponse,
		domain.OutboundStatus, domain.OutboundAudio)
	if h.normalizer.calls != 0 || h.transcriber.calls != 0 {
		t.Error("Text probe must skip normalization and transcription")
	}
}

func TestPingProducesSinglePong(t *testing.T) {
	h := newHarness(t)

	h.service.Handle(context.Background(), "s1", domain.InboundMessage{Kind: domain.InboundPing})

	assertKinds(t, h.dir.kinds(), domain.OutboundPong)
	if h.normalizer.calls+h.transcriber.calls+h.responder.calls+h.synthesizer.calls != 0 {
		t.Error("Ping must not touch the pipeline")
	}
}

func TestUnknownKindIsProtocolError(t *testing.T) {
	h := newHarness(t)

	h.service.Handle(context.Background(), "s1", domain.InboundMessage{Kind: "dance"})

	assertKinds(t, h.dir.kinds(), domain.OutboundError)
}

func TestRunForMissingSessionIsSilent(t *testing.T) {
	h := newHarness(t)

	h.service.Handle(context.Background(), "gone", audioMsg())

	if len(h.dir.kinds()) != 0 || h.normalizer.calls != 0 {
		t.Error("Nothing should run for a session that no longer exists")
	}
}

func TestRunDropsOutputAfterTerminalState(t *testing.T) {
	var got []domain.OutboundMessage
	r := newRun("audio", "s1", func(m domain.OutboundMessage) { got = append(got, m) }, zaptest.NewLogger(t))

	if err := r.advance(StateNormalizing); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	r.fail(&domain.NormalizationFailure{Kind: domain.DecodeError})
	r.emit(domain.NewStatus(domain.StageGenerating))
	r.fail(errors.New("second failure"))

	if len(got) != 1 || got[0].Kind != domain.OutboundError {
		t.Errorf("Expected a single error notice, got %+v", got)
	}
	if r.state != StateFailed {
		t.Errorf("Expected failed state, got %s", r.state)
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateNormalizing, true},
		{StateIdle, StateGenerating, true},
		{StateIdle, StateFailed, false},
		{StateNormalizing, StateGenerating, false},
		{StateTranscribing, StateFailed, true},
		{StateSynthesizing, StateDone, true},
		{StateDone, StateFailed, false},
		{StateFailed, StateIdle, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition() = %v, want %v", got, tt.want)
			}
		})
	}
}
