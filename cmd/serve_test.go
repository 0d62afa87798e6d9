package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicerelay/internal/api"
	"github.com/satriahrh/voicerelay/internal/audio"
	"github.com/satriahrh/voicerelay/internal/config"
	ws "github.com/satriahrh/voicerelay/internal/websocket"
	"github.com/satriahrh/voicerelay/usecase"
)

// startRelay wires the mock providers exactly like runServe does.
func startRelay(t *testing.T) string {
	t.Helper()
	logger := zap.NewNop()

	cfg := config.Default()
	cfg.Transcription.Provider = config.ProviderMock
	cfg.Generation.Provider = config.ProviderMock
	cfg.Synthesis.Provider = config.ProviderMock
	cfg.Audio.Decoder = "native"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config invalid: %v", err)
	}

	providers, err := buildProviders(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("buildProviders failed: %v", err)
	}
	t.Cleanup(providers.Close)

	hub := ws.NewHub(ws.HubConfig{QueueDepth: cfg.Server.QueueDepth, HistoryLimit: cfg.Server.HistoryLimit}, logger)
	chat := usecase.NewChatService(providers.responder, logger)
	hub.SetHandler(usecase.NewConversationService(
		usecase.ConversationConfig{MinConfidence: cfg.Server.MinConfidence},
		providers.normalizer, providers.transcriber, chat, providers.synthesizer, hub, logger))

	e := echo.New()
	api.InitRoutes(e, hub, api.Providers{Health: providers.health, Voices: providers.voices}, logger)

	server := httptest.NewServer(e)
	t.Cleanup(func() {
		hub.Shutdown()
		server.Close()
	})
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/test"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readTypes(t *testing.T, conn *websocket.Conn, n int) []probeFrame {
	t.Helper()
	frames := make([]probeFrame, 0, n)
	for i := 0; i < n; i++ {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var f probeFrame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		frames = append(frames, f)
	}
	return frames
}

func toneWAV(t *testing.T, d time.Duration) []byte {
	t.Helper()
	const rate = 16000
	samples := make([]int16, int(d.Seconds()*rate))
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*300*float64(i)/rate))
	}
	data, err := audio.EncodeWAV(samples, rate, 1)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestRelay_AudioSubmission(t *testing.T) {
	conn := dial(t, startRelay(t))

	err := conn.WriteJSON(map[string]string{
		"type":       "audio_data",
		"audio_data": base64.StdEncoding.EncodeToString(toneWAV(t, 2*time.Second)),
	})
	if err != nil {
		t.Fatal(err)
	}

	frames := readTypes(t, conn, 6)
	want := []string{"status", "transcription", "status", "ai_response", "status", "audio_response"}
	for i, f := range frames {
		if f.Type != want[i] {
			t.Fatalf("frame %d type = %s, want %s (frames %+v)", i, f.Type, want[i], frames)
		}
	}
	if frames[1].Text != "Thanks for listening." {
		t.Errorf("transcription = %q", frames[1].Text)
	}
	if frames[5].AudioData == "" || frames[5].Text != frames[3].Text {
		t.Errorf("audio response incomplete: %+v", frames[5])
	}
}

func TestRelay_TextProbeAndPing(t *testing.T) {
	conn := dial(t, startRelay(t))

	conn.WriteJSON(map[string]string{"type": "test_ai", "text": "Merhaba"})
	frames := readTypes(t, conn, 4)
	want := []string{"status", "ai_response", "status", "audio_response"}
	for i, f := range frames {
		if f.Type != want[i] {
			t.Fatalf("frame %d type = %s, want %s", i, f.Type, want[i])
		}
	}
	if !strings.Contains(frames[1].Text, "Merhaba") {
		t.Errorf("ai_response = %q", frames[1].Text)
	}

	conn.WriteJSON(map[string]string{"type": "ping"})
	if f := readTypes(t, conn, 1)[0]; f.Type != "pong" {
		t.Errorf("expected pong, got %+v", f)
	}
}

func TestRelay_TooSmallAudio(t *testing.T) {
	conn := dial(t, startRelay(t))

	conn.WriteJSON(map[string]string{
		"type":       "audio_data",
		"audio_data": base64.StdEncoding.EncodeToString(make([]byte, 500)),
	})

	frames := readTypes(t, conn, 2)
	if frames[0].Type != "status" || frames[1].Type != "error" {
		t.Fatalf("unexpected frames %+v", frames)
	}
}

func TestProbe_Exchange(t *testing.T) {
	conn := dial(t, startRelay(t))
	probeOpts.timeout = 5 * time.Second

	var out bytes.Buffer
	if err := exchange(conn, &out, map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("ping exchange failed: %v", err)
	}
	if err := exchange(conn, &out, map[string]string{"type": "test_ai", "text": "hello"}); err != nil {
		t.Fatalf("text exchange failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{"[pong] Connection is active", "[status] Generating AI response...", "[audio_response]"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}
