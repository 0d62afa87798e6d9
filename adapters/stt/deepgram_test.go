package stt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voicerelay/domain"
)

func newTestDeepgram(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *DeepgramTranscriber {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	d, err := NewDeepgramTranscriber(DeepgramConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: timeout,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewDeepgramTranscriber failed: %v", err)
	}
	return d
}

func remoteKind(t *testing.T, err error) domain.RemoteKind {
	t.Helper()
	var rf *domain.RemoteFailure
	if !errors.As(err, &rf) {
		t.Fatalf("Expected RemoteFailure, got %v", err)
	}
	return rf.Kind
}

func TestDeepgramTranscribe(t *testing.T) {
	var gotAuth, gotQuery, gotType string
	var gotBody []byte
	d := newTestDeepgram(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotQuery = r.URL.RawQuery
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":" merhaba dünya ","confidence":0.97}]}]}}`))
	}, time.Second)

	transcript, err := d.Transcribe(context.Background(), &domain.NormalizedAudio{Data: []byte("RIFFdata")})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if transcript.Text != "merhaba dünya" || transcript.Confidence != 0.97 {
		t.Errorf("Unexpected transcript %+v", transcript)
	}
	if gotAuth != "Token test-key" {
		t.Errorf("Expected token auth header, got %q", gotAuth)
	}
	if gotType != "audio/wav" {
		t.Errorf("Expected audio/wav, got %q", gotType)
	}
	if !strings.Contains(gotQuery, "model=nova-2") || !strings.Contains(gotQuery, "language=tr") {
		t.Errorf("Missing model or language in query %q", gotQuery)
	}
	if string(gotBody) != "RIFFdata" {
		t.Errorf("Expected body to be forwarded, got %q", gotBody)
	}
}

func TestDeepgramFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    domain.RemoteKind
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			want: domain.RemoteServerError,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			want: domain.RemoteTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeepgram(t, tt.handler, 100*time.Millisecond)
			_, err := d.Transcribe(context.Background(), &domain.NormalizedAudio{Data: []byte("x")})
			if kind := remoteKind(t, err); kind != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, kind)
			}
		})
	}
}

func TestDeepgramSilenceYieldsEmptyTranscript(t *testing.T) {
	for _, body := range []string{
		`{"results":{"channels":[]}}`,
		`{"results":{"channels":[{"alternatives":[]}]}}`,
	} {
		d := newTestDeepgram(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}, time.Second)

		transcript, err := d.Transcribe(context.Background(), &domain.NormalizedAudio{Data: []byte("x")})
		if err != nil {
			t.Fatalf("Transcribe(%s) failed: %v", body, err)
		}
		if transcript.Text != "" {
			t.Errorf("Expected empty transcript, got %q", transcript.Text)
		}
	}
}

func TestDeepgramConnectionError(t *testing.T) {
	d, err := NewDeepgramTranscriber(DeepgramConfig{APIKey: "k", BaseURL: "http://127.0.0.1:1"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewDeepgramTranscriber failed: %v", err)
	}
	_, err = d.Transcribe(context.Background(), &domain.NormalizedAudio{Data: []byte("x")})
	if kind := remoteKind(t, err); kind != domain.RemoteConnectionError {
		t.Errorf("Expected connection error, got %s", kind)
	}
}

func TestValidateDeepgramConfig(t *testing.T) {
	if err := ValidateDeepgramConfig(DeepgramConfig{}); err == nil {
		t.Error("Expected error for missing API key")
	}
	if err := ValidateDeepgramConfig(DeepgramConfig{APIKey: "k"}); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
