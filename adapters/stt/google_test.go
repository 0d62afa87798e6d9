package stt

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/satriahrh/voicerelay/domain"
)

func TestClassifyGRPC(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.RemoteKind
	}{
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), domain.RemoteTimeout},
		{"unavailable", status.Error(codes.Unavailable, "down"), domain.RemoteConnectionError},
		{"invalid argument", status.Error(codes.InvalidArgument, "bad"), domain.RemoteServerError},
		{"context deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), domain.RemoteTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rf *domain.RemoteFailure
			if !errors.As(classifyGRPC(tt.err), &rf) {
				t.Fatal("Expected RemoteFailure")
			}
			if rf.Kind != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, rf.Kind)
			}
		})
	}
}

func alt(text string, confidence float32) *speechpb.SpeechRecognitionResult {
	return &speechpb.SpeechRecognitionResult{
		Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: text, Confidence: confidence}},
	}
}

func TestCollectResults(t *testing.T) {
	tests := []struct {
		name           string
		results        []*speechpb.SpeechRecognitionResult
		wantText       string
		wantConfidence float64
		wantUnscored   bool
	}{
		{"silence", nil, "", 0, false},
		{"no alternatives", []*speechpb.SpeechRecognitionResult{{}}, "", 0, false},
		{"scored", []*speechpb.SpeechRecognitionResult{alt("merhaba ", 0.8), alt(" dünya", 0.6)}, "merhaba dünya", 0.7, false},
		{"zero confidence ignored", []*speechpb.SpeechRecognitionResult{alt("merhaba", 0.9), alt("dünya", 0)}, "merhaba dünya", 0.9, false},
		{"all unscored", []*speechpb.SpeechRecognitionResult{alt("merhaba", 0)}, "merhaba", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collectResults(tt.results)
			if got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
			if diff := got.Confidence - tt.wantConfidence; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("Confidence = %f, want %f", got.Confidence, tt.wantConfidence)
			}
			if got.Unscored != tt.wantUnscored {
				t.Errorf("Unscored = %v, want %v", got.Unscored, tt.wantUnscored)
			}
		})
	}
}
