package codec

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voicerelay/domain"
	"github.com/satriahrh/voicerelay/internal/audio"
)

func TestNativeDecoderWAV(t *testing.T) {
	samples := make([]int16, 32000)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}
	wav, err := audio.EncodeWAV(samples, 16000, 2)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	dec := NewNativeDecoder(zaptest.NewLogger(t))
	for _, hint := range []domain.AudioFormat{domain.FormatWAV, domain.FormatUnknown} {
		out, err := dec.Decode(context.Background(), wav, hint)
		if err != nil {
			t.Fatalf("Decode(%s) failed: %v", hint, err)
		}
		if out.SampleRate != 16000 || out.Channels != 2 || len(out.Samples) != len(samples) {
			t.Errorf("Decode(%s) unexpected output: rate=%d channels=%d samples=%d",
				hint, out.SampleRate, out.Channels, len(out.Samples))
		}
	}
}

func TestNativeDecoderRejects(t *testing.T) {
	dec := NewNativeDecoder(zaptest.NewLogger(t))

	tests := []struct {
		name string
		hint domain.AudioFormat
		data []byte
	}{
		{"webm", domain.FormatWebM, []byte{0x1A, 0x45, 0xDF, 0xA3, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"unknown bytes", domain.FormatUnknown, make([]byte, 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := dec.Decode(context.Background(), tt.data, tt.hint); err == nil {
				t.Error("Expected decode error")
			}
		})
	}
}

func TestFFmpegArgs(t *testing.T) {
	got := ffmpegArgs(domain.FormatWebM, "pipe:0", 16000)
	want := []string{"-hide_banner", "-loglevel", "error", "-f", "matroska",
		"-i", "pipe:0", "-ac", "1", "-ar", "16000", "-f", "s16le", "pipe:1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ffmpegArgs() = %v, want %v", got, want)
	}

	probe := ffmpegArgs(domain.FormatUnknown, "pipe:0", 16000)
	if probe[3] != "-i" {
		t.Errorf("Unknown format should let ffmpeg probe, got %v", probe)
	}
}

func TestStageInput(t *testing.T) {
	input, cleanup, err := stageInput([]byte("webm"), domain.FormatWebM)
	if err != nil {
		t.Fatalf("stageInput failed: %v", err)
	}
	cleanup()
	if input != "pipe:0" {
		t.Errorf("Streamable formats should use stdin, got %q", input)
	}

	data := []byte("\x00\x00\x00\x20ftypisom mdat then moov")
	input, cleanup, err = stageInput(data, domain.FormatMP4)
	if err != nil {
		t.Fatalf("stageInput failed: %v", err)
	}
	if input == "pipe:0" {
		t.Fatal("MP4 must be staged to a seekable file")
	}
	got, err := os.ReadFile(input)
	if err != nil {
		t.Fatalf("Staged file unreadable: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Staged file content = %q, want %q", got, data)
	}

	args := ffmpegArgs(domain.FormatMP4, input, 16000)
	if args[5] != "-i" || args[6] != input {
		t.Errorf("Expected ffmpeg to read %s, got %v", input, args)
	}

	cleanup()
	if _, err := os.Stat(input); !os.IsNotExist(err) {
		t.Errorf("Staged file should be removed, stat err = %v", err)
	}
}

func TestFFmpegDecoderWAV(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	dec, err := NewFFmpegDecoder(FFmpegConfig{}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewFFmpegDecoder failed: %v", err)
	}

	wav, _ := audio.EncodeWAV(make([]int16, 8000*2), 8000, 2)
	out, err := dec.Decode(context.Background(), wav, domain.FormatWAV)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out.SampleRate != 16000 || out.Channels != 1 {
		t.Errorf("Expected 16 kHz mono, got %d Hz x%d", out.SampleRate, out.Channels)
	}
}

func TestNewDecoderModes(t *testing.T) {
	logger := zaptest.NewLogger(t)

	none, err := NewDecoder(ModeNone, FFmpegConfig{}, logger)
	if err != nil || none != nil {
		t.Errorf("ModeNone should yield a nil decoder, got %v, %v", none, err)
	}

	native, err := NewDecoder(ModeNative, FFmpegConfig{}, logger)
	if err != nil {
		t.Fatalf("ModeNative failed: %v", err)
	}
	if _, ok := native.(*NativeDecoder); !ok {
		t.Errorf("Expected *NativeDecoder, got %T", native)
	}

	auto, err := NewDecoder(ModeAuto, FFmpegConfig{Path: "definitely-not-ffmpeg-binary"}, logger)
	if err != nil {
		t.Fatalf("ModeAuto should fall back, got %v", err)
	}
	if _, ok := auto.(*NativeDecoder); !ok {
		t.Errorf("Expected native fallback, got %T", auto)
	}

	if _, err := NewDecoder("bogus", FFmpegConfig{}, logger); err == nil {
		t.Error("Expected error for unknown mode")
	}
}
