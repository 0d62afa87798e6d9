package codec

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/voicerelay/domain"
	"github.com/satriahrh/voicerelay/domain/repositories"
)

// ErrFFmpegNotFound is returned when the ffmpeg binary is not on PATH.
var ErrFFmpegNotFound = errors.New("ffmpeg is required for container decoding (install ffmpeg and ensure it is in PATH)")

// FFmpegConfig holds ffmpeg decoder settings
type FFmpegConfig struct {
	Path       string
	SampleRate int
}

// FFmpegDecoder pipes audio through an ffmpeg subprocess and reads back mono
// s16le PCM at the configured rate.
type FFmpegDecoder struct {
	path       string
	sampleRate int
	logger     *zap.Logger
}

var _ repositories.AudioDecoder = (*FFmpegDecoder)(nil)

// inputFormats maps a sniffed container to the ffmpeg demuxer name.
var inputFormats = map[domain.AudioFormat]string{
	domain.FormatWebM: "matroska",
	domain.FormatMP4:  "mov",
	domain.FormatWAV:  "wav",
	domain.FormatOgg:  "ogg",
	domain.FormatMP3:  "mp3",
}

// seekableInputs lists containers whose demuxer may need to seek, e.g. an
// MP4 with its moov atom at the end. Those are staged to a temp file.
var seekableInputs = map[domain.AudioFormat]bool{
	domain.FormatMP4: true,
}

// NewFFmpegDecoder resolves the ffmpeg binary and returns a decoder.
func NewFFmpegDecoder(config FFmpegConfig, logger *zap.Logger) (*FFmpegDecoder, error) {
	if config.Path == "" {
		config.Path = "ffmpeg"
	}
	if config.SampleRate <= 0 {
		config.SampleRate = domain.TargetSampleRate
	}
	path, err := exec.LookPath(config.Path)
	if err != nil {
		return nil, ErrFFmpegNotFound
	}

	logger.Info("FFmpeg decoder initialized",
		zap.String("path", path),
		zap.Int("sampleRate", config.SampleRate))

	return &FFmpegDecoder{path: path, sampleRate: config.SampleRate, logger: logger}, nil
}

// ffmpegArgs builds the command line. An unknown hint lets ffmpeg probe the input.
func ffmpegArgs(hint domain.AudioFormat, input string, sampleRate int) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if f, ok := inputFormats[hint]; ok {
		args = append(args, "-f", f)
	}
	return append(args,
		"-i", input,
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
		"pipe:1",
	)
}

// stageInput returns the ffmpeg input for data. Seekable containers are written
// to a temp file; cleanup removes it.
func stageInput(data []byte, hint domain.AudioFormat) (input string, cleanup func(), err error) {
	if !seekableInputs[hint] {
		return "pipe:0", func() {}, nil
	}

	f, err := os.CreateTemp("", "voicerelay-*."+string(hint))
	if err != nil {
		return "", nil, fmt.Errorf("create temp input: %w", err)
	}
	cleanup = func() { os.Remove(f.Name()) }

	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp input: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp input: %w", err)
	}
	return f.Name(), cleanup, nil
}

func (d *FFmpegDecoder) Decode(ctx context.Context, data []byte, hint domain.AudioFormat) (*domain.DecodedAudio, error) {
	input, cleanup, err := stageInput(data, hint)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	cmd := exec.CommandContext(ctx, d.path, ffmpegArgs(hint, input, d.sampleRate)...)
	var stdout, stderr bytes.Buffer
	if input == "pipe:0" {
		cmd.Stdin = bytes.NewReader(data)
	}
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("ffmpeg decode: %w", ctxErr)
		}
		return nil, fmt.Errorf("ffmpeg decode %s: %w: %s", hint, err, strings.TrimSpace(stderr.String()))
	}

	pcm := stdout.Bytes()
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}

	d.logger.Debug("FFmpeg decoded audio",
		zap.String("hint", string(hint)),
		zap.Int("inputBytes", len(data)),
		zap.Int("samples", len(samples)))

	return &domain.DecodedAudio{Samples: samples, SampleRate: d.sampleRate, Channels: 1}, nil
}
