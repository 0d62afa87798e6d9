package codec

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"go.uber.org/zap"

	"github.com/satriahrh/voicerelay/domain"
	"github.com/satriahrh/voicerelay/domain/repositories"
	"github.com/satriahrh/voicerelay/internal/audio"
)

// NativeDecoder decodes WAV and MP3 in process. Other containers need ffmpeg.
type NativeDecoder struct {
	logger *zap.Logger
}

var _ repositories.AudioDecoder = (*NativeDecoder)(nil)

func NewNativeDecoder(logger *zap.Logger) *NativeDecoder {
	return &NativeDecoder{logger: logger}
}

func (d *NativeDecoder) Decode(ctx context.Context, data []byte, hint domain.AudioFormat) (*domain.DecodedAudio, error) {
	format := hint
	if format == domain.FormatUnknown {
		format = audio.Detect(data)
	}

	switch format {
	case domain.FormatWAV:
		samples, info, err := audio.DecodeWAV(data)
		if err != nil {
			return nil, fmt.Errorf("decode wav: %w", err)
		}
		return &domain.DecodedAudio{Samples: samples, SampleRate: info.SampleRate, Channels: info.Channels}, nil
	case domain.FormatMP3:
		return d.decodeMP3(ctx, data)
	default:
		return nil, fmt.Errorf("native decoder cannot handle %s audio", format)
	}
}

func (d *NativeDecoder) decodeMP3(ctx context.Context, data []byte) (*domain.DecodedAudio, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open mp3: %w", err)
	}

	var raw bytes.Buffer
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := dec.Read(buf)
		raw.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode mp3: %w", err)
		}
	}

	// go-mp3 always yields 16-bit little endian stereo
	pcm := raw.Bytes()
	samples := make([]int16, len(pcm)/4*2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}

	d.logger.Debug("Decoded mp3",
		zap.Int("sampleRate", dec.SampleRate()),
		zap.Int("samples", len(samples)))

	return &domain.DecodedAudio{Samples: samples, SampleRate: dec.SampleRate(), Channels: 2}, nil
}
