package codec

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/voicerelay/domain/repositories"
)

// Decoder selection modes.
const (
	ModeAuto   = "auto"
	ModeFFmpeg = "ffmpeg"
	ModeNative = "native"
	ModeNone   = "none"
)

// NewDecoder builds the decoder named by mode. ModeNone yields a nil decoder,
// which restricts normalization to WAV pass-through.
func NewDecoder(mode string, config FFmpegConfig, logger *zap.Logger) (repositories.AudioDecoder, error) {
	switch mode {
	case ModeNone:
		logger.Warn("Audio decoding disabled, only WAV input will be accepted")
		return nil, nil
	case ModeNative:
		return NewNativeDecoder(logger), nil
	case ModeFFmpeg:
		return NewFFmpegDecoder(config, logger)
	case ModeAuto, "":
		dec, err := NewFFmpegDecoder(config, logger)
		if errors.Is(err, ErrFFmpegNotFound) {
			logger.Warn("ffmpeg not found, falling back to native WAV/MP3 decoder")
			return NewNativeDecoder(logger), nil
		}
		return dec, err
	default:
		return nil, fmt.Errorf("unknown audio decoder %q", mode)
	}
}
