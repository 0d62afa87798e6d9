package audio

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicerelay/domain"
	"github.com/satriahrh/voicerelay/domain/repositories"
)

// NormalizerConfig holds the thresholds of the normalization pipeline.
type NormalizerConfig struct {
	MinBytes      int
	MinDuration   time.Duration
	SampleRate    int
	DecodeTimeout time.Duration
	Loudness      LoudnessPolicy
}

// DefaultNormalizerConfig returns the thresholds used in production.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		MinBytes:      1000,
		MinDuration:   500 * time.Millisecond,
		SampleRate:    domain.TargetSampleRate,
		DecodeTimeout: 30 * time.Second,
		Loudness: LoudnessPolicy{
			QuietRMS:  500,
			BoostRMS:  1000,
			BoostGain: 6,
		},
	}
}

// Normalizer converts client audio to 16 kHz mono 16-bit WAV.
type Normalizer struct {
	config  NormalizerConfig
	decoder repositories.AudioDecoder
	logger  *zap.Logger
}

// NewNormalizer creates a normalizer. A nil decoder limits the normalizer to
// passing WAV input through untouched.
func NewNormalizer(config NormalizerConfig, decoder repositories.AudioDecoder, logger *zap.Logger) *Normalizer {
	defaults := DefaultNormalizerConfig()
	if config.MinBytes <= 0 {
		config.MinBytes = defaults.MinBytes
	}
	if config.MinDuration <= 0 {
		config.MinDuration = defaults.MinDuration
	}
	if config.SampleRate <= 0 {
		config.SampleRate = defaults.SampleRate
	}
	if config.DecodeTimeout <= 0 {
		config.DecodeTimeout = defaults.DecodeTimeout
	}
	if config.Loudness == (LoudnessPolicy{}) {
		config.Loudness = defaults.Loudness
	}
	return &Normalizer{config: config, decoder: decoder, logger: logger}
}

// Normalize turns data of the detected format into canonical audio.
func (n *Normalizer) Normalize(ctx context.Context, data []byte, format domain.AudioFormat) (*domain.NormalizedAudio, error) {
	if len(data) < n.config.MinBytes {
		return nil, &domain.NormalizationFailure{Kind: domain.TooSmall, Format: format}
	}

	if n.decoder == nil {
		if format == domain.FormatWAV {
			n.logger.Debug("No decoder available, passing WAV through", zap.Int("bytes", len(data)))
			return passthrough(data), nil
		}
		return nil, &domain.NormalizationFailure{Kind: domain.UnsupportedFormat, Format: format}
	}

	samples, decodeErr := n.decode(ctx, data, format)
	if decodeErr != nil {
		var nf *domain.NormalizationFailure
		if errors.As(decodeErr, &nf) {
			return nil, nf
		}
		if format == domain.FormatWAV {
			n.logger.Warn("Decoding WAV failed, falling back to original bytes",
				zap.Int("bytes", len(data)),
				zap.Error(decodeErr))
			return passthrough(data), nil
		}
		return nil, &domain.NormalizationFailure{Kind: domain.DecodeError, Format: format, Err: decodeErr}
	}

	rms := EnsureLoudness(samples, n.config.Loudness)

	wav, err := EncodeWAV(samples, n.config.SampleRate, domain.TargetChannels)
	if err != nil {
		return nil, &domain.NormalizationFailure{Kind: domain.DecodeError, Format: format, Err: err}
	}

	duration := time.Duration(len(samples)) * time.Second / time.Duration(n.config.SampleRate)
	n.logger.Debug("Audio normalized",
		zap.String("format", string(format)),
		zap.Int("inputBytes", len(data)),
		zap.Int("outputBytes", len(wav)),
		zap.Duration("duration", duration),
		zap.Float64("rms", rms))

	return &domain.NormalizedAudio{
		Data:       wav,
		SampleRate: n.config.SampleRate,
		Channels:   domain.TargetChannels,
		BitDepth:   domain.TargetBitDepth,
		Duration:   duration,
	}, nil
}

// decode returns canonical mono samples, or a TooShort failure for audio
// under the minimum duration.
func (n *Normalizer) decode(ctx context.Context, data []byte, format domain.AudioFormat) ([]int16, error) {
	dctx, cancel := context.WithTimeout(ctx, n.config.DecodeTimeout)
	defer cancel()

	decoded, err := n.decoder.Decode(dctx, data, format)
	if err != nil {
		return nil, err
	}
	if decoded == nil || decoded.SampleRate <= 0 || decoded.Channels <= 0 {
		return nil, errors.New("decoder returned no audio")
	}

	if d := decoded.Duration(); d < n.config.MinDuration {
		return nil, &domain.NormalizationFailure{
			Kind:   domain.TooShort,
			Format: format,
			Err:    errors.New("decoded " + d.String()),
		}
	}

	return ToCanonical(decoded.Samples, decoded.Channels, decoded.SampleRate, n.config.SampleRate)
}

func passthrough(data []byte) *domain.NormalizedAudio {
	out := &domain.NormalizedAudio{Data: data, Passthrough: true}
	if info, _, err := ParseWAV(data); err == nil {
		out.SampleRate = info.SampleRate
		out.Channels = info.Channels
		out.BitDepth = info.BitsPerSample
		out.Duration = info.Duration()
	}
	return out
}
