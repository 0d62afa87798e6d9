package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/satriahrh/voicerelay/adapters/codec"
	"github.com/satriahrh/voicerelay/adapters/llm"
	"github.com/satriahrh/voicerelay/adapters/speech"
	"github.com/satriahrh/voicerelay/adapters/stt"
	"github.com/satriahrh/voicerelay/adapters/tts"
	"github.com/satriahrh/voicerelay/domain/repositories"
	"github.com/satriahrh/voicerelay/internal/audio"
	"github.com/satriahrh/voicerelay/internal/config"
)

// providerSet holds the collaborators selected by configuration.
type providerSet struct {
	normalizer  *audio.Normalizer
	transcriber repositories.Transcriber
	responder   repositories.Responder
	synthesizer repositories.Synthesizer

	health  map[string]repositories.HealthChecker
	voices  repositories.VoiceLister
	closers []io.Closer
}

func (p *providerSet) Close() {
	for _, c := range p.closers {
		c.Close()
	}
}

// register records the optional capabilities of a provider.
func (p *providerSet) register(stage string, provider interface{}) {
	if hc, ok := provider.(repositories.HealthChecker); ok {
		p.health[stage] = hc
	}
	if vl, ok := provider.(repositories.VoiceLister); ok {
		p.voices = vl
	}
	if c, ok := provider.(io.Closer); ok {
		p.closers = append(p.closers, c)
	}
}

func buildProviders(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*providerSet, error) {
	p := &providerSet{health: make(map[string]repositories.HealthChecker)}

	decoder, err := codec.NewDecoder(cfg.Audio.Decoder, codec.FFmpegConfig{
		Path:       cfg.Audio.FFmpegPath,
		SampleRate: cfg.Audio.SampleRate,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("audio decoder: %w", err)
	}
	p.normalizer = audio.NewNormalizer(audio.NormalizerConfig{
		MinBytes:      cfg.Audio.MinBytes,
		MinDuration:   cfg.Audio.MinDuration,
		SampleRate:    cfg.Audio.SampleRate,
		DecodeTimeout: cfg.Audio.DecodeTimeout,
		Loudness: audio.LoudnessPolicy{
			QuietRMS:  cfg.Audio.QuietRMS,
			BoostRMS:  cfg.Audio.BoostRMS,
			BoostGain: cfg.Audio.BoostGainDB,
		},
	}, decoder, logger)

	if p.transcriber, err = buildTranscriber(ctx, cfg.Transcription, logger); err != nil {
		p.Close()
		return nil, fmt.Errorf("transcription provider: %w", err)
	}
	p.register("transcription", p.transcriber)

	if p.responder, err = buildResponder(ctx, cfg.Generation, logger); err != nil {
		p.Close()
		return nil, fmt.Errorf("generation provider: %w", err)
	}
	p.register("generation", p.responder)

	if p.synthesizer, err = buildSynthesizer(cfg.Synthesis, logger); err != nil {
		p.Close()
		return nil, fmt.Errorf("synthesis provider: %w", err)
	}
	p.register("synthesis", p.synthesizer)

	logger.Info("Providers initialized",
		zap.String("transcription", cfg.Transcription.Provider),
		zap.String("generation", cfg.Generation.Provider),
		zap.String("synthesis", cfg.Synthesis.Provider),
		zap.String("decoder", cfg.Audio.Decoder))

	return p, nil
}

func buildTranscriber(ctx context.Context, cfg config.TranscriptionConfig, logger *zap.Logger) (repositories.Transcriber, error) {
	switch cfg.Provider {
	case config.ProviderMock:
		return speech.NewMockSpeechToText(logger), nil
	case config.ProviderDeepgram:
		return stt.NewDeepgramTranscriber(stt.DeepgramConfig{
			APIKey:   cfg.Deepgram.APIKey,
			BaseURL:  cfg.Deepgram.BaseURL,
			Model:    cfg.Deepgram.Model,
			Language: cfg.Deepgram.Language,
			Timeout:  cfg.Timeout,
		}, logger)
	case config.ProviderGoogle:
		return stt.NewGoogleSpeechToText(ctx, stt.GoogleConfig{
			CredentialsFile: cfg.Google.CredentialsFile,
			Language:        cfg.Google.Language,
			Model:           cfg.Google.Model,
			Timeout:         cfg.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func buildResponder(ctx context.Context, cfg config.GenerationConfig, logger *zap.Logger) (repositories.Responder, error) {
	switch cfg.Provider {
	case config.ProviderMock:
		return llm.NewMockGeminiClient(), nil
	case config.ProviderGemini:
		return llm.NewGeminiResponder(ctx, llm.GeminiConfig{
			APIKey:          cfg.Gemini.APIKey,
			Model:           cfg.Gemini.Model,
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
			TopK:            cfg.TopK,
			MaxOutputTokens: cfg.MaxTokens,
			SystemPrompt:    cfg.SystemPrompt,
			Timeout:         cfg.Timeout,
		}, logger)
	case config.ProviderOpenAI:
		return llm.NewOpenAIResponder(llm.OpenAIConfig{
			APIKey:       cfg.OpenAI.APIKey,
			BaseURL:      cfg.OpenAI.BaseURL,
			Model:        cfg.OpenAI.Model,
			Temperature:  cfg.Temperature,
			MaxTokens:    cfg.MaxTokens,
			SystemPrompt: cfg.SystemPrompt,
			Timeout:      cfg.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func buildSynthesizer(cfg config.SynthesisConfig, logger *zap.Logger) (repositories.Synthesizer, error) {
	switch cfg.Provider {
	case config.ProviderMock:
		return speech.NewMockTextToSpeech(logger), nil
	case config.ProviderElevenLabs:
		return tts.NewElevenLabsTTS(tts.ElevenLabsConfig{
			APIKey:       cfg.ElevenLabs.APIKey,
			APIBaseURL:   cfg.ElevenLabs.BaseURL,
			VoiceID:      cfg.ElevenLabs.VoiceID,
			ModelID:      cfg.ElevenLabs.ModelID,
			OutputFormat: cfg.ElevenLabs.OutputFormat,
			Stability:    cfg.ElevenLabs.Stability,
			Clarity:      cfg.ElevenLabs.SimilarityBoost,
			Timeout:      cfg.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
