package stt

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/satriahrh/voicerelay/domain"
	"github.com/satriahrh/voicerelay/domain/repositories"
)

const defaultGoogleLanguage = "tr-TR"

// GoogleConfig holds configuration for the Google Cloud Speech adapter
type GoogleConfig struct {
	CredentialsFile string
	Language        string
	Model           string
	Timeout         time.Duration
}

// GoogleSpeechToText implements Transcriber for Google Cloud
type GoogleSpeechToText struct {
	client   *speech.Client
	language string
	model    string
	timeout  time.Duration
	logger   *zap.Logger
}

var _ repositories.Transcriber = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText dials the Speech API. Without a credentials file the
// application default credentials are used.
func NewGoogleSpeechToText(ctx context.Context, config GoogleConfig, logger *zap.Logger) (*GoogleSpeechToText, error) {
	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	language := config.Language
	if language == "" {
		language = defaultGoogleLanguage
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	logger.Info("Google speech transcriber initialized",
		zap.String("language", language),
		zap.String("model", config.Model))

	return &GoogleSpeechToText{
		client:   client,
		language: language,
		model:    config.Model,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

// Transcribe runs a synchronous recognition over the whole utterance
func (g *GoogleSpeechToText) Transcribe(ctx context.Context, audio *domain.NormalizedAudio) (*repositories.Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		LanguageCode:               g.language,
		Model:                      g.model,
		EnableAutomaticPunctuation: true,
	}
	// Pass-through WAV keeps its own header; let the service read the rate.
	if !audio.Passthrough {
		recognitionConfig.SampleRateHertz = int32(audio.SampleRate)
		recognitionConfig.AudioChannelCount = int32(audio.Channels)
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio.Data},
		},
	})
	if err != nil {
		return nil, classifyGRPC(err)
	}

	transcript := collectResults(resp.Results)
	g.logger.Info("Google transcription completed",
		zap.Float64("confidence", transcript.Confidence),
		zap.Bool("unscored", transcript.Unscored),
		zap.Int("results", len(resp.Results)))
	return transcript, nil
}

// collectResults joins the best alternative of every result. Confidence is
// averaged over the results that report one; silence yields an empty transcript.
func collectResults(results []*speechpb.SpeechRecognitionResult) *repositories.Transcript {
	var (
		parts      []string
		confidence float32
		scored     int
	)
	for _, result := range results {
		if len(result.Alternatives) == 0 {
			continue
		}
		best := result.Alternatives[0]
		parts = append(parts, strings.TrimSpace(best.Transcript))
		// Some models leave confidence unset.
		if best.Confidence > 0 {
			confidence += best.Confidence
			scored++
		}
	}
	if len(parts) == 0 {
		return &repositories.Transcript{}
	}

	transcript := &repositories.Transcript{
		Text:     strings.TrimSpace(strings.Join(parts, " ")),
		Unscored: scored == 0,
	}
	if scored > 0 {
		transcript.Confidence = float64(confidence) / float64(scored)
	}
	return transcript
}

// Close releases the gRPC connection
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

func classifyGRPC(err error) error {
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return domain.NewRemoteFailure(serviceName, domain.RemoteTimeout, err)
	case codes.Unavailable:
		return domain.NewRemoteFailure(serviceName, domain.RemoteConnectionError, err)
	case codes.Unknown:
		return domain.ClassifyRemoteError(serviceName, err)
	default:
		return domain.NewRemoteFailure(serviceName, domain.RemoteServerError, err)
	}
}
