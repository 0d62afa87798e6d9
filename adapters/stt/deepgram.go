package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicerelay/domain"
	"github.com/satriahrh/voicerelay/domain/repositories"
	"github.com/satriahrh/voicerelay/internal/httpclient"
)

const (
	serviceName = "transcription"

	defaultDeepgramBaseURL  = "https://api.deepgram.com/v1"
	defaultDeepgramModel    = "nova-2"
	defaultDeepgramLanguage = "tr"
	defaultTimeout          = 30 * time.Second
)

// DeepgramConfig holds configuration for the Deepgram adapter
type DeepgramConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Timeout  time.Duration
}

// DeepgramTranscriber implements Transcriber with the Deepgram prerecorded API
type DeepgramTranscriber struct {
	apiKey   string
	baseURL  string
	model    string
	language string
	timeout  time.Duration
	client   *http.Client
	logger   *zap.Logger
}

var (
	_ repositories.Transcriber   = (*DeepgramTranscriber)(nil)
	_ repositories.HealthChecker = (*DeepgramTranscriber)(nil)
)

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// ValidateDeepgramConfig validates the DeepgramConfig
func ValidateDeepgramConfig(config DeepgramConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("deepgram API key is required")
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	return nil
}

// NewDeepgramTranscriber creates a new Deepgram transcriber
func NewDeepgramTranscriber(config DeepgramConfig, logger *zap.Logger) (*DeepgramTranscriber, error) {
	if err := ValidateDeepgramConfig(config); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultDeepgramBaseURL
		logger.Info("Using default Deepgram base URL", zap.String("baseURL", baseURL))
	}
	model := config.Model
	if model == "" {
		model = defaultDeepgramModel
	}
	language := config.Language
	if language == "" {
		language = defaultDeepgramLanguage
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	logger.Info("Deepgram transcriber initialized",
		zap.String("model", model),
		zap.String("language", language),
		zap.Duration("timeout", timeout))

	return &DeepgramTranscriber{
		apiKey:   config.APIKey,
		baseURL:  baseURL,
		model:    model,
		language: language,
		timeout:  timeout,
		client:   httpclient.NewPooled(16, 0),
		logger:   logger,
	}, nil
}

func (d *DeepgramTranscriber) listenURL() string {
	q := url.Values{}
	q.Set("model", d.model)
	q.Set("language", d.language)
	q.Set("smart_format", "true")
	q.Set("punctuate", "true")
	return d.baseURL + "/listen?" + q.Encode()
}

// Transcribe sends the normalized WAV to Deepgram and returns the best alternative
func (d *DeepgramTranscriber) Transcribe(ctx context.Context, audio *domain.NormalizedAudio) (*repositories.Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.listenURL(), bytes.NewReader(audio.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, domain.ClassifyRemoteError(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		d.logger.Error("Deepgram API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return nil, domain.NewRemoteFailure(serviceName, domain.RemoteServerError,
			fmt.Errorf("deepgram returned %d: %s", resp.StatusCode, string(errorBody)))
	}

	var body deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, domain.ClassifyRemoteError(serviceName, fmt.Errorf("failed to decode response: %w", err))
	}

	// Silence comes back without alternatives.
	if len(body.Results.Channels) == 0 || len(body.Results.Channels[0].Alternatives) == 0 {
		d.logger.Info("Deepgram returned no alternatives", zap.Duration("latency", time.Since(start)))
		return &repositories.Transcript{}, nil
	}

	best := body.Results.Channels[0].Alternatives[0]
	d.logger.Info("Deepgram transcription completed",
		zap.Duration("latency", time.Since(start)),
		zap.Float64("confidence", best.Confidence),
		zap.Int("chars", len(best.Transcript)))

	return &repositories.Transcript{Text: strings.TrimSpace(best.Transcript), Confidence: best.Confidence}, nil
}

// HealthCheck verifies the API key by listing projects
func (d *DeepgramTranscriber) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/projects", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return domain.ClassifyRemoteError(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.NewRemoteFailure(serviceName, domain.RemoteServerError, fmt.Errorf("deepgram returned %d", resp.StatusCode))
	}
	return nil
}
