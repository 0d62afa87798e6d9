package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"go.uber.org/zap"

	"github.com/satriahrh/voicerelay/domain"
	"github.com/satriahrh/voicerelay/domain/entities"
	"github.com/satriahrh/voicerelay/domain/repositories"
	"github.com/satriahrh/voicerelay/internal/httpclient"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig configures any OpenAI-compatible chat completion endpoint
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
	Timeout      time.Duration
}

// OpenAIResponder implements Responder over the chat completions API
type OpenAIResponder struct {
	client       openai.Client
	model        string
	temperature  float32
	maxTokens    int
	systemPrompt string
	timeout      time.Duration
	logger       *zap.Logger
}

var (
	_ repositories.Responder     = (*OpenAIResponder)(nil)
	_ repositories.HealthChecker = (*OpenAIResponder)(nil)
)

// ValidateOpenAIConfig validates the OpenAIConfig
func ValidateOpenAIConfig(config OpenAIConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("OpenAI API key is required")
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", config.Temperature)
	}
	if config.MaxTokens < 0 {
		return fmt.Errorf("maxTokens must be positive, got %d", config.MaxTokens)
	}
	return nil
}

// NewOpenAIResponder creates a responder. Retries are disabled so a failure
// surfaces to the caller on the first attempt.
func NewOpenAIResponder(config OpenAIConfig, logger *zap.Logger) (*OpenAIResponder, error) {
	if err := ValidateOpenAIConfig(config); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(httpclient.NewPooled(16, 0)),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	model := config.Model
	if model == "" {
		model = defaultOpenAIModel
		logger.Info("Using default model", zap.String("model", model))
	}
	temperature := config.Temperature
	if temperature == 0 {
		temperature = float32(defaultTemperature)
	}
	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	systemPrompt := config.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	logger.Info("OpenAI responder initialized",
		zap.String("model", model),
		zap.String("baseURL", config.BaseURL))

	return &OpenAIResponder{
		client:       openai.NewClient(opts...),
		model:        model,
		temperature:  temperature,
		maxTokens:    maxTokens,
		systemPrompt: systemPrompt,
		timeout:      timeout,
		logger:       logger,
	}, nil
}

// buildMessages lays out system prompt, history and the new user text
func buildMessages(systemPrompt string, history []entities.Turn, text string) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	msgs = append(msgs, openai.SystemMessage(systemPrompt))
	for _, turn := range history {
		if turn.Role == entities.MessageRoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(turn.Content))
		} else {
			msgs = append(msgs, openai.UserMessage(turn.Content))
		}
	}
	return append(msgs, openai.UserMessage(text))
}

// Respond asks the chat completion endpoint for the next assistant turn
func (o *OpenAIResponder) Respond(ctx context.Context, text string, history []entities.Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               o.model,
		Messages:            buildMessages(o.systemPrompt, history, text),
		MaxCompletionTokens: param.NewOpt(int64(o.maxTokens)),
		Temperature:         param.NewOpt(float64(o.temperature)),
	})
	if err != nil {
		o.logger.Error("Chat completion failed", zap.Error(err))
		return "", domain.ClassifyRemoteError(serviceName, err)
	}

	if len(resp.Choices) == 0 {
		return "", domain.NewRemoteFailure(serviceName, domain.RemoteEmptyResult, fmt.Errorf("no choices in response"))
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", domain.NewRemoteFailure(serviceName, domain.RemoteEmptyResult, fmt.Errorf("empty completion"))
	}

	o.logger.Info("OpenAI response generated",
		zap.String("response_preview", preview(reply)),
		zap.Int("history_length", len(history)),
		zap.Duration("latency", time.Since(start)))
	return reply, nil
}

// HealthCheck retrieves the configured model
func (o *OpenAIResponder) HealthCheck(ctx context.Context) error {
	if _, err := o.client.Models.Get(ctx, o.model); err != nil {
		return domain.ClassifyRemoteError(serviceName, err)
	}
	return nil
}
