package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/voicerelay/domain"
	"github.com/satriahrh/voicerelay/domain/entities"
	"github.com/satriahrh/voicerelay/domain/repositories"
)

const (
	serviceName = "AI response"

	defaultModel       = "gemini-1.5-flash"
	defaultTemperature = 0.7
	defaultTopP        = 0.8
	defaultTopK        = 40
	defaultMaxTokens   = 1000
	defaultTimeout     = 30 * time.Second

	// DefaultSystemPrompt keeps replies short enough to be spoken back.
	DefaultSystemPrompt = "You are a friendly voice assistant. Answer in the language the user speaks, " +
		"in two or three short, natural sentences. Avoid lists, markdown and emoji because your reply is read aloud."
)

// GeminiConfig holds configuration for the Gemini responder
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int
	SystemPrompt    string
	Timeout         time.Duration
}

// GeminiResponder implements Responder using Google's Gemini API
type GeminiResponder struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	temperature     float32
	topP            float32
	topK            float32
	maxOutputTokens int
	timeout         time.Duration
	safetySettings  []*genai.SafetySetting
	systemPrompt    string
}

var (
	_ repositories.Responder     = (*GeminiResponder)(nil)
	_ repositories.HealthChecker = (*GeminiResponder)(nil)
)

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}

	if config.Temperature < 0 || config.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", config.Temperature)
	}

	if config.TopP < 0 || config.TopP > 1 {
		return fmt.Errorf("topP must be between 0 and 1, got %f", config.TopP)
	}

	if config.TopK < 0 {
		return fmt.Errorf("topK must be positive, got %f", config.TopK)
	}

	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", config.MaxOutputTokens)
	}

	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}

	return nil
}

// safetySettings blocks medium and above for every harm category we care about
func safetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockThresholdBlockMediumAndAbove,
		})
	}
	return settings
}

// NewGeminiResponder creates a new Gemini responder
func NewGeminiResponder(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiResponder, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = float32(defaultTemperature)
	}

	topP := config.TopP
	if topP == 0 {
		topP = float32(defaultTopP)
	}

	topK := config.TopK
	if topK == 0 {
		topK = float32(defaultTopK)
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	systemPrompt := config.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	logger.Info("Gemini responder initialized",
		zap.String("model", model),
		zap.Float32("temperature", temperature),
		zap.Int("maxOutputTokens", maxOutputTokens),
		zap.Duration("timeout", timeout))

	return &GeminiResponder{
		client:          client,
		logger:          logger,
		model:           model,
		temperature:     temperature,
		topP:            topP,
		topK:            topK,
		maxOutputTokens: maxOutputTokens,
		timeout:         timeout,
		safetySettings:  safetySettings(),
		systemPrompt:    systemPrompt,
	}, nil
}

// Respond sends the history plus the new user text and returns the reply
func (g *GeminiResponder) Respond(ctx context.Context, text string, history []entities.Turn) (string, error) {
	contents := append(historyToContents(history), genai.NewContentFromText(text, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(g.systemPrompt)}},
		SafetySettings:    g.safetySettings,
		Temperature:       genai.Ptr(g.temperature),
		TopP:              genai.Ptr(g.topP),
		TopK:              genai.Ptr(g.topK),
		MaxOutputTokens:   int32(g.maxOutputTokens),
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		g.logger.Error("Failed to generate content", zap.Error(err))
		return "", domain.ClassifyRemoteError(serviceName, err)
	}

	reply := strings.TrimSpace(responseText(response))
	if reply == "" {
		return "", domain.NewRemoteFailure(serviceName, domain.RemoteEmptyResult, fmt.Errorf("no text in response"))
	}

	g.logger.Info("Gemini response generated",
		zap.String("prompt_preview", preview(text)),
		zap.String("response_preview", preview(reply)),
		zap.Int("history_length", len(history)),
		zap.Duration("latency", time.Since(start)))

	return reply, nil
}

// HealthCheck looks up the configured model
func (g *GeminiResponder) HealthCheck(ctx context.Context) error {
	if _, err := g.client.Models.Get(ctx, g.model, nil); err != nil {
		return domain.ClassifyRemoteError(serviceName, err)
	}
	return nil
}

func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// historyToContents converts stored turns to Gemini contents
func historyToContents(history []entities.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		role := genai.Role(genai.RoleUser)
		if turn.Role == entities.MessageRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	return contents
}

func preview(s string) string {
	const n = 50
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
