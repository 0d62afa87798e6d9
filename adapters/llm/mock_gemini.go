package llm

import (
	"context"
	"fmt"

	"github.com/satriahrh/voicerelay/domain/entities"
	"github.com/satriahrh/voicerelay/domain/repositories"
)

// MockGeminiClient is a placeholder responder for running without credentials
type MockGeminiClient struct{}

var _ repositories.Responder = (*MockGeminiClient)(nil)

// NewMockGeminiClient creates a new mock responder
func NewMockGeminiClient() *MockGeminiClient {
	return &MockGeminiClient{}
}

// Respond echoes the user text back in a canned sentence
func (g *MockGeminiClient) Respond(ctx context.Context, text string, history []entities.Turn) (string, error) {
	if len(history) == 0 {
		return fmt.Sprintf("Hello! You said '%s'. What else would you like to talk about?", text), nil
	}
	return fmt.Sprintf("Thanks for sharing! I heard '%s'. We have exchanged %d messages so far.", text, len(history)), nil
}
