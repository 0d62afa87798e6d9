package llm

import (
	"context"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/satriahrh/voicerelay/domain/entities"
)

func sampleHistory() []entities.Turn {
	conv := entities.NewConversationContext(10)
	conv.AppendExchange("merhaba", "Merhaba! Size nasıl yardımcı olabilirim?")
	return conv.Turns()
}

func TestValidateGeminiConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GeminiConfig
		wantErr bool
	}{
		{"valid", GeminiConfig{APIKey: "k", Temperature: 0.7, TopP: 0.8, TopK: 40}, false},
		{"defaults", GeminiConfig{APIKey: "k"}, false},
		{"missing key", GeminiConfig{}, true},
		{"temperature too high", GeminiConfig{APIKey: "k", Temperature: 3}, true},
		{"topP too high", GeminiConfig{APIKey: "k", TopP: 1.2}, true},
		{"negative topK", GeminiConfig{APIKey: "k", TopK: -1}, true},
		{"negative timeout", GeminiConfig{APIKey: "k", Timeout: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGeminiConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGeminiConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHistoryToContents(t *testing.T) {
	contents := historyToContents(sampleHistory())
	if len(contents) != 2 {
		t.Fatalf("Expected 2 contents, got %d", len(contents))
	}
	if contents[0].Role != string(genai.RoleUser) || contents[1].Role != string(genai.RoleModel) {
		t.Errorf("Unexpected roles %q, %q", contents[0].Role, contents[1].Role)
	}
	if contents[0].Parts[0].Text != "merhaba" {
		t.Errorf("Unexpected text %q", contents[0].Parts[0].Text)
	}
}

func TestSafetySettings(t *testing.T) {
	settings := safetySettings()
	if len(settings) != 4 {
		t.Fatalf("Expected 4 safety settings, got %d", len(settings))
	}
	for _, s := range settings {
		if s.Threshold != genai.HarmBlockThresholdBlockMediumAndAbove {
			t.Errorf("Category %s has threshold %s", s.Category, s.Threshold)
		}
	}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "Merhaba, "}, {Text: "dostum."}}},
		}},
	}
	if got := responseText(resp); got != "Merhaba, dostum." {
		t.Errorf("responseText() = %q", got)
	}
	if got := responseText(&genai.GenerateContentResponse{}); got != "" {
		t.Errorf("Expected empty text, got %q", got)
	}
}

func TestBuildMessages(t *testing.T) {
	msgs := buildMessages("be brief", sampleHistory(), "nasılsın?")
	if len(msgs) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].OfSystem == nil || msgs[1].OfUser == nil || msgs[2].OfAssistant == nil || msgs[3].OfUser == nil {
		t.Error("Unexpected message layout")
	}
}

func TestValidateOpenAIConfig(t *testing.T) {
	if err := ValidateOpenAIConfig(OpenAIConfig{}); err == nil {
		t.Error("Expected error for missing API key")
	}
	if err := ValidateOpenAIConfig(OpenAIConfig{APIKey: "k", MaxTokens: -1}); err == nil {
		t.Error("Expected error for negative max tokens")
	}
}

func TestMockResponder(t *testing.T) {
	mock := NewMockGeminiClient()
	reply, err := mock.Respond(context.Background(), "hi", sampleHistory())
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if !strings.Contains(reply, "hi") {
		t.Errorf("Expected reply to mention the prompt, got %q", reply)
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("ş", 80)
	if got := preview(long); len([]rune(got)) != 53 {
		t.Errorf("Expected 50 runes plus ellipsis, got %d", len([]rune(got)))
	}
}
