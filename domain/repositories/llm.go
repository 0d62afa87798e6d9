package repositories

import (
	"context"

	"github.com/satriahrh/voicerelay/domain/entities"
)

// Responder abstracts any chat/LLM provider
type Responder interface {
	// Respond takes the user's text and the prior turns, oldest first, and
	// returns the assistant reply
	Respond(ctx context.Context, text string, history []entities.Turn) (string, error)
}
