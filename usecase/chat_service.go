package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/voicerelay/domain"
	"github.com/satriahrh/voicerelay/domain/entities"
	"github.com/satriahrh/voicerelay/domain/repositories"
)

// ChatService handles the generating stage of a conversation
type ChatService struct {
	responder repositories.Responder
	logger    *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(responder repositories.Responder, logger *zap.Logger) *ChatService {
	return &ChatService{responder: responder, logger: logger}
}

// Reply asks the responder for the next assistant turn and, only when it
// succeeds, records the exchange in the session's conversation context.
func (s *ChatService) Reply(ctx context.Context, session *entities.Session, text string) (string, error) {
	conv := session.Conversation()

	reply, err := s.responder.Respond(ctx, text, conv.Turns())
	if err != nil {
		return "", domain.ClassifyRemoteError("AI response", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", domain.NewRemoteFailure("AI response", domain.RemoteEmptyResult, nil)
	}

	conv.AppendExchange(text, reply)
	s.logger.Debug("Conversation context updated",
		zap.String("sessionID", session.ID),
		zap.Int("turns", conv.Len()))

	return reply, nil
}
