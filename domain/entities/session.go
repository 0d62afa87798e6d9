package entities

import (
	"sync"
	"time"
)

// DefaultHistoryLimit bounds the conversation context of a session.
const DefaultHistoryLimit = 10

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Turn is one stored utterance of the conversation.
type Turn struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// ConversationContext keeps the most recent turns of a session, oldest first.
// It only grows by whole (user, assistant) pairs.
type ConversationContext struct {
	mu    sync.Mutex
	turns []Turn
	limit int
}

// NewConversationContext creates an empty context holding at most limit turns.
func NewConversationContext(limit int) *ConversationContext {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &ConversationContext{limit: limit}
}

// AppendExchange records a user utterance and the assistant reply, dropping
// the oldest turns once the limit is exceeded.
func (c *ConversationContext) AppendExchange(user, assistant string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.turns = append(c.turns,
		Turn{Role: MessageRoleUser, Content: user, Timestamp: now},
		Turn{Role: MessageRoleAssistant, Content: assistant, Timestamp: now},
	)
	if excess := len(c.turns) - c.limit; excess > 0 {
		c.turns = append([]Turn(nil), c.turns[excess:]...)
	}
}

// Turns returns a copy of the stored turns.
func (c *ConversationContext) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

func (c *ConversationContext) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

func (c *ConversationContext) Limit() int { return c.limit }

// Session represents one live client connection to the relay
type Session struct {
	ID          string    `json:"id"`
	ClientToken string    `json:"client_token"`
	CreatedAt   time.Time `json:"created_at"`

	mu           sync.Mutex
	lastActiveAt time.Time
	conversation *ConversationContext
}

// NewSession creates a session with an empty conversation context
func NewSession(id, clientToken string, historyLimit int) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		ClientToken:  clientToken,
		CreatedAt:    now,
		lastActiveAt: now,
		conversation: NewConversationContext(historyLimit),
	}
}

// Conversation returns the session's conversation context.
func (s *Session) Conversation() *ConversationContext {
	return s.conversation
}

// Touch marks inbound activity on the session
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActiveAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastActiveAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActiveAt
}

// IdleFor reports whether the session saw no inbound activity for at least d.
func (s *Session) IdleFor(d time.Duration) bool {
	return time.Since(s.LastActiveAt()) >= d
}

