package api

import (
	"time"

	"github.com/satriahrh/voicerelay/domain/repositories"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status         string `json:"status"`
	Services       string `json:"services"`
	ActiveSessions int    `json:"active_sessions"`
}

// ProviderHealthResponse reports the reachability of each upstream provider
type ProviderHealthResponse struct {
	Status    string            `json:"status"`
	Providers map[string]string `json:"providers"`
}

// SessionInfo describes a live session without its conversation content
type SessionInfo struct {
	ID           string    `json:"id"`
	ClientToken  string    `json:"client_token,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// SessionsResponse is the body of GET /api/v1/sessions
type SessionsResponse struct {
	Count    int           `json:"count"`
	Sessions []SessionInfo `json:"sessions"`
}

// VoicesResponse is the body of GET /api/v1/voices
type VoicesResponse struct {
	Voices []repositories.Voice `json:"voices"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
