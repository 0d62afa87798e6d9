package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/satriahrh/voicerelay/domain/repositories"
	"github.com/satriahrh/voicerelay/internal/websocket"
)

const providerCheckTimeout = 10 * time.Second

// Providers exposes optional provider capabilities to the HTTP surface.
type Providers struct {
	// Health maps a provider name to its health probe.
	Health map[string]repositories.HealthChecker
	// Voices is nil when the synthesizer cannot list voices.
	Voices repositories.VoiceLister
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, providers Providers, logger *zap.Logger) {
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"message": "Voice relay server is running",
		})
	})

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:         "healthy",
			Services:       "operational",
			ActiveSessions: hub.Count(),
		})
	})
	e.GET("/health/providers", func(c echo.Context) error {
		return providerHealth(c, providers.Health, logger)
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.GET("/sessions", func(c echo.Context) error {
		return listSessions(c, hub)
	})
	v1.GET("/voices", func(c echo.Context) error {
		return listVoices(c, providers.Voices, logger)
	})
	v1.GET("/voices/:id", func(c echo.Context) error {
		return getVoice(c, providers.Voices, logger)
	})

	// WebSocket endpoints. The path token only labels the session.
	e.GET("/ws/:client_id", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, c.Param("client_id"), logger)
	})
	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, "", logger)
	})
}

func providerHealth(c echo.Context, checkers map[string]repositories.HealthChecker, logger *zap.Logger) error {
	results := make(map[string]string, len(checkers))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker repositories.HealthChecker) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(c.Request().Context(), providerCheckTimeout)
			defer cancel()

			result := "ok"
			if err := checker.HealthCheck(ctx); err != nil {
				logger.Warn("Provider health check failed", zap.String("provider", name), zap.Error(err))
				result = err.Error()
			}

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()

	resp := ProviderHealthResponse{Status: "healthy", Providers: results}
	for _, result := range results {
		if result != "ok" {
			resp.Status = "degraded"
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func listSessions(c echo.Context, hub *websocket.Hub) error {
	sessions := hub.Sessions()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, SessionInfo{
			ID:           s.ID,
			ClientToken:  s.ClientToken,
			CreatedAt:    s.CreatedAt,
			LastActiveAt: s.LastActiveAt(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})

	return c.JSON(http.StatusOK, SessionsResponse{Count: len(infos), Sessions: infos})
}

func listVoices(c echo.Context, voices repositories.VoiceLister, logger *zap.Logger) error {
	if voices == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "voices_unavailable",
			Message: "The configured synthesizer does not list voices",
		})
	}

	list, err := voices.ListVoices(c.Request().Context())
	if err != nil {
		logger.Error("Failed to list voices", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "upstream_error",
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, VoicesResponse{Voices: list})
}

func getVoice(c echo.Context, voices repositories.VoiceLister, logger *zap.Logger) error {
	if voices == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "voices_unavailable",
			Message: "The configured synthesizer does not list voices",
		})
	}

	voiceID := c.Param("id")
	voice, err := voices.GetVoice(c.Request().Context(), voiceID)
	if err != nil {
		logger.Error("Failed to get voice", zap.String("voiceID", voiceID), zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "upstream_error",
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, voice)
}
