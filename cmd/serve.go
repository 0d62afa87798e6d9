package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/voicerelay/internal/api"
	"github.com/satriahrh/voicerelay/internal/config"
	"github.com/satriahrh/voicerelay/internal/logging"
	"github.com/satriahrh/voicerelay/internal/websocket"
	"github.com/satriahrh/voicerelay/usecase"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Initialize logger
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := buildProviders(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer providers.Close()

	hub := websocket.NewHub(websocket.HubConfig{
		SendBuffer:   cfg.Server.SendBuffer,
		QueueDepth:   cfg.Server.QueueDepth,
		ReadLimit:    cfg.Server.MaxMessageBytes,
		HistoryLimit: cfg.Server.HistoryLimit,
	}, logger)

	// Initialize usecase services
	chatService := usecase.NewChatService(providers.responder, logger)
	conversationService := usecase.NewConversationService(
		usecase.ConversationConfig{MinConfidence: cfg.Server.MinConfidence},
		providers.normalizer,
		providers.transcriber,
		chatService,
		providers.synthesizer,
		hub,
		logger,
	)
	hub.SetHandler(conversationService)

	reaper := websocket.NewSessionReaper(hub, cfg.Server.IdleTimeout, logger)
	reaper.Start()
	defer reaper.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, hub, api.Providers{
		Health: providers.health,
		Voices: providers.voices,
	}, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := e.Start(cfg.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("Voice relay server started", zap.String("address", cfg.Address()))

	// Wait for interrupt signal to gracefully shutdown the server
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	hub.Shutdown()

	logger.Info("Server exited")
	return nil
}
