package websocket

import (
	"time"

	"go.uber.org/zap"
)

// SessionReaper disconnects sessions that have been idle too long.
type SessionReaper struct {
	hub         *Hub
	idleTimeout time.Duration
	interval    time.Duration
	logger      *zap.Logger
	stopChan    chan struct{}
}

// NewSessionReaper creates a reaper that checks every idleTimeout/4, but at
// least once a second.
func NewSessionReaper(hub *Hub, idleTimeout time.Duration, logger *zap.Logger) *SessionReaper {
	interval := idleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	return &SessionReaper{
		hub:         hub,
		idleTimeout: idleTimeout,
		interval:    interval,
		logger:      logger,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *SessionReaper) Start() {
	go s.cleanupLoop()
	s.logger.Info("Session reaper started", zap.Duration("idleTimeout", s.idleTimeout))
}

// Stop gracefully stops the reaper
func (s *SessionReaper) Stop() {
	close(s.stopChan)
	s.logger.Info("Session reaper stopped")
}

func (s *SessionReaper) cleanupLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

// runCleanup disconnects every idle session and returns how many it removed.
func (s *SessionReaper) runCleanup() int {
	reaped := 0
	for _, session := range s.hub.Sessions() {
		if !session.IdleFor(s.idleTimeout) {
			continue
		}
		s.logger.Info("Disconnecting idle session",
			zap.String("sessionID", session.ID),
			zap.Time("lastActiveAt", session.LastActiveAt()))
		s.hub.Disconnect(session.ID)
		reaped++
	}
	return reaped
}
