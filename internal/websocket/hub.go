package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicerelay/domain"
	"github.com/satriahrh/voicerelay/domain/entities"
	"github.com/satriahrh/voicerelay/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Default maximum message size allowed from peer. Base64 audio of a
	// few seconds of WebM fits comfortably.
	defaultReadLimit = 10 * 1024 * 1024

	defaultSendBuffer = 256
	defaultQueueDepth = 1

	busyMessage = "Still processing your previous message, please wait"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ErrTransportClosed is returned by Send once the transport is closed.
var ErrTransportClosed = errors.New("transport closed")

// Handler processes one inbound message for a session.
type Handler interface {
	Handle(ctx context.Context, sessionID string, msg domain.InboundMessage)
}

// Transport is the outbound half of a client connection.
type Transport interface {
	Send(msg domain.OutboundMessage) error
	Close() error
}

// HubConfig tunes per-connection resources.
type HubConfig struct {
	SendBuffer   int
	QueueDepth   int
	ReadLimit    int64
	HistoryLimit int
}

func (c HubConfig) withDefaults() HubConfig {
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = defaultQueueDepth
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = defaultReadLimit
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = entities.DefaultHistoryLimit
	}
	return c
}

type member struct {
	session   *entities.Session
	transport Transport
}

// Hub is the session registry. It owns the session table and routes
// outbound messages to live transports.
type Hub struct {
	// Registered sessions keyed by session id.
	clients map[string]member

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	handler Handler
	config  HubConfig
	logger  *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(config HubConfig, logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]member),
		config:  config.withDefaults(),
		logger:  logger,
	}
}

// SetHandler installs the inbound message handler. It must be called
// before the first connection is accepted.
func (h *Hub) SetHandler(handler Handler) {
	h.handler = handler
}

// Connect allocates a fresh session for transport and registers it.
func (h *Hub) Connect(transport Transport, clientToken string) (*entities.Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("allocate session id: %w", err)
	}

	session := entities.NewSession(id.String(), clientToken, h.config.HistoryLimit)

	h.mu.Lock()
	if _, exists := h.clients[session.ID]; exists {
		h.mu.Unlock()
		return nil, fmt.Errorf("session id %s already registered", session.ID)
	}
	h.clients[session.ID] = member{session: session, transport: transport}
	h.mu.Unlock()

	metrics.ActiveSessions.Inc()
	metrics.SessionsTotal.Inc()
	h.logger.Info("Client registered",
		zap.String("sessionID", session.ID),
		zap.String("clientToken", clientToken))

	return session, nil
}

// Disconnect removes the session and closes its transport. Unknown ids are
// ignored.
func (h *Hub) Disconnect(sessionID string) {
	h.mu.Lock()
	m, ok := h.clients[sessionID]
	if ok {
		delete(h.clients, sessionID)
	}
	h.mu.Unlock()

	if !ok {
		return
	}

	if err := m.transport.Close(); err != nil {
		h.logger.Debug("Transport close failed", zap.String("sessionID", sessionID), zap.Error(err))
	}
	metrics.ActiveSessions.Dec()
	h.logger.Info("Client unregistered", zap.String("sessionID", sessionID))
}

// Deliver writes msg to the session's transport. Messages for sessions that
// are gone are dropped.
func (h *Hub) Deliver(sessionID string, msg domain.OutboundMessage) {
	h.mu.RLock()
	m, ok := h.clients[sessionID]
	h.mu.RUnlock()

	if !ok {
		metrics.DroppedDeliveries.WithLabelValues("session_gone").Inc()
		h.logger.Debug("Dropping message for unknown session",
			zap.String("sessionID", sessionID),
			zap.String("type", string(msg.Kind)))
		return
	}

	if err := m.transport.Send(msg); err != nil {
		metrics.DroppedDeliveries.WithLabelValues("transport_closed").Inc()
		h.logger.Debug("Dropping message for closed transport",
			zap.String("sessionID", sessionID),
			zap.String("type", string(msg.Kind)),
			zap.Error(err))
	}
}

// Session looks up a live session.
func (h *Hub) Session(sessionID string) (*entities.Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.clients[sessionID]
	return m.session, ok
}

// Sessions returns a snapshot of the live sessions.
func (h *Hub) Sessions() []*entities.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sessions := make([]*entities.Session, 0, len(h.clients))
	for _, m := range h.clients {
		sessions = append(sessions, m.session)
	}
	return sessions
}

// Count returns the number of live sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects every session.
func (h *Hub) Shutdown() {
	for _, s := range h.Sessions() {
		h.Disconnect(s.ID)
	}
	h.logger.Info("Hub shut down")
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Pending pipeline submissions, processed one at a time by runLoop.
	jobs chan domain.InboundMessage

	// Closed when the client shuts down.
	done      chan struct{}
	closeOnce sync.Once

	session *entities.Session
	logger  *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan WriteData, hub.config.SendBuffer),
		jobs:   make(chan domain.InboundMessage, hub.config.QueueDepth),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Send encodes msg and queues it for the write pump.
func (c *Client) Send(msg domain.OutboundMessage) error {
	payload, err := EncodeOutbound(msg)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrTransportClosed
	default:
	}

	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
		return nil
	case <-c.done:
		return ErrTransportClosed
	}
}

// Close stops the pumps. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// HandleWebSocket handles websocket requests from the peer.
func HandleWebSocket(hub *Hub, c echo.Context, clientToken string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := newClient(hub, conn, logger)
	session, err := hub.Connect(client, clientToken)
	if err != nil {
		logger.Error("Failed to register client", zap.Error(err))
		conn.Close()
		return nil
	}
	client.session = session
	client.logger = logger.With(zap.String("sessionID", session.ID))

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.runLoop()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c.session.ID)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.config.ReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.session.Touch()

		switch messageType {
		case websocket.TextMessage:
			msg, err := DecodeInbound(message)
			if err != nil {
				c.logger.Warn("Rejected inbound frame", zap.Error(err))
				c.hub.Deliver(c.session.ID, domain.NewErrorNotice(domain.UserMessage(err)))
				continue
			}
			c.dispatch(msg)
		case websocket.BinaryMessage:
			c.dispatch(domain.InboundMessage{Kind: domain.InboundAudio, Audio: message})
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// dispatch answers liveness frames inline and queues everything else.
func (c *Client) dispatch(msg domain.InboundMessage) {
	if msg.Kind == domain.InboundPing {
		c.hub.handler.Handle(context.Background(), c.session.ID, msg)
		return
	}

	select {
	case c.jobs <- msg:
	default:
		metrics.RejectedRuns.Inc()
		c.logger.Warn("Session busy, rejecting submission", zap.String("type", string(msg.Kind)))
		c.hub.Deliver(c.session.ID, domain.NewErrorNotice(busyMessage))
	}
}

// runLoop runs queued submissions sequentially so a session never has two
// pipeline runs touching its conversation at once.
func (c *Client) runLoop() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.jobs:
			if c.closed() {
				return
			}
			c.hub.handler.Handle(context.Background(), c.session.ID, msg)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				c.hub.Disconnect(c.session.ID)
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.Disconnect(c.session.ID)
				return
			}
		}
	}
}
