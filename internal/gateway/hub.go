// Package gateway maintains the per-process registry of connected observers
// and pushes constant-size change notifications to them. Registration and
// pruning are entirely process-local; cross-process propagation is the
// cache's version probe, not this hub.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/crowdchess/crowdchess/internal/models"
)

// SnapshotFunc pulls the current derived view for a viewer, already
// anonymized for them.
type SnapshotFunc func(ctx context.Context, viewerID string) (*models.View, error)

// Config holds WebSocket transport settings.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns default WebSocket configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// Hub fans change notifications out to every locally connected observer.
type Hub struct {
	conns map[*Conn]bool
	mu    sync.RWMutex

	upgrader websocket.Upgrader
	config   Config

	broadcastCh chan Message
	snapshot    SnapshotFunc
}

// Conn is one observer connection.
type Conn struct {
	ID       string
	ViewerID string
	ws       *websocket.Conn
	Send     chan []byte
	hub      *Hub

	ConnectedAt time.Time
}

// NewHub creates a hub. The snapshot function is wired in afterwards because
// the view provider needs the hub for its own broadcasts.
func NewHub(config Config) *Hub {
	return &Hub{
		conns: make(map[*Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan Message, 256),
	}
}

// SetSnapshot installs the view provider used for the initial message.
func (h *Hub) SetSnapshot(fn SnapshotFunc) {
	h.snapshot = fn
}

// Start processes broadcast messages until ctx is done.
func (h *Hub) Start(ctx context.Context) {
	log.Info().Msg("observer hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("observer hub shutting down")
			return
		case msg := <-h.broadcastCh:
			h.fanOut(msg)
		}
	}
}

// Broadcast queues a "state changed, new version = N" notice for every
// registered observer. It never inlines the full state.
func (h *Hub) Broadcast(version int64) {
	select {
	case h.broadcastCh <- Message{Type: MessageTypeUpdate, Version: version}:
	default:
		log.Warn().Int64("version", version).Msg("broadcast channel full, dropping notice")
	}
}

// Subscribe upgrades the request, delivers the current view plus version,
// then keeps the observer registered for update notices.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, viewerID string) error {
	view, err := h.snapshot(r.Context(), viewerID)
	if err != nil {
		return fmt.Errorf("derive snapshot: %w", err)
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade connection: %w", err)
	}

	conn := &Conn{
		ID:          uuid.New().String(),
		ViewerID:    viewerID,
		ws:          ws,
		Send:        make(chan []byte, 64),
		hub:         h,
		ConnectedAt: time.Now(),
	}
	h.register(conn)

	snapshot, err := json.Marshal(Message{
		Type:    MessageTypeSnapshot,
		Version: view.Version,
		View:    view,
	})
	if err != nil {
		h.unregister(conn)
		ws.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	conn.Send <- snapshot

	go conn.writePump()
	go conn.readPump()

	log.Info().
		Str("connection_id", conn.ID).
		Int64("version", view.Version).
		Msg("observer connected")
	return nil
}

// ConnectionCount returns the number of registered observers.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) register(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = true
}

func (h *Hub) unregister(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		close(conn.Send)
		log.Info().Str("connection_id", conn.ID).Msg("observer disconnected")
	}
}

// fanOut sends one notice to every observer, pruning connections whose send
// buffer is full. Failed receivers are dropped on the failed attempt itself,
// not via separate heartbeat bookkeeping.
func (h *Hub) fanOut(msg Message) {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for conn := range h.conns {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			log.Warn().Str("connection_id", conn.ID).Msg("send buffer full, pruning observer")
			h.unregister(conn)
			conn.ws.Close()
		}
	}

	log.Debug().
		Int64("version", msg.Version).
		Int("observers", len(targets)).
		Msg("change notice broadcast")
}

// writePump drains the send channel and keeps the transport alive with a
// periodic ping independent of game activity.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("observer write failed")
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("observer ping failed")
				return
			}
		}
	}
}

// readPump consumes and discards inbound frames; observers are read-only.
func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("unexpected observer close")
			}
			return
		}
	}
}
