// Package ws pushes engine events to dashboard clients over websockets.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventSource supplies serialized events from another process, such as the
// redis event bus.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan []byte, error)
}

// StatusFunc returns the snapshot sent to a client when it connects.
type StatusFunc func() any

// frame is the JSON text frame written to clients.
type frame struct {
	Type   string          `json:"type"`
	Event  json.RawMessage `json:"event,omitempty"`
	Status any             `json:"status,omitempty"`
}

type outbound struct {
	kind domain.EventKind
	data []byte
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu    sync.RWMutex
	kinds map[domain.EventKind]bool
}

// subscribeMsg changes which event kinds a client receives. An empty set
// means every kind.
type subscribeMsg struct {
	Action string   `json:"action"`
	Kinds  []string `json:"kinds"`
}

// Hub tracks connected clients and fans events out to them. Events arrive
// through PublishEvent or, when configured, from an EventSource.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan outbound
	register   chan *client
	unregister chan *client
	done       chan struct{}
	source     EventSource
	status     StatusFunc
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewHub creates a Hub. source and status may be nil.
func NewHub(source EventSource, status StatusFunc, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan outbound, sendBufferSize),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		source:     source,
		status:     status,
		logger:     logger.With(slog.String("component", "ws_hub")),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	if h.source != nil {
		go h.bridge(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", slog.Int("total_clients", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", slog.Int("total_clients", total))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(msg.kind) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					h.logger.Warn("dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// PublishEvent implements domain.EventPublisher. It never blocks; events are
// dropped when the broadcast queue is full.
func (h *Hub) PublishEvent(ctx context.Context, ev domain.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("ws: marshal event: %w", err)
	}
	h.enqueue(ctx, ev.Kind, raw)
	return nil
}

func (h *Hub) enqueue(ctx context.Context, kind domain.EventKind, raw []byte) {
	data, err := json.Marshal(frame{Type: "event", Event: raw})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- outbound{kind: kind, data: data}:
	default:
		h.logger.WarnContext(ctx, "broadcast queue full, dropping event",
			slog.String("kind", string(kind)),
		)
	}
}

// bridge forwards events from the source until it closes or ctx ends.
func (h *Hub) bridge(ctx context.Context) {
	msgs, err := h.source.Subscribe(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "event source subscribe failed", slog.String("error", err.Error()))
		return
	}
	for raw := range msgs {
		var head struct {
			Kind domain.EventKind `json:"kind"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			h.logger.WarnContext(ctx, "skipping malformed event", slog.String("error", err.Error()))
			continue
		}
		h.enqueue(ctx, head.Kind, raw)
	}
}

// SetStatus replaces the snapshot func used for new connections.
func (h *Hub) SetStatus(fn StatusFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = fn
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades GET /ws. A comma-separated ?kinds= narrows the initial
// subscription.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		kinds: make(map[domain.EventKind]bool),
	}
	if q := r.URL.Query().Get("kinds"); q != "" {
		c.setKinds(strings.Split(q, ","))
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	c.sendStatus()

	go c.writePump()
	go c.readPump()
}

func (c *client) wants(kind domain.EventKind) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.kinds) == 0 || c.kinds[kind]
}

func (c *client) setKinds(kinds []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.kinds)
	for _, k := range kinds {
		if k = strings.TrimSpace(k); k != "" {
			c.kinds[domain.EventKind(k)] = true
		}
	}
}

func (c *client) sendStatus() {
	c.hub.mu.RLock()
	status := c.hub.status
	c.hub.mu.RUnlock()
	if status == nil {
		return
	}
	data, err := json.Marshal(frame{Type: "status", Status: status()})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var msg subscribeMsg
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		switch msg.Action {
		case "subscribe":
			c.setKinds(msg.Kinds)
		case "status":
			c.sendStatus()
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ domain.EventPublisher = (*Hub)(nil)
