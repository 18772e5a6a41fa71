package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/pkg/metrics"
)

// Outbound frame types
const (
	FrameSnapshot = "snapshot"
	FrameStatus   = "status"
	FrameAck      = "ack"
	FrameError    = "error"
)

// Inbound frame types
const (
	FrameChat     = "chat"
	FrameReaction = "reaction"
)

// Frame is a message pushed to clients
type Frame struct {
	// Type of frame: "snapshot", "status", "ack", "error"
	Type string `json:"type"`

	// Collection a snapshot frame carries
	Collection string `json:"collection,omitempty"`

	// Full collection contents, session status or intent result
	Data interface{} `json:"data,omitempty"`

	// Ref echoes the inbound frame an ack or error answers
	Ref string `json:"ref,omitempty"`

	Error string `json:"error,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// InboundFrame is a message received from a client
type InboundFrame struct {
	Type      string `json:"type"`
	Ref       string `json:"ref,omitempty"`
	CircleID  string `json:"circleId"`
	MessageID string `json:"messageId,omitempty"`
	Text      string `json:"text,omitempty"`
	Emoji     string `json:"emoji,omitempty"`
}

// Dispatcher answers an inbound frame
type Dispatcher func(ctx context.Context, frame InboundFrame) Frame

type directMessage struct {
	client *Client
	data   []byte
}

// Hub maintains the set of active clients and broadcasts frames to them
type Hub struct {
	clients map[*Client]bool

	// Frames for every client
	broadcast chan []byte

	// Frames for a single client
	direct chan directMessage

	register   chan *Client
	unregister chan *Client

	// Guards count, read from outside the run loop
	mu    sync.RWMutex
	count int

	// Frames a new client receives before anything else
	welcome func() []Frame

	dispatch Dispatcher

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewHub creates a new Hub instance
func NewHub(m *metrics.Metrics, logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		direct:     make(chan directMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		metrics:    m,
		logger:     logger,
	}
}

// Run handles registrations and fan-out until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.removeClient(client)
			}
			h.logger.Info().Msg("Live hub stopped")
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case data := <-h.broadcast:
			for client := range h.clients {
				h.deliver(client, data)
			}

		case msg := <-h.direct:
			if h.clients[msg.client] {
				h.deliver(msg.client, msg.data)
			}
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.clients[client] = true
	h.setCount(len(h.clients))
	h.metrics.LiveClientConnected()

	if h.welcome != nil {
		for _, frame := range h.welcome() {
			if data, err := h.encode(frame); err == nil {
				h.deliver(client, data)
			}
		}
	}

	h.logger.Info().
		Str("userID", client.userID).
		Str("addr", client.conn.RemoteAddr().String()).
		Msg("Client registered")
}

func (h *Hub) removeClient(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.setCount(len(h.clients))
	h.metrics.LiveClientDisconnected()

	h.logger.Info().
		Str("userID", client.userID).
		Str("addr", client.conn.RemoteAddr().String()).
		Msg("Client unregistered")
}

// deliver queues data for client, dropping a client whose buffer is full.
// Only called from the run loop.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.logger.Warn().Str("userID", client.userID).Msg("Dropping slow live client")
		h.removeClient(client)
	}
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

func (h *Hub) encode(frame Frame) ([]byte, error) {
	if frame.Timestamp.IsZero() {
		frame.Timestamp = time.Now()
	}
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error().Err(err).Str("type", frame.Type).Msg("Failed to marshal frame")
	}
	return data, err
}

// Broadcast sends frame to every connected client. It blocks while the
// broadcast queue is full.
func (h *Hub) Broadcast(ctx context.Context, frame Frame) {
	data, err := h.encode(frame)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	case <-ctx.Done():
	}
}

// reply sends frame to client only.
func (h *Hub) reply(ctx context.Context, client *Client, frame Frame) {
	data, err := h.encode(frame)
	if err != nil {
		return
	}
	select {
	case h.direct <- directMessage{client: client, data: data}:
	case <-ctx.Done():
	}
}

// SetWelcome sets the frames every new client receives first. Call before Run.
func (h *Hub) SetWelcome(fn func() []Frame) {
	h.welcome = fn
}

// SetDispatcher sets the handler for inbound frames. Call before Run.
func (h *Hub) SetDispatcher(fn Dispatcher) {
	h.dispatch = fn
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}
