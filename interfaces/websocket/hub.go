package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Message types sent to subscribers
const (
	MessageState  = "SESSION_STATE"
	MessageClosed = "SESSION_CLOSED"
)

// Message is the envelope of every frame sent to a subscriber
type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type outbound struct {
	sessionID string
	data      []byte
	close     bool
}

// Hub tracks websocket subscribers per editing session and fans session
// state out to them. It implements ports.Notifier.
type Hub struct {
	sessions map[string]map[*Client]bool
	mu       sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound

	// done is closed when Run returns
	done     chan struct{}
	doneOnce sync.Once

	logger *zap.Logger

	sent    int64
	dropped int64
	statsMu sync.Mutex
}

// NewHub creates a hub; call Run to start delivering
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		register:   make(chan *Client, 100),
		unregister: make(chan *Client, 100),
		broadcast:  make(chan outbound, 1000),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run is the hub's event loop. It returns when ctx is done, closing every
// connection.
func (h *Hub) Run(ctx context.Context) {
	defer h.doneOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Hub shutting down")
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			if msg.close {
				h.closeSession(msg.sessionID, msg.data)
			} else {
				h.deliver(msg)
			}
		}
	}
}

// Broadcast queues payload for every subscriber of the session
func (h *Hub) Broadcast(sessionID string, payload interface{}) {
	data, err := encode(MessageState, sessionID, payload)
	if err != nil {
		h.logger.Error("Failed to marshal session state", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	h.enqueue(outbound{sessionID: sessionID, data: data})
}

// CloseSession tells subscribers the session ended and disconnects them
func (h *Hub) CloseSession(sessionID string) {
	data, _ := encode(MessageClosed, sessionID, nil)
	h.enqueue(outbound{sessionID: sessionID, data: data, close: true})
}

// Done is closed once the hub has stopped delivering
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Subscribers reports the number of connections on a session
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Stats returns delivered and dropped frame counts
func (h *Hub) Stats() (sent, dropped int64) {
	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	return h.sent, h.dropped
}

func (h *Hub) enqueue(msg outbound) {
	select {
	case h.broadcast <- msg:
	default:
		h.count(0, 1)
		h.logger.Warn("Broadcast queue full, message dropped", zap.String("session_id", msg.sessionID))
	}
}

func encode(kind, sessionID string, payload interface{}) ([]byte, error) {
	msg := Message{Type: kind, SessionID: sessionID, Timestamp: time.Now().Unix()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}

func (h *Hub) count(sent, dropped int64) {
	h.statsMu.Lock()
	h.sent += sent
	h.dropped += dropped
	h.statsMu.Unlock()
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true

	h.logger.Info("Client registered",
		zap.String("session_id", client.sessionID),
		zap.String("connection_id", client.id),
		zap.Int("session_connections", len(h.sessions[client.sessionID])),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.sessions[client.sessionID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.sessions, client.sessionID)
	}

	h.logger.Info("Client unregistered",
		zap.String("session_id", client.sessionID),
		zap.String("connection_id", client.id),
		zap.Int("remaining_connections", len(clients)),
	)
}

// deliver sends a frame to every client of the session. Clients with a
// full send buffer are dropped.
func (h *Hub) deliver(msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sessions[msg.sessionID]
	var sent, dropped int64
	for client := range clients {
		select {
		case client.send <- msg.data:
			sent++
		default:
			dropped++
			delete(clients, client)
			close(client.send)
			h.logger.Warn("Slow client dropped", zap.String("connection_id", client.id))
		}
	}
	if len(clients) == 0 {
		delete(h.sessions, msg.sessionID)
	}
	h.count(sent, dropped)
}

func (h *Hub) closeSession(sessionID string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.sessions[sessionID] {
		select {
		case client.send <- data:
		default:
		}
		close(client.send)
	}
	delete(h.sessions, sessionID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, clients := range h.sessions {
		for client := range clients {
			close(client.send)
		}
		delete(h.sessions, id)
	}
}
