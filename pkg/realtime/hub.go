// Package realtime pushes session lifecycle events to connected clients
// over WebSocket, for MCP/CLI sessions that need to react immediately to a
// revocation instead of waiting for their next API call to 401.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/lanonasis/auth-gateway/pkg/kernel"
	"github.com/lanonasis/auth-gateway/pkg/logx"
)

// Event is the envelope pushed down every connected client's socket.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	EventSessionRevoked = "session.revoked"
)

// Hub tracks connected clients per user and fans out events to the
// subset subscribed to that user.
type Hub struct {
	mu      sync.RWMutex
	clients map[kernel.UserID]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(ctx context.Context) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		clients:    make(map[kernel.UserID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        hubCtx,
		cancel:     cancel,
	}
}

// Run drives client registration until the hub's context is cancelled.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.mu.Lock()
			if h.clients[c.userID] == nil {
				h.clients[c.userID] = make(map[*Client]bool)
			}
			h.clients[c.userID][c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[c.userID]; ok {
				if _, ok := set[c]; ok {
					delete(set, c)
					close(c.send)
				}
				if len(set) == 0 {
					delete(h.clients, c.userID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop tears down the hub and every registered client connection.
func (h *Hub) Stop() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for c := range set {
			close(c.send)
		}
	}
	h.clients = make(map[kernel.UserID]map[*Client]bool)
}

// NotifySessionRevoked implements sessionsrv.Notifier: it pushes a
// session.revoked event to every client currently connected for that user.
// A client whose outbound queue is full is treated as unresponsive and
// dropped rather than letting one slow reader stall the rest.
func (h *Hub) NotifySessionRevoked(userID kernel.UserID, sessionID kernel.SessionID) {
	h.push(userID, Event{
		Type:      EventSessionRevoked,
		SessionID: sessionID.String(),
		Timestamp: time.Now(),
	})
}

func (h *Hub) push(userID kernel.UserID, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logx.WithError(err).Warn("realtime: failed to marshal event")
		return
	}

	h.mu.RLock()
	set := h.clients[userID]
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			h.unregister <- c
		}
	}
}

// ConnectionCount returns the number of live sockets for a user, mostly for
// diagnostics and tests.
func (h *Hub) ConnectionCount(userID kernel.UserID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
