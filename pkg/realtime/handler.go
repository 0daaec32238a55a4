package realtime

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gorilla/websocket"

	"github.com/lanonasis/auth-gateway/pkg/iam/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated HTTP requests to a session-event socket.
type Handler struct {
	hub    *Hub
	tokens auth.TokenService
}

func NewHandler(hub *Hub, tokens auth.TokenService) *Handler {
	return &Handler{hub: hub, tokens: tokens}
}

// FiberHandler adapts ServeHTTP for mounting on a fiber.Router.
func (h *Handler) FiberHandler() fiber.Handler {
	return adaptor.HTTPHandlerFunc(h.ServeHTTP)
}

// ServeHTTP authenticates the caller's bearer token (header or ?token=
// query param, since browsers can't set headers on a WebSocket handshake)
// and upgrades the connection, registering the client under its user ID.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
		return
	}

	claims, err := h.tokens.ValidateAccessToken(token)
	if err != nil {
		http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := newClient(h.hub.ctx, h.hub, conn, claims.UserID)
	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return r.URL.Query().Get("token")
}
