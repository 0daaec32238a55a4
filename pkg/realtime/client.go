package realtime

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lanonasis/auth-gateway/pkg/kernel"
	"github.com/lanonasis/auth-gateway/pkg/logx"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 16
)

// Client is one connected socket, scoped to the user it authenticated as.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	userID kernel.UserID

	ctx    context.Context
	cancel context.CancelFunc
}

func newClient(ctx context.Context, hub *Hub, conn *websocket.Conn, userID kernel.UserID) *Client {
	clientCtx, cancel := context.WithCancel(ctx)
	return &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		hub:    hub,
		userID: userID,
		ctx:    clientCtx,
		cancel: cancel,
	}
}

// readPump drains and discards client-sent frames (this channel is push-only
// from the server's side) purely to keep the read deadline/pong cycle alive.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logx.WithError(err).Warn("realtime: unexpected close")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
