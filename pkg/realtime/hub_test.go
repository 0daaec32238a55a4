package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

func newTestClient(h *Hub, userID kernel.UserID) *Client {
	return &Client{
		send:   make(chan []byte, sendBuffer),
		hub:    h,
		userID: userID,
	}
}

func TestHub_NotifySessionRevoked_DeliversToOwner(t *testing.T) {
	h := NewHub(context.Background())
	go h.Run()
	defer h.Stop()

	userID := kernel.NewUserID("user-1")
	other := kernel.NewUserID("user-2")

	c := newTestClient(h, userID)
	h.register <- c
	oc := newTestClient(h, other)
	h.register <- oc

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, h.ConnectionCount(userID))
	assert.Equal(t, 1, h.ConnectionCount(other))

	h.NotifySessionRevoked(userID, kernel.NewSessionID("sess-1"))

	select {
	case msg := <-c.send:
		var ev Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, EventSessionRevoked, ev.Type)
		assert.Equal(t, "sess-1", ev.SessionID)
	case <-time.After(time.Second):
		t.Fatal("expected event on owner's channel")
	}

	select {
	case <-oc.send:
		t.Fatal("other user should not receive the event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_FullQueueDropsClient(t *testing.T) {
	h := NewHub(context.Background())
	go h.Run()
	defer h.Stop()

	userID := kernel.NewUserID("user-3")
	c := newTestClient(h, userID)
	h.register <- c
	time.Sleep(10 * time.Millisecond)

	for i := 0; i < sendBuffer; i++ {
		h.NotifySessionRevoked(userID, kernel.NewSessionID("fill"))
	}
	h.NotifySessionRevoked(userID, kernel.NewSessionID("overflow"))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, h.ConnectionCount(userID))
}
