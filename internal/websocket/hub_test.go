package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		broadcast:  make(chan []byte, 10),
		register:   make(chan *Client, 1),
		unregister: make(chan *Client, 1),
	}
}

func attachClient(h *Hub) (*Client, uuid.UUID) {
	id := uuid.New()
	c := &Client{userID: id, send: make(chan []byte, 4)}
	h.clients[id] = c
	return c, id
}

func recvJSON(t *testing.T, c *Client) map[string]string {
	t.Helper()
	select {
	case b := <-c.send:
		var got map[string]string
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		return got
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestHubSendToUser(t *testing.T) {
	h := newTestHub()
	rider, riderID := attachClient(h)
	driver, _ := attachClient(h)

	if err := h.SendToUser(riderID, map[string]string{"hello": "rider"}); err != nil {
		t.Fatalf("SendToUser error: %v", err)
	}

	if got := recvJSON(t, rider); got["hello"] != "rider" {
		t.Fatalf("unexpected payload: %v", got)
	}
	select {
	case b := <-driver.send:
		t.Fatalf("driver should not have received anything, got %s", b)
	default:
	}
}

func TestHubSendToParticipants(t *testing.T) {
	h := newTestHub()
	rider, riderID := attachClient(h)
	driver, driverID := attachClient(h)
	bystander, _ := attachClient(h)

	err := h.SendToParticipants([]uuid.UUID{riderID, driverID}, map[string]string{"ping": "pong"})
	if err != nil {
		t.Fatalf("SendToParticipants error: %v", err)
	}

	for _, c := range []*Client{rider, driver} {
		if got := recvJSON(t, c); got["ping"] != "pong" {
			t.Fatalf("unexpected payload: %v", got)
		}
	}
	select {
	case b := <-bystander.send:
		t.Fatalf("bystander should not have received anything, got %s", b)
	default:
	}
}

func TestHubSendToOfflineUser(t *testing.T) {
	h := newTestHub()

	// Sending to a user with no client attached is not an error.
	if err := h.SendToUser(uuid.New(), map[string]string{"hello": "nobody"}); err != nil {
		t.Fatalf("SendToUser to offline user error: %v", err)
	}
}

func TestHubOnlineUsers(t *testing.T) {
	h := newTestHub()
	_, riderID := attachClient(h)

	if !h.IsUserOnline(riderID) {
		t.Error("expected attached client to be online")
	}
	if h.IsUserOnline(uuid.New()) {
		t.Error("expected unknown user to be offline")
	}
	if got := h.GetOnlineUsers(); len(got) != 1 || got[0] != riderID {
		t.Errorf("unexpected online users: %v", got)
	}
}
