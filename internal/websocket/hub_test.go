package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"fleettrack-backend/internal/ingest"

	"github.com/stretchr/testify/assert"
)

func recvFrame(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case data := <-c.send:
		var frame map[string]interface{}
		assert.NoError(t, json.Unmarshal(data, &frame))
		return frame
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for websocket frame")
		return nil
	}
}

// Session and location events reach every dashboard; invalid card alerts
// reach admins only. Per-client send channels are FIFO, so a viewer's next
// frame after the alert proves the alert was never queued for them.
func TestEventBroadcasterRoleRouting(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	admin := NewClient("user-admin", "admin", nil, hub)
	viewer := NewClient("user-viewer", "viewer", nil, hub)
	// register sends complete only once the hub loop picked them up, so the
	// broadcasts below observe both clients
	hub.register <- admin
	hub.register <- viewer

	b := NewEventBroadcaster(hub)

	b.Emit(ingest.EventLocationUpdate, ingest.LocationUpdatePayload{SessionID: "s1", VehicleID: "veh-1"})
	assert.Equal(t, ingest.EventLocationUpdate, recvFrame(t, admin)["type"])
	assert.Equal(t, ingest.EventLocationUpdate, recvFrame(t, viewer)["type"])

	b.Emit(ingest.EventInvalidCardAttempt, ingest.InvalidCardAttemptPayload{SessionID: "s1", VehicleID: "veh-1", CardID: "BADCARD"})
	b.Emit(ingest.EventSessionEnded, ingest.SessionEndedPayload{SessionID: "s1", VehicleID: "veh-1"})

	assert.Equal(t, ingest.EventInvalidCardAttempt, recvFrame(t, admin)["type"])
	assert.Equal(t, ingest.EventSessionEnded, recvFrame(t, admin)["type"])

	// the viewer's very next frame is the session end, not the alert
	assert.Equal(t, ingest.EventSessionEnded, recvFrame(t, viewer)["type"])
}

func TestBroadcastToUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	a := NewClient("user-a", "viewer", nil, hub)
	other := NewClient("user-b", "viewer", nil, hub)
	hub.register <- a
	hub.register <- other

	hub.BroadcastToUser("user-a", map[string]string{"hello": "a"})
	hub.BroadcastAll(map[string]string{"hello": "everyone"})

	assert.Equal(t, "a", recvFrame(t, a)["hello"])
	assert.Equal(t, "everyone", recvFrame(t, a)["hello"])
	assert.Equal(t, "everyone", recvFrame(t, other)["hello"])
}
