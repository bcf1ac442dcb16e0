package websocket

import "fleettrack-backend/internal/ingest"

// EventBroadcaster adapts the hub to the ingestion core's EventSink: every
// domain event becomes one typed websocket frame. Session and location events
// go to every dashboard; pure security alerts go to admins only. Hub sends
// are buffered channel writes, so the ingestion path never blocks on a slow
// client.
type EventBroadcaster struct {
	hub *Hub
}

func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

func (b *EventBroadcaster) Emit(event string, payload interface{}) {
	frame := map[string]interface{}{
		"type": event,
		"data": payload,
	}

	// Invalid card swipes carry no session state anyone else needs; they are
	// alerts for whoever can act on them.
	if event == ingest.EventInvalidCardAttempt {
		b.hub.BroadcastToRole("admin", frame)
		return
	}
	b.hub.BroadcastAll(frame)
}
