package services

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"fleettrack-backend/internal/ingest"
	"fleettrack-backend/internal/models"
)

// AlertNotifier pushes FCM notifications to admin devices when a vehicle
// starts moving without a valid driver card. It plugs into the ingestion
// pipeline as an event sink and ignores everything except security events.
type AlertNotifier struct {
	db  *sqlx.DB
	fcm *FCMService
}

func NewAlertNotifier(db *sqlx.DB, fcm *FCMService) *AlertNotifier {
	return &AlertNotifier{db: db, fcm: fcm}
}

// Emit implements ingest.EventSink
func (n *AlertNotifier) Emit(event string, payload interface{}) {
	var title, body string
	data := map[string]string{"event": event}

	switch event {
	case ingest.EventSessionStarted:
		p, ok := payload.(ingest.SessionStartedPayload)
		if !ok || p.SessionType != models.SessionUnauthorized {
			return
		}
		title = "Unauthorized vehicle movement"
		body = fmt.Sprintf("Vehicle %s started moving without a driver card", p.VehicleID)
		data["vehicle_id"] = p.VehicleID
		data["session_id"] = p.SessionID
	case ingest.EventSessionDowngraded:
		p, ok := payload.(ingest.SessionDowngradedPayload)
		if !ok {
			return
		}
		title = "Driving session downgraded"
		body = fmt.Sprintf("Vehicle %s is now in an unauthorized session", p.VehicleID)
		data["vehicle_id"] = p.VehicleID
		data["session_id"] = p.NewSessionID
	case ingest.EventInvalidCardAttempt:
		p, ok := payload.(ingest.InvalidCardAttemptPayload)
		if !ok {
			return
		}
		title = "Invalid card swipe"
		body = fmt.Sprintf("Unknown card %s presented on vehicle %s", p.CardID, p.VehicleID)
		data["vehicle_id"] = p.VehicleID
		data["card_id"] = p.CardID
	default:
		return
	}

	tokens, err := n.adminTokens()
	if err != nil {
		log.Printf("⚠️ Failed to load FCM tokens: %v", err)
		return
	}

	for _, token := range tokens {
		if err := n.fcm.SendAlert(token, title, body, data); err != nil {
			log.Printf("⚠️ Failed to send FCM alert: %v", err)
		}
	}
}

func (n *AlertNotifier) adminTokens() ([]string, error) {
	var tokens []string
	err := n.db.Select(&tokens, `
		SELECT ft.token
		FROM fcm_tokens ft
		JOIN users u ON u.id = ft.user_id
		WHERE u.role = 'admin'
	`)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}
