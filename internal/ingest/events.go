package ingest

import "fleettrack-backend/internal/models"

// Payloads carried by the events in reconcile.go. These are the shapes
// dashboard websocket clients and the alerting sink receive.

type SessionStartedPayload struct {
	SessionID   string             `json:"session_id"`
	VehicleID   string             `json:"vehicle_id"`
	DriverID    *string            `json:"driver_id"`
	SessionType models.SessionType `json:"session_type"`
	StartTime   int64              `json:"start_time"`
}

type SessionUpgradedPayload struct {
	SessionID string `json:"session_id"`
	VehicleID string `json:"vehicle_id"`
	DriverID  string `json:"driver_id"`
}

type DriverChangedPayload struct {
	OldSessionID string `json:"old_session_id"`
	NewSessionID string `json:"new_session_id"`
	VehicleID    string `json:"vehicle_id"`
	OldDriverID  string `json:"old_driver_id"`
	NewDriverID  string `json:"new_driver_id"`
}

type SessionDowngradedPayload struct {
	OldSessionID  string `json:"old_session_id"`
	NewSessionID  string `json:"new_session_id"`
	VehicleID     string `json:"vehicle_id"`
	InvalidCardID string `json:"invalid_card_id"`
}

type InvalidCardAttemptPayload struct {
	SessionID string `json:"session_id"`
	VehicleID string `json:"vehicle_id"`
	CardID    string `json:"card_id"`
}

type SessionEndedPayload struct {
	SessionID     string  `json:"session_id"`
	VehicleID     string  `json:"vehicle_id"`
	EndTime       int64   `json:"end_time"`
	TotalDistance float64 `json:"total_distance"`
	Reason        string  `json:"reason"` // "timeout", or the reason supplied to a force close
}

type LocationUpdatePayload struct {
	SessionID   string             `json:"session_id"`
	VehicleID   string             `json:"vehicle_id"`
	DriverID    *string            `json:"driver_id"`
	SessionType models.SessionType `json:"session_type"`
	Latitude    float64            `json:"latitude"`
	Longitude   float64            `json:"longitude"`
	Speed       float64            `json:"speed"`
	Heading     float64            `json:"heading"`
	Timestamp   int64              `json:"timestamp"`
	GPSQuality  string             `json:"gps_quality"`
}
