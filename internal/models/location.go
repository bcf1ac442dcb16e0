package models

// LocationLog is a single GPS sample tied to a driving session. Append-only.
type LocationLog struct {
	ID        int64   `json:"id" db:"id"`
	SessionID string  `json:"session_id" db:"session_id"`
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
	Speed     float64 `json:"speed" db:"speed"`       // km/h as reported by the device
	Heading   float64 `json:"heading" db:"heading"`   // 0-360 degrees
	Accuracy  float64 `json:"accuracy" db:"accuracy"` // meters
	Timestamp int64   `json:"timestamp" db:"timestamp"`
	CreatedAt int64   `json:"created_at" db:"created_at"`
}

func (l *LocationLog) LatLng() LatLng {
	return LatLng{Latitude: l.Latitude, Longitude: l.Longitude}
}
