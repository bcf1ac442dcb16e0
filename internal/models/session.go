package models

import "database/sql"

// SessionType classifies whether a driving session has a verified driver
type SessionType string

const (
	SessionAuthorized   SessionType = "authorized"   // Verified driver attached
	SessionUnauthorized SessionType = "unauthorized" // Vehicle moving with no verified driver
	SessionIdle         SessionType = "idle"         // Reserved column default; reconciliation never produces it
)

// LatLng is a GPS coordinate pair in degrees
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DrivingSession is a continuous interval of vehicle operation, optionally
// attributed to a driver. At most one session per vehicle is open at a time.
type DrivingSession struct {
	ID             string      `json:"id" db:"id"`
	VehicleID      string      `json:"vehicle_id" db:"vehicle_id"`
	DriverID       *string     `json:"driver_id" db:"driver_id"` // nil while unauthorized
	StartTime      int64       `json:"start_time" db:"start_time"`
	EndTime        *int64      `json:"end_time" db:"end_time"`
	StartLatitude  float64     `json:"start_latitude" db:"start_latitude"`
	StartLongitude float64     `json:"start_longitude" db:"start_longitude"`
	EndLatitude    *float64    `json:"end_latitude" db:"end_latitude"`
	EndLongitude   *float64    `json:"end_longitude" db:"end_longitude"`
	TotalDistance  float64     `json:"total_distance" db:"total_distance"` // kilometers, frozen at close
	SessionType    SessionType `json:"session_type" db:"session_type"`
	LastHeartbeat  int64       `json:"last_heartbeat" db:"last_heartbeat"`
	IsActive       bool        `json:"is_active" db:"is_active"`
	CreatedAt      int64       `json:"created_at" db:"created_at"`
	UpdatedAt      int64       `json:"updated_at" db:"updated_at"`
}

// StartLocation returns the session's opening coordinate
func (s *DrivingSession) StartLocation() LatLng {
	return LatLng{Latitude: s.StartLatitude, Longitude: s.StartLongitude}
}

// DurationSeconds returns the session length so far (or final length once closed)
func (s *DrivingSession) DurationSeconds(now int64) int64 {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	d := end - s.StartTime
	if d < 0 {
		d = 0
	}
	return d
}

// ToNullInt64 converts a pointer to int64 to sql.NullInt64
func ToNullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

// FromNullInt64 converts sql.NullInt64 to pointer to int64
func FromNullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}

// ToNullString converts a pointer to string to sql.NullString
func ToNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}

// FromNullString converts sql.NullString to pointer to string
func FromNullString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	return &n.String
}
