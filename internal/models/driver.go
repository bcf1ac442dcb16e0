package models

// Driver represents a driver identified by an RFID card
type Driver struct {
	ID         string `json:"id" db:"id"`
	FirstName  string `json:"first_name" db:"first_name"`
	LastName   string `json:"last_name" db:"last_name"`
	RFIDCardID string `json:"rfid_card_id" db:"rfid_card_id"`
	IsActive   bool   `json:"is_active" db:"is_active"`
	CreatedAt  int64  `json:"created_at" db:"created_at"`
	UpdatedAt  int64  `json:"updated_at" db:"updated_at"`
}

// DriverSummary is the compact shape embedded in session responses and events
type DriverSummary struct {
	ID        string `json:"id" db:"id"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
}

func (d *Driver) Summary() DriverSummary {
	return DriverSummary{ID: d.ID, FirstName: d.FirstName, LastName: d.LastName}
}

// DriverStats aggregates closed-session totals for a single driver
type DriverStats struct {
	DriverID      string  `json:"driver_id" db:"driver_id"`
	SessionCount  int     `json:"session_count" db:"session_count"`
	TotalDistance float64 `json:"total_distance" db:"total_distance"`
	AvgDistance   float64 `json:"avg_distance" db:"avg_distance"`
}
