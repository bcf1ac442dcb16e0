package models

// Vehicle represents a fleet vehicle with a mounted tracking device
type Vehicle struct {
	ID          string `json:"id" db:"id"`
	PlateNumber string `json:"plate_number" db:"plate_number"`
	Brand       string `json:"brand" db:"brand"`
	Model       string `json:"model" db:"model"`
	Year        int    `json:"year" db:"year"`
	DeviceID    string `json:"device_id" db:"device_id"` // Identifier reported by the vehicle-mounted unit (e.g. "ESP32_1")
	IsActive    bool   `json:"is_active" db:"is_active"`
	CreatedAt   int64  `json:"created_at" db:"created_at"`
	UpdatedAt   int64  `json:"updated_at" db:"updated_at"`
}

// VehicleSummary is the compact shape embedded in session responses and events
type VehicleSummary struct {
	ID          string `json:"id" db:"id"`
	PlateNumber string `json:"plate_number" db:"plate_number"`
}

func (v *Vehicle) Summary() VehicleSummary {
	return VehicleSummary{ID: v.ID, PlateNumber: v.PlateNumber}
}

// VehicleStats aggregates closed-session totals for a single vehicle
type VehicleStats struct {
	VehicleID     string  `json:"vehicle_id" db:"vehicle_id"`
	SessionCount  int     `json:"session_count" db:"session_count"`
	TotalDistance float64 `json:"total_distance" db:"total_distance"`
	AvgDistance   float64 `json:"avg_distance" db:"avg_distance"`
}
