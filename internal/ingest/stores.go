package ingest

import (
	"context"

	"fleettrack-backend/internal/models"
)

// VehicleDirectory resolves vehicles for the ingestion path. Lookups return
// (nil, nil) when nothing matches.
type VehicleDirectory interface {
	FindActiveByDeviceID(ctx context.Context, deviceID string) (*models.Vehicle, error)
	FindByID(ctx context.Context, id string) (*models.Vehicle, error)
}

// DriverDirectory resolves drivers by RFID card. Lookups return (nil, nil)
// when nothing matches.
type DriverDirectory interface {
	FindActiveByCardID(ctx context.Context, cardID string) (*models.Driver, error)
	FindByID(ctx context.Context, id string) (*models.Driver, error)
}

// SessionStore persists driving sessions. Close must be conditional on the
// session still being open and report whether it actually closed anything,
// so a sweep racing an ingest close no-ops instead of overwriting newer state.
type SessionStore interface {
	FindOpenByVehicleID(ctx context.Context, vehicleID string) (*models.DrivingSession, error)
	FindByID(ctx context.Context, id string) (*models.DrivingSession, error)
	FindOpen(ctx context.Context) ([]models.DrivingSession, error)
	FindOpenStale(ctx context.Context, heartbeatBefore int64) ([]models.DrivingSession, error)
	Create(ctx context.Context, s *models.DrivingSession) error
	Update(ctx context.Context, s *models.DrivingSession) error
	Close(ctx context.Context, id string, endTime int64, end models.LatLng, finalDistance float64) (bool, error)
}

// LocationStore persists GPS samples. Append-only.
type LocationStore interface {
	Append(ctx context.Context, p *models.LocationLog) error
	ListBySession(ctx context.Context, sessionID string) ([]models.LocationLog, error)
	LastBySession(ctx context.Context, sessionID string) (*models.LocationLog, error)
}

// EventSink receives domain events for dashboards and alerting. Delivery is
// best-effort: implementations must not block the ingestion path, and a
// failed delivery never rolls back persisted state.
type EventSink interface {
	Emit(event string, payload interface{})
}

// MultiSink fans one event out to several sinks
type MultiSink []EventSink

func (m MultiSink) Emit(event string, payload interface{}) {
	for _, s := range m {
		s.Emit(event, payload)
	}
}

// NopSink discards all events
type NopSink struct{}

func (NopSink) Emit(string, interface{}) {}
