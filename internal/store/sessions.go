package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fleettrack-backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// SessionStore persists driving sessions on Postgres. A partial unique index
// on (vehicle_id) WHERE is_active backs the one-open-session invariant, and
// Close only touches rows that are still open, so a sweep racing an ingest
// close resolves to exactly one winner.
type SessionStore struct {
	db *sqlx.DB
}

func NewSessionStore(db *sqlx.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) FindOpenByVehicleID(ctx context.Context, vehicleID string) (*models.DrivingSession, error) {
	var session models.DrivingSession
	err := s.db.GetContext(ctx, &session,
		`SELECT * FROM driving_sessions WHERE vehicle_id = $1 AND is_active = TRUE`, vehicleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionStore) FindByID(ctx context.Context, id string) (*models.DrivingSession, error) {
	var session models.DrivingSession
	err := s.db.GetContext(ctx, &session, `SELECT * FROM driving_sessions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionStore) FindOpen(ctx context.Context) ([]models.DrivingSession, error) {
	var sessions []models.DrivingSession
	err := s.db.SelectContext(ctx, &sessions,
		`SELECT * FROM driving_sessions WHERE is_active = TRUE ORDER BY start_time DESC`)
	return sessions, err
}

func (s *SessionStore) FindOpenStale(ctx context.Context, heartbeatBefore int64) ([]models.DrivingSession, error) {
	var sessions []models.DrivingSession
	err := s.db.SelectContext(ctx, &sessions,
		`SELECT * FROM driving_sessions WHERE is_active = TRUE AND last_heartbeat < $1`, heartbeatBefore)
	return sessions, err
}

func (s *SessionStore) Create(ctx context.Context, session *models.DrivingSession) error {
	query := `INSERT INTO driving_sessions (
		id, vehicle_id, driver_id, start_time, start_latitude, start_longitude,
		total_distance, session_type, last_heartbeat, is_active, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.VehicleID,
		models.ToNullString(session.DriverID),
		session.StartTime,
		session.StartLatitude,
		session.StartLongitude,
		session.TotalDistance,
		session.SessionType,
		session.LastHeartbeat,
		session.IsActive,
		session.CreatedAt,
		session.UpdatedAt,
	)
	return err
}

func (s *SessionStore) Update(ctx context.Context, session *models.DrivingSession) error {
	query := `UPDATE driving_sessions SET
		driver_id = $2,
		session_type = $3,
		total_distance = $4,
		last_heartbeat = $5,
		updated_at = $6
	WHERE id = $1`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		models.ToNullString(session.DriverID),
		session.SessionType,
		session.TotalDistance,
		session.LastHeartbeat,
		time.Now().Unix(),
	)
	return err
}

// Close finalizes an open session. The is_active condition makes it a
// compare-and-swap: a session already closed elsewhere reports false and
// keeps its earlier end state.
func (s *SessionStore) Close(ctx context.Context, id string, endTime int64, end models.LatLng, finalDistance float64) (bool, error) {
	query := `UPDATE driving_sessions SET
		end_time = $2,
		end_latitude = $3,
		end_longitude = $4,
		total_distance = $5,
		is_active = FALSE,
		updated_at = $6
	WHERE id = $1 AND is_active = TRUE`

	res, err := s.db.ExecContext(ctx, query, id, endTime, end.Latitude, end.Longitude, finalDistance, time.Now().Unix())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
