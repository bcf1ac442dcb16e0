package store

import (
	"context"
	"database/sql"
	"errors"

	"fleettrack-backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// LocationStore persists GPS samples on Postgres. Rows are append-only.
type LocationStore struct {
	db *sqlx.DB
}

func NewLocationStore(db *sqlx.DB) *LocationStore {
	return &LocationStore{db: db}
}

func (s *LocationStore) Append(ctx context.Context, p *models.LocationLog) error {
	query := `INSERT INTO location_logs (
		session_id, latitude, longitude, speed, heading, accuracy, timestamp, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`

	return s.db.QueryRowContext(ctx, query,
		p.SessionID, p.Latitude, p.Longitude, p.Speed, p.Heading, p.Accuracy, p.Timestamp, p.CreatedAt,
	).Scan(&p.ID)
}

func (s *LocationStore) ListBySession(ctx context.Context, sessionID string) ([]models.LocationLog, error) {
	var points []models.LocationLog
	err := s.db.SelectContext(ctx, &points,
		`SELECT * FROM location_logs WHERE session_id = $1 ORDER BY timestamp ASC, id ASC`, sessionID)
	return points, err
}

func (s *LocationStore) LastBySession(ctx context.Context, sessionID string) (*models.LocationLog, error) {
	var p models.LocationLog
	err := s.db.GetContext(ctx, &p,
		`SELECT * FROM location_logs WHERE session_id = $1 ORDER BY timestamp DESC, id DESC LIMIT 1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
