package store

import (
	"context"
	"database/sql"
	"errors"

	"fleettrack-backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// DriverStore implements the ingestion core's DriverDirectory on Postgres
type DriverStore struct {
	db *sqlx.DB
}

func NewDriverStore(db *sqlx.DB) *DriverStore {
	return &DriverStore{db: db}
}

func (s *DriverStore) FindActiveByCardID(ctx context.Context, cardID string) (*models.Driver, error) {
	var d models.Driver
	err := s.db.GetContext(ctx, &d,
		`SELECT * FROM drivers WHERE rfid_card_id = $1 AND is_active = TRUE`, cardID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DriverStore) FindByID(ctx context.Context, id string) (*models.Driver, error) {
	var d models.Driver
	err := s.db.GetContext(ctx, &d, `SELECT * FROM drivers WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
