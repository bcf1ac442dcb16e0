package store

import (
	"context"
	"database/sql"
	"errors"

	"fleettrack-backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// VehicleStore implements the ingestion core's VehicleDirectory on Postgres
type VehicleStore struct {
	db *sqlx.DB
}

func NewVehicleStore(db *sqlx.DB) *VehicleStore {
	return &VehicleStore{db: db}
}

func (s *VehicleStore) FindActiveByDeviceID(ctx context.Context, deviceID string) (*models.Vehicle, error) {
	var v models.Vehicle
	err := s.db.GetContext(ctx, &v,
		`SELECT * FROM vehicles WHERE device_id = $1 AND is_active = TRUE`, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *VehicleStore) FindByID(ctx context.Context, id string) (*models.Vehicle, error) {
	var v models.Vehicle
	err := s.db.GetContext(ctx, &v, `SELECT * FROM vehicles WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
