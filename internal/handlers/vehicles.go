package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"fleettrack-backend/internal/models"
	"fleettrack-backend/pkg/utils"
)

func GetVehicles(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := "SELECT * FROM vehicles"
		if r.URL.Query().Get("include_inactive") != "true" {
			query += " WHERE is_active = TRUE"
		}
		query += " ORDER BY plate_number ASC"

		vehicles := []models.Vehicle{}
		if err := db.Select(&vehicles, query); err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to fetch vehicles")
			return
		}

		utils.RespondSuccess(w, vehicles)
	}
}

func GetVehicle(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var vehicle models.Vehicle
		err := db.Get(&vehicle, "SELECT * FROM vehicles WHERE id = $1", id)
		if errors.Is(err, sql.ErrNoRows) {
			utils.RespondError(w, http.StatusNotFound, "Vehicle not found")
			return
		}
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to fetch vehicle")
			return
		}

		utils.RespondSuccess(w, vehicle)
	}
}

type VehicleRequest struct {
	PlateNumber string `json:"plate_number"`
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	Year        int    `json:"year"`
	DeviceID    string `json:"device_id"`
}

func (req *VehicleRequest) validate() string {
	req.PlateNumber = strings.TrimSpace(req.PlateNumber)
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	if req.PlateNumber == "" {
		return "plate_number is required"
	}
	if req.DeviceID == "" {
		return "device_id is required"
	}
	return ""
}

func CreateVehicle(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VehicleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			utils.RespondError(w, http.StatusBadRequest, msg)
			return
		}

		now := time.Now().Unix()
		vehicle := models.Vehicle{
			ID:          uuid.NewString(),
			PlateNumber: req.PlateNumber,
			Brand:       req.Brand,
			Model:       req.Model,
			Year:        req.Year,
			DeviceID:    req.DeviceID,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		_, err := db.Exec(`
			INSERT INTO vehicles (id, plate_number, brand, model, year, device_id, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, vehicle.ID, vehicle.PlateNumber, vehicle.Brand, vehicle.Model, vehicle.Year, vehicle.DeviceID, vehicle.IsActive, vehicle.CreatedAt, vehicle.UpdatedAt)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				utils.RespondError(w, http.StatusConflict, "Plate number or device id already in use")
				return
			}
			log.Printf("❌ Failed to create vehicle: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to create vehicle")
			return
		}

		log.Printf("✅ Vehicle created: %s (%s)", vehicle.PlateNumber, vehicle.DeviceID)
		utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    vehicle,
		})
	}
}

func UpdateVehicle(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req VehicleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			utils.RespondError(w, http.StatusBadRequest, msg)
			return
		}

		result, err := db.Exec(`
			UPDATE vehicles
			SET plate_number = $1, brand = $2, model = $3, year = $4, device_id = $5, updated_at = $6
			WHERE id = $7
		`, req.PlateNumber, req.Brand, req.Model, req.Year, req.DeviceID, time.Now().Unix(), id)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				utils.RespondError(w, http.StatusConflict, "Plate number or device id already in use")
				return
			}
			utils.RespondError(w, http.StatusInternalServerError, "Failed to update vehicle")
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			utils.RespondError(w, http.StatusNotFound, "Vehicle not found")
			return
		}

		var vehicle models.Vehicle
		if err := db.Get(&vehicle, "SELECT * FROM vehicles WHERE id = $1", id); err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load vehicle")
			return
		}

		utils.RespondSuccess(w, vehicle)
	}
}

// DeleteVehicle deactivates a vehicle instead of removing it, keeping its
// session history intact. A deactivated vehicle's device reports are rejected.
func DeleteVehicle(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		result, err := db.Exec(`
			UPDATE vehicles SET is_active = FALSE, updated_at = $1
			WHERE id = $2 AND is_active = TRUE
		`, time.Now().Unix(), id)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to delete vehicle")
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			utils.RespondError(w, http.StatusNotFound, "Vehicle not found")
			return
		}

		log.Printf("🗑️ Vehicle deactivated: %s", id)
		utils.RespondSuccess(w, map[string]string{"status": "deactivated"})
	}
}

// GetVehicleActiveSession returns the vehicle's open session, or null when idle
func GetVehicleActiveSession(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var exists bool
		if err := db.Get(&exists, "SELECT EXISTS (SELECT 1 FROM vehicles WHERE id = $1)", id); err != nil || !exists {
			utils.RespondError(w, http.StatusNotFound, "Vehicle not found")
			return
		}

		var session models.DrivingSession
		err := db.Get(&session, "SELECT * FROM driving_sessions WHERE vehicle_id = $1 AND is_active = TRUE", id)
		if errors.Is(err, sql.ErrNoRows) {
			utils.RespondSuccess(w, nil)
			return
		}
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load session")
			return
		}

		utils.RespondSuccess(w, session)
	}
}

// GetVehicleStats aggregates closed-session history for one vehicle
func GetVehicleStats(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var exists bool
		if err := db.Get(&exists, "SELECT EXISTS (SELECT 1 FROM vehicles WHERE id = $1)", id); err != nil || !exists {
			utils.RespondError(w, http.StatusNotFound, "Vehicle not found")
			return
		}

		var stats models.VehicleStats
		err := db.Get(&stats, `
			SELECT $1::TEXT AS vehicle_id,
			       COUNT(*) AS session_count,
			       COALESCE(SUM(total_distance), 0) AS total_distance,
			       COALESCE(AVG(total_distance), 0) AS avg_distance
			FROM driving_sessions
			WHERE vehicle_id = $1 AND is_active = FALSE
		`, id)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to compute stats")
			return
		}

		utils.RespondSuccess(w, stats)
	}
}
