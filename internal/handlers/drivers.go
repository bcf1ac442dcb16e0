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

func GetDrivers(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := "SELECT * FROM drivers"
		if r.URL.Query().Get("include_inactive") != "true" {
			query += " WHERE is_active = TRUE"
		}
		query += " ORDER BY last_name ASC, first_name ASC"

		drivers := []models.Driver{}
		if err := db.Select(&drivers, query); err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to fetch drivers")
			return
		}

		utils.RespondSuccess(w, drivers)
	}
}

func GetDriver(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var driver models.Driver
		err := db.Get(&driver, "SELECT * FROM drivers WHERE id = $1", id)
		if errors.Is(err, sql.ErrNoRows) {
			utils.RespondError(w, http.StatusNotFound, "Driver not found")
			return
		}
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to fetch driver")
			return
		}

		utils.RespondSuccess(w, driver)
	}
}

type DriverRequest struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	RFIDCardID string `json:"rfid_card_id"`
}

func (req *DriverRequest) validate() string {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.RFIDCardID = strings.TrimSpace(req.RFIDCardID)
	if req.FirstName == "" || req.LastName == "" {
		return "first_name and last_name are required"
	}
	if req.RFIDCardID == "" {
		return "rfid_card_id is required"
	}
	return ""
}

func CreateDriver(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DriverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			utils.RespondError(w, http.StatusBadRequest, msg)
			return
		}

		now := time.Now().Unix()
		driver := models.Driver{
			ID:         uuid.NewString(),
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			RFIDCardID: req.RFIDCardID,
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		_, err := db.Exec(`
			INSERT INTO drivers (id, first_name, last_name, rfid_card_id, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, driver.ID, driver.FirstName, driver.LastName, driver.RFIDCardID, driver.IsActive, driver.CreatedAt, driver.UpdatedAt)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				utils.RespondError(w, http.StatusConflict, "RFID card already assigned")
				return
			}
			log.Printf("❌ Failed to create driver: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to create driver")
			return
		}

		log.Printf("✅ Driver created: %s %s", driver.FirstName, driver.LastName)
		utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    driver,
		})
	}
}

func UpdateDriver(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req DriverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			utils.RespondError(w, http.StatusBadRequest, msg)
			return
		}

		result, err := db.Exec(`
			UPDATE drivers
			SET first_name = $1, last_name = $2, rfid_card_id = $3, updated_at = $4
			WHERE id = $5
		`, req.FirstName, req.LastName, req.RFIDCardID, time.Now().Unix(), id)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				utils.RespondError(w, http.StatusConflict, "RFID card already assigned")
				return
			}
			utils.RespondError(w, http.StatusInternalServerError, "Failed to update driver")
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			utils.RespondError(w, http.StatusNotFound, "Driver not found")
			return
		}

		var driver models.Driver
		if err := db.Get(&driver, "SELECT * FROM drivers WHERE id = $1", id); err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load driver")
			return
		}

		utils.RespondSuccess(w, driver)
	}
}

// DeleteDriver deactivates a driver. Their card stops validating immediately;
// past sessions keep the driver reference.
func DeleteDriver(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		result, err := db.Exec(`
			UPDATE drivers SET is_active = FALSE, updated_at = $1
			WHERE id = $2 AND is_active = TRUE
		`, time.Now().Unix(), id)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to delete driver")
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			utils.RespondError(w, http.StatusNotFound, "Driver not found")
			return
		}

		log.Printf("🗑️ Driver deactivated: %s", id)
		utils.RespondSuccess(w, map[string]string{"status": "deactivated"})
	}
}

// GetDriverStats aggregates closed-session history for one driver
func GetDriverStats(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var exists bool
		if err := db.Get(&exists, "SELECT EXISTS (SELECT 1 FROM drivers WHERE id = $1)", id); err != nil || !exists {
			utils.RespondError(w, http.StatusNotFound, "Driver not found")
			return
		}

		var stats models.DriverStats
		err := db.Get(&stats, `
			SELECT $1::TEXT AS driver_id,
			       COUNT(*) AS session_count,
			       COALESCE(SUM(total_distance), 0) AS total_distance,
			       COALESCE(AVG(total_distance), 0) AS avg_distance
			FROM driving_sessions
			WHERE driver_id = $1 AND is_active = FALSE
		`, id)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to compute stats")
			return
		}

		utils.RespondSuccess(w, stats)
	}
}
