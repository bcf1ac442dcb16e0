package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"fleettrack-backend/internal/models"
	"fleettrack-backend/pkg/utils"
)

type DashboardSummary struct {
	TotalVehicles      int     `json:"total_vehicles" db:"total_vehicles"`
	TotalDrivers       int     `json:"total_drivers" db:"total_drivers"`
	ActiveSessions     int     `json:"active_sessions" db:"active_sessions"`
	UnauthorizedActive int     `json:"unauthorized_active" db:"unauthorized_active"`
	SessionsToday      int     `json:"sessions_today" db:"sessions_today"`
	DistanceToday      float64 `json:"distance_today" db:"distance_today"`
}

type TopDriver struct {
	models.DriverSummary
	SessionCount  int     `json:"session_count" db:"session_count"`
	TotalDistance float64 `json:"total_distance" db:"total_distance"`
}

type TopVehicle struct {
	models.VehicleSummary
	SessionCount  int     `json:"session_count" db:"session_count"`
	TotalDistance float64 `json:"total_distance" db:"total_distance"`
}

// GetDashboard returns the headline numbers together with the most active
// drivers and vehicles of the last 30 days.
func GetDashboard(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Unix()
		monthAgo := now.AddDate(0, 0, -30).Unix()

		var summary DashboardSummary
		err := db.Get(&summary, `
			SELECT
				(SELECT COUNT(*) FROM vehicles WHERE is_active = TRUE) AS total_vehicles,
				(SELECT COUNT(*) FROM drivers WHERE is_active = TRUE) AS total_drivers,
				(SELECT COUNT(*) FROM driving_sessions WHERE is_active = TRUE) AS active_sessions,
				(SELECT COUNT(*) FROM driving_sessions WHERE is_active = TRUE AND session_type = 'unauthorized') AS unauthorized_active,
				(SELECT COUNT(*) FROM driving_sessions WHERE start_time >= $1) AS sessions_today,
				(SELECT COALESCE(SUM(total_distance), 0) FROM driving_sessions WHERE start_time >= $1) AS distance_today
		`, dayStart)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to compute dashboard")
			return
		}

		topDrivers := []TopDriver{}
		err = db.Select(&topDrivers, `
			SELECT d.id, d.first_name, d.last_name,
			       COUNT(s.id) AS session_count,
			       COALESCE(SUM(s.total_distance), 0) AS total_distance
			FROM drivers d
			JOIN driving_sessions s ON s.driver_id = d.id
			WHERE s.start_time >= $1
			GROUP BY d.id, d.first_name, d.last_name
			ORDER BY total_distance DESC
			LIMIT 5
		`, monthAgo)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to compute top drivers")
			return
		}

		topVehicles := []TopVehicle{}
		err = db.Select(&topVehicles, `
			SELECT v.id, v.plate_number,
			       COUNT(s.id) AS session_count,
			       COALESCE(SUM(s.total_distance), 0) AS total_distance
			FROM vehicles v
			JOIN driving_sessions s ON s.vehicle_id = v.id
			WHERE s.start_time >= $1
			GROUP BY v.id, v.plate_number
			ORDER BY total_distance DESC
			LIMIT 5
		`, monthAgo)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to compute top vehicles")
			return
		}

		utils.RespondSuccess(w, map[string]interface{}{
			"summary":      summary,
			"top_drivers":  topDrivers,
			"top_vehicles": topVehicles,
		})
	}
}

type DailyStat struct {
	Day               string  `json:"day" db:"day"`
	SessionCount      int     `json:"session_count" db:"session_count"`
	AuthorizedCount   int     `json:"authorized_count" db:"authorized_count"`
	UnauthorizedCount int     `json:"unauthorized_count" db:"unauthorized_count"`
	TotalDistance     float64 `json:"total_distance" db:"total_distance"`
}

// GetDailyStats returns a per-day session series for charting. Days without
// sessions are absent; the dashboard fills gaps client-side.
func GetDailyStats(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := 14
		if v := r.URL.Query().Get("days"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 90 {
				days = n
			}
		}
		since := time.Now().AddDate(0, 0, -days).Unix()

		stats := []DailyStat{}
		err := db.Select(&stats, `
			SELECT TO_CHAR(TO_TIMESTAMP(start_time), 'YYYY-MM-DD') AS day,
			       COUNT(*) AS session_count,
			       COUNT(*) FILTER (WHERE session_type = 'authorized') AS authorized_count,
			       COUNT(*) FILTER (WHERE session_type = 'unauthorized') AS unauthorized_count,
			       COALESCE(SUM(total_distance), 0) AS total_distance
			FROM driving_sessions
			WHERE start_time >= $1
			GROUP BY day
			ORDER BY day ASC
		`, since)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to compute daily stats")
			return
		}

		utils.RespondSuccess(w, stats)
	}
}

type SessionHistoryEntry struct {
	models.DrivingSession
	PlateNumber     string  `json:"plate_number" db:"plate_number"`
	DriverFirstName *string `json:"driver_first_name" db:"driver_first_name"`
	DriverLastName  *string `json:"driver_last_name" db:"driver_last_name"`
}

// GetSessionHistory returns closed sessions, newest first, with optional
// vehicle_id / driver_id / session_type filters and limit/offset paging.
func GetSessionHistory(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		limit := 50
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}
		offset := 0
		if v := q.Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		where := "WHERE s.is_active = FALSE"
		args := []interface{}{}
		addFilter := func(column, value string) {
			args = append(args, value)
			where += fmt.Sprintf(" AND %s = $%d", column, len(args))
		}
		if v := q.Get("vehicle_id"); v != "" {
			addFilter("s.vehicle_id", v)
		}
		if v := q.Get("driver_id"); v != "" {
			addFilter("s.driver_id", v)
		}
		switch v := q.Get("session_type"); v {
		case "":
		case "authorized", "unauthorized", "idle":
			addFilter("s.session_type", v)
		default:
			utils.RespondError(w, http.StatusBadRequest, "Invalid session_type filter")
			return
		}

		var total int
		countQuery := "SELECT COUNT(*) FROM driving_sessions s " + where
		if err := db.Get(&total, countQuery, args...); err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to count sessions")
			return
		}

		args = append(args, limit, offset)
		query := fmt.Sprintf(`
			SELECT s.*, v.plate_number,
			       d.first_name AS driver_first_name,
			       d.last_name AS driver_last_name
			FROM driving_sessions s
			JOIN vehicles v ON v.id = s.vehicle_id
			LEFT JOIN drivers d ON d.id = s.driver_id
			%s
			ORDER BY s.start_time DESC
			LIMIT $%d OFFSET $%d
		`, where, len(args)-1, len(args))

		entries := []SessionHistoryEntry{}
		if err := db.Select(&entries, query, args...); err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to fetch session history")
			return
		}

		utils.RespondSuccess(w, map[string]interface{}{
			"total":    total,
			"limit":    limit,
			"offset":   offset,
			"sessions": entries,
		})
	}
}

// GetSessionRoute returns the full GPS track of one session, oldest first,
// ready to draw as a polyline.
func GetSessionRoute(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var exists bool
		if err := db.Get(&exists, "SELECT EXISTS (SELECT 1 FROM driving_sessions WHERE id = $1)", id); err != nil || !exists {
			utils.RespondError(w, http.StatusNotFound, "Session not found")
			return
		}

		points := []models.LocationLog{}
		err := db.Select(&points, `
			SELECT * FROM location_logs
			WHERE session_id = $1
			ORDER BY timestamp ASC, id ASC
		`, id)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to fetch route")
			return
		}

		utils.RespondSuccess(w, points)
	}
}
