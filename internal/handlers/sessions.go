package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"fleettrack-backend/internal/ingest"
	"fleettrack-backend/internal/models"
	"fleettrack-backend/internal/store"
	"fleettrack-backend/pkg/utils"
)

// GetActiveSessions returns every open driving session with resolved vehicle
// and driver summaries for the live dashboard.
func GetActiveSessions(gw *ingest.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := gw.ListOpenSessions(r.Context())
		if err != nil {
			log.Printf("❌ Failed to list active sessions: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to list active sessions")
			return
		}
		utils.RespondSuccess(w, sessions)
	}
}

func GetSession(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var session models.DrivingSession
		err := db.Get(&session, "SELECT * FROM driving_sessions WHERE id = $1", id)
		if errors.Is(err, sql.ErrNoRows) {
			utils.RespondError(w, http.StatusNotFound, "Session not found")
			return
		}
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load session")
			return
		}

		utils.RespondSuccess(w, session)
	}
}

type EndSessionRequest struct {
	Reason string `json:"reason"`
}

// EndSession force-closes an open session from the dashboard. The gateway
// finalizes distance and end location the same way a timeout sweep would.
func EndSession(gw *ingest.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req EndSessionRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		if req.Reason == "" {
			req.Reason = "manual"
		}

		closed, err := gw.ForceClose(r.Context(), id, req.Reason)
		if err != nil {
			if errors.Is(err, ingest.ErrSessionNotFound) {
				utils.RespondError(w, http.StatusNotFound, "No open session with that id")
				return
			}
			log.Printf("❌ Failed to end session %s: %v", id, err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to end session")
			return
		}

		log.Printf("🛑 Session %s ended manually", id)
		utils.RespondSuccess(w, closed)
	}
}

// GetLivePositions returns the latest known position for every vehicle with an
// open session. Redis serves hot entries; vehicles the cache has dropped fall
// back to the most recent logged point.
func GetLivePositions(db *sqlx.DB, gw *ingest.Gateway, cache *store.LiveCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := gw.ListOpenSessions(r.Context())
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to list active sessions")
			return
		}

		positions := make([]ingest.LocationUpdatePayload, 0, len(sessions))
		for _, s := range sessions {
			if cache != nil {
				if pos, err := cache.GetPosition(r.Context(), s.Session.VehicleID); err == nil && pos != nil {
					positions = append(positions, *pos)
					continue
				}
			}

			var last models.LocationLog
			err := db.Get(&last, `
				SELECT * FROM location_logs
				WHERE session_id = $1
				ORDER BY timestamp DESC, id DESC
				LIMIT 1
			`, s.Session.ID)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				utils.RespondError(w, http.StatusInternalServerError, "Failed to load positions")
				return
			}

			positions = append(positions, ingest.LocationUpdatePayload{
				SessionID:   s.Session.ID,
				VehicleID:   s.Session.VehicleID,
				DriverID:    s.Session.DriverID,
				SessionType: s.Session.SessionType,
				Latitude:    last.Latitude,
				Longitude:   last.Longitude,
				Speed:       last.Speed,
				Heading:     last.Heading,
				Timestamp:   last.Timestamp,
				GPSQuality:  gw.PointQuality(last.Latitude, last.Longitude),
			})
		}

		utils.RespondSuccess(w, positions)
	}
}
