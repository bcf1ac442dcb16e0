package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"fleettrack-backend/internal/ingest"
	"fleettrack-backend/pkg/utils"
)

// DeviceReport accepts one GPS sample from a vehicle-mounted device and runs
// it through the ingestion gateway. Business outcomes (unauthorized session,
// invalid card) still return 200 with flags set; only malformed input or an
// unknown device fail the request.
func DeviceReport(gw *ingest.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var report ingest.Report
		if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if report.DeviceID == "" {
			utils.RespondError(w, http.StatusBadRequest, "device_id is required")
			return
		}

		result, err := gw.Ingest(r.Context(), report)
		if err != nil {
			switch {
			case errors.Is(err, ingest.ErrInvalidCoordinates):
				utils.RespondError(w, http.StatusBadRequest, "Invalid coordinates")
			case errors.Is(err, ingest.ErrVehicleNotFound):
				utils.RespondError(w, http.StatusNotFound, "No active vehicle for device")
			default:
				log.Printf("❌ Ingest failed for device %s: %v", report.DeviceID, err)
				utils.RespondError(w, http.StatusInternalServerError, "Failed to process report")
			}
			return
		}

		utils.RespondSuccess(w, result)
	}
}

type ValidateRFIDRequest struct {
	DeviceID string `json:"device_id"`
	CardID   string `json:"rfid_card_id"`
}

// ValidateRFID lets device firmware check a card swipe without submitting a
// location report, so it can give the driver immediate LED feedback. The card
// must resolve to an active driver, the device to an active vehicle, and the
// vehicle must be free.
func ValidateRFID(gw *ingest.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ValidateRFIDRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.CardID == "" {
			utils.RespondError(w, http.StatusBadRequest, "rfid_card_id is required")
			return
		}
		if req.DeviceID == "" {
			utils.RespondError(w, http.StatusBadRequest, "device_id is required")
			return
		}

		result, err := gw.ValidateCard(r.Context(), req.DeviceID, req.CardID)
		if err != nil {
			switch {
			case errors.Is(err, ingest.ErrInvalidCard):
				log.Printf("⚠️ Invalid card %s on device %s", req.CardID, req.DeviceID)
				utils.RespondError(w, http.StatusNotFound, "Invalid RFID card or driver not authorized")
			case errors.Is(err, ingest.ErrVehicleNotFound):
				utils.RespondError(w, http.StatusNotFound, "Vehicle not found or inactive")
			case errors.Is(err, ingest.ErrVehicleInUse):
				utils.RespondError(w, http.StatusBadRequest, "Vehicle is already in use")
			default:
				log.Printf("❌ Card validation failed for device %s: %v", req.DeviceID, err)
				utils.RespondError(w, http.StatusInternalServerError, "Failed to validate card")
			}
			return
		}

		utils.RespondSuccess(w, result)
	}
}
