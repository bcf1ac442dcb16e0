package ingest

import "errors"

// Hard failures surfaced to the device/API layer. An invalid RFID card is
// deliberately not among them: it is a reconciliation input, not an error.
var (
	// ErrInvalidCoordinates rejects structurally invalid lat/lon before any
	// state is touched.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrVehicleNotFound means the device id does not map to an active vehicle.
	ErrVehicleNotFound = errors.New("vehicle not found or inactive")

	// ErrSessionNotFound means a force-close targeted a nonexistent or
	// already-closed session.
	ErrSessionNotFound = errors.New("active session not found")

	// ErrInvalidCard means a standalone card check (not a report, where the
	// invalid card feeds the reconciler instead) found no active driver.
	ErrInvalidCard = errors.New("invalid rfid card or driver not authorized")

	// ErrVehicleInUse means a card pre-check hit a vehicle that already has
	// an open session.
	ErrVehicleInUse = errors.New("vehicle is already in use")
)
