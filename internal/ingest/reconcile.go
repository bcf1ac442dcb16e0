package ingest

import (
	"fmt"
	"time"

	"fleettrack-backend/internal/models"
)

// Event names broadcast to dashboard subscribers.
const (
	EventSessionStarted     = "sessionStarted"
	EventSessionUpgraded    = "sessionUpgraded"
	EventDriverChanged      = "driverChanged"
	EventSessionDowngraded  = "sessionDowngraded"
	EventInvalidCardAttempt = "invalidCardAttempt"
	EventSessionEnded       = "sessionEnded"
	EventLocationUpdate     = "locationUpdate"
)

// Event is a domain event destined for the EventSink
type Event struct {
	Name    string
	Payload interface{}
}

// CardOutcome is the resolved result of an RFID read carried by a report.
// CardID empty means no card was presented; Driver nil with a CardID set
// means the card did not match any active driver.
type CardOutcome struct {
	CardID string
	Driver *models.Driver
}

func (c CardOutcome) Presented() bool { return c.CardID != "" }
func (c CardOutcome) Valid() bool     { return c.Driver != nil }

// Point is one GPS sample from a device report
type Point struct {
	Latitude  float64
	Longitude float64
	Speed     float64
	Heading   float64
	Accuracy  float64
}

// ReconcileInput carries the already-resolved entities for one report.
// Identity resolution and all I/O belong to the Gateway.
type ReconcileInput struct {
	Vehicle *models.Vehicle
	Current *models.DrivingSession // the vehicle's open session, or nil
	Card    CardOutcome
	Point   Point
	Now     time.Time

	// NewSessionID is assigned to the session Reconcile opens, if it opens one.
	// Supplied by the caller so the decision itself stays deterministic.
	NewSessionID string
}

// CloseOp directs the caller to finalize distance and close a session
type CloseOp struct {
	Session *models.DrivingSession
	EndTime int64
	End     models.LatLng
}

// Decision is the structural outcome of reconciling one report. At most one
// session is closed, one opened and one updated in place; Active always
// points at the session that owns the incoming location sample.
type Decision struct {
	Close  *CloseOp
	Open   *models.DrivingSession
	Update *models.DrivingSession
	Active *models.DrivingSession

	Outcome            string
	InvalidCardAttempt bool
	Events             []Event
}

// Reconcile decides what one device report does to the vehicle's session
// state. Pure: no I/O, total over well-formed resolved inputs. Rules are
// evaluated in order, first match wins:
//
//  1. no open session            -> open (authorized if valid card, else unauthorized)
//  2. invalid card, authorized   -> close current, open unauthorized
//  3. invalid card, otherwise    -> heartbeat only
//  4. valid card, same driver    -> heartbeat only
//  5. valid card, other driver   -> close current, open for the new driver
//  6. valid card, no driver yet  -> upgrade in place
//  7. no card                    -> heartbeat only
func Reconcile(in ReconcileInput) Decision {
	now := in.Now.Unix()
	loc := models.LatLng{Latitude: in.Point.Latitude, Longitude: in.Point.Longitude}

	// Rule 1: nothing open for this vehicle
	if in.Current == nil {
		s := openSession(in, now)
		d := Decision{
			Open:    s,
			Active:  s,
			Outcome: fmt.Sprintf("session started (%s)", s.SessionType),
		}
		d.Events = append(d.Events, Event{Name: EventSessionStarted, Payload: SessionStartedPayload{
			SessionID:   s.ID,
			VehicleID:   s.VehicleID,
			DriverID:    s.DriverID,
			SessionType: s.SessionType,
			StartTime:   s.StartTime,
		}})
		return d
	}

	cur := in.Current

	if in.Card.Presented() && !in.Card.Valid() {
		// Rule 2: an unknown card on an authorized session revokes the
		// driver attribution. The authorized record closes and an
		// unauthorized one takes over.
		if cur.SessionType == models.SessionAuthorized {
			s := openSession(ReconcileInput{
				Vehicle:      in.Vehicle,
				Card:         CardOutcome{}, // new session carries no driver
				Point:        in.Point,
				Now:          in.Now,
				NewSessionID: in.NewSessionID,
			}, now)
			d := Decision{
				Close:              &CloseOp{Session: cur, EndTime: now, End: loc},
				Open:               s,
				Active:             s,
				Outcome:            "invalid card: authorized session downgraded",
				InvalidCardAttempt: true,
			}
			d.Events = append(d.Events, Event{Name: EventSessionDowngraded, Payload: SessionDowngradedPayload{
				OldSessionID:  cur.ID,
				NewSessionID:  s.ID,
				VehicleID:     cur.VehicleID,
				InvalidCardID: in.Card.CardID,
			}})
			return d
		}

		// Rule 3: invalid card on a session that was never authorized
		cur.LastHeartbeat = now
		d := Decision{
			Update:             cur,
			Active:             cur,
			Outcome:            "invalid card attempt recorded",
			InvalidCardAttempt: true,
		}
		d.Events = append(d.Events, Event{Name: EventInvalidCardAttempt, Payload: InvalidCardAttemptPayload{
			SessionID: cur.ID,
			VehicleID: cur.VehicleID,
			CardID:    in.Card.CardID,
		}})
		return d
	}

	if in.Card.Valid() {
		drv := in.Card.Driver

		// Rule 4: the attached driver re-authenticated
		if cur.DriverID != nil && *cur.DriverID == drv.ID {
			cur.LastHeartbeat = now
			return Decision{
				Update:  cur,
				Active:  cur,
				Outcome: "driver re-authenticated, session continues",
			}
		}

		// Rule 5: a different verified driver took over
		if cur.DriverID != nil {
			s := openSession(in, now)
			d := Decision{
				Close:   &CloseOp{Session: cur, EndTime: now, End: loc},
				Open:    s,
				Active:  s,
				Outcome: "driver changed, new session started",
			}
			d.Events = append(d.Events, Event{Name: EventDriverChanged, Payload: DriverChangedPayload{
				OldSessionID: cur.ID,
				NewSessionID: s.ID,
				VehicleID:    cur.VehicleID,
				OldDriverID:  *cur.DriverID,
				NewDriverID:  drv.ID,
			}})
			return d
		}

		// Rule 6: the open session has no driver; the card claims it in place
		id := drv.ID
		cur.DriverID = &id
		cur.SessionType = models.SessionAuthorized
		cur.LastHeartbeat = now
		d := Decision{
			Update:  cur,
			Active:  cur,
			Outcome: "session upgraded to authorized",
		}
		d.Events = append(d.Events, Event{Name: EventSessionUpgraded, Payload: SessionUpgradedPayload{
			SessionID: cur.ID,
			VehicleID: cur.VehicleID,
			DriverID:  drv.ID,
		}})
		return d
	}

	// Rule 7: plain location report, no card
	cur.LastHeartbeat = now
	return Decision{
		Update:  cur,
		Active:  cur,
		Outcome: "location recorded",
	}
}

// openSession builds the new session a decision opens. Driver attribution
// comes from the card outcome; distance starts at zero.
func openSession(in ReconcileInput, now int64) *models.DrivingSession {
	s := &models.DrivingSession{
		ID:             in.NewSessionID,
		VehicleID:      in.Vehicle.ID,
		StartTime:      now,
		StartLatitude:  in.Point.Latitude,
		StartLongitude: in.Point.Longitude,
		TotalDistance:  0,
		SessionType:    models.SessionUnauthorized,
		LastHeartbeat:  now,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.Card.Valid() {
		id := in.Card.Driver.ID
		s.DriverID = &id
		s.SessionType = models.SessionAuthorized
	}
	return s
}
