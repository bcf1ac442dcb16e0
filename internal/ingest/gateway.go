package ingest

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"fleettrack-backend/internal/models"

	"github.com/google/uuid"
)

// GPS quality flags attached to location updates. "default" marks the fixed
// placeholder position a device emits before it has satellite fix; such
// points keep the heartbeat alive but are non-authoritative for display and
// never trigger a sampled recompute.
const (
	GPSQualityGood    = "good"
	GPSQualityDefault = "default"
)

// Config tunes the ingestion gateway
type Config struct {
	// RecomputeSampleEvery triggers a full distance recompute on roughly
	// 1-in-N good-fix reports. 0 disables sampling (close still recomputes).
	RecomputeSampleEvery int

	// NoFix is the placeholder coordinate the device firmware reports
	// before it has acquired GPS fix.
	NoFix models.LatLng

	// SessionTimeout is how long a session may go without a heartbeat
	// before the sweeper closes it.
	SessionTimeout time.Duration

	// SweepInterval is the period of the background sweep loop.
	SweepInterval time.Duration
}

// DefaultConfig matches the reference deployment
func DefaultConfig() Config {
	return Config{
		RecomputeSampleEvery: 10,
		NoFix:                models.LatLng{Latitude: 41.0082, Longitude: 28.9784},
		SessionTimeout:       10 * time.Minute,
		SweepInterval:        5 * time.Minute,
	}
}

// Report is one raw sample from a vehicle-mounted device
type Report struct {
	DeviceID  string  `json:"device_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     float64 `json:"speed"`
	Heading   float64 `json:"heading"`
	Accuracy  float64 `json:"accuracy"`
	CardID    string  `json:"rfid_card_id"`
	Timestamp int64   `json:"timestamp"` // unix seconds; 0 means receipt time
}

// IngestResult summarizes what one report did. Business outcomes (authorized,
// invalid card) are flags here, distinct from the hard errors Ingest returns.
type IngestResult struct {
	SessionID          string                `json:"session_id"`
	SessionType        models.SessionType    `json:"session_type"`
	Authorized         bool                  `json:"authorized"`
	InvalidCardAttempt bool                  `json:"invalid_card_attempt"`
	GPSQuality         string                `json:"gps_quality"`
	Outcome            string                `json:"outcome"`
	Vehicle            models.VehicleSummary `json:"vehicle"`
	Driver             *models.DriverSummary `json:"driver,omitempty"`
}

// OpenSession pairs an open session with its resolved summaries
type OpenSession struct {
	Session models.DrivingSession  `json:"session"`
	Vehicle *models.VehicleSummary `json:"vehicle,omitempty"`
	Driver  *models.DriverSummary  `json:"driver,omitempty"`
}

// Gateway is the ingestion boundary: it resolves identities, runs the
// reconciler, persists its decision and relays events. Reports for the same
// vehicle are serialized through a per-vehicle lock held across the
// load-decide-persist window; different vehicles proceed in parallel.
type Gateway struct {
	vehicles  VehicleDirectory
	drivers   DriverDirectory
	sessions  SessionStore
	locations LocationStore
	sink      EventSink
	cfg       Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGateway(vehicles VehicleDirectory, drivers DriverDirectory, sessions SessionStore, locations LocationStore, sink EventSink, cfg Config) *Gateway {
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = DefaultConfig().SessionTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Gateway{
		vehicles:  vehicles,
		drivers:   drivers,
		sessions:  sessions,
		locations: locations,
		sink:      sink,
		cfg:       cfg,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (g *Gateway) vehicleLock(vehicleID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[vehicleID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[vehicleID] = l
	}
	return l
}

// classifyPoint validates coordinate sanity and grades GPS quality.
// The device emits its configured placeholder position before satellite fix;
// those points are accepted (to keep the session heartbeat alive) but
// flagged. A raw (0,0) that is not the placeholder is garbage and rejected.
func (g *Gateway) classifyPoint(lat, lon float64) (string, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", ErrInvalidCoordinates
	}
	if lat == g.cfg.NoFix.Latitude && lon == g.cfg.NoFix.Longitude {
		return GPSQualityDefault, nil
	}
	if lat == 0 && lon == 0 {
		return "", ErrInvalidCoordinates
	}
	return GPSQualityGood, nil
}

// PointQuality grades an already-stored coordinate against the configured
// no-fix placeholder, so read paths label cached or logged points the same
// way the ingest path did.
func (g *Gateway) PointQuality(lat, lon float64) string {
	quality, err := g.classifyPoint(lat, lon)
	if err != nil {
		return GPSQualityDefault
	}
	return quality
}

// Ingest processes one device report end to end: validate, resolve, decide,
// persist, notify. Side effects are at most one session created, one closed,
// one updated in place, and exactly one location row inserted.
func (g *Gateway) Ingest(ctx context.Context, report Report) (*IngestResult, error) {
	quality, err := g.classifyPoint(report.Latitude, report.Longitude)
	if err != nil {
		return nil, err
	}

	vehicle, err := g.vehicles.FindActiveByDeviceID(ctx, report.DeviceID)
	if err != nil {
		return nil, err
	}
	if vehicle == nil {
		return nil, ErrVehicleNotFound
	}

	card := CardOutcome{CardID: report.CardID}
	if card.Presented() {
		driver, err := g.drivers.FindActiveByCardID(ctx, report.CardID)
		if err != nil {
			return nil, err
		}
		card.Driver = driver // nil stays nil: invalid card, a decision input
	}

	now := time.Now()
	reportedAt := report.Timestamp
	if reportedAt == 0 {
		reportedAt = now.Unix()
	}

	lock := g.vehicleLock(vehicle.ID)
	lock.Lock()
	defer lock.Unlock()

	current, err := g.sessions.FindOpenByVehicleID(ctx, vehicle.ID)
	if err != nil {
		return nil, err
	}

	dec := Reconcile(ReconcileInput{
		Vehicle:      vehicle,
		Current:      current,
		Card:         card,
		Point:        Point{Latitude: report.Latitude, Longitude: report.Longitude, Speed: report.Speed, Heading: report.Heading, Accuracy: report.Accuracy},
		Now:          now,
		NewSessionID: uuid.NewString(),
	})

	if dec.Close != nil {
		fd, err := g.finalDistance(ctx, dec.Close.Session)
		if err != nil {
			return nil, err
		}
		if _, err := g.sessions.Close(ctx, dec.Close.Session.ID, dec.Close.EndTime, dec.Close.End, fd); err != nil {
			return nil, err
		}
	}
	if dec.Open != nil {
		if err := g.sessions.Create(ctx, dec.Open); err != nil {
			return nil, err
		}
	} else if dec.Update != nil {
		if err := g.sessions.Update(ctx, dec.Update); err != nil {
			return nil, err
		}
	}

	point := &models.LocationLog{
		SessionID: dec.Active.ID,
		Latitude:  report.Latitude,
		Longitude: report.Longitude,
		Speed:     report.Speed,
		Heading:   report.Heading,
		Accuracy:  report.Accuracy,
		Timestamp: reportedAt,
		CreatedAt: now.Unix(),
	}
	if err := g.locations.Append(ctx, point); err != nil {
		return nil, err
	}

	// Sampled recompute keeps the running total roughly current without
	// paying the O(n) reload on every report. Placeholder fixes never
	// count, and a freshly opened session has nothing to sum yet.
	if quality == GPSQualityGood && dec.Open == nil && g.cfg.RecomputeSampleEvery > 0 {
		if rand.Intn(g.cfg.RecomputeSampleEvery) == 0 {
			if err := g.Recompute(ctx, dec.Active); err != nil {
				return nil, err
			}
		}
	}

	for _, ev := range dec.Events {
		g.sink.Emit(ev.Name, ev.Payload)
	}
	g.sink.Emit(EventLocationUpdate, LocationUpdatePayload{
		SessionID:   dec.Active.ID,
		VehicleID:   vehicle.ID,
		DriverID:    dec.Active.DriverID,
		SessionType: dec.Active.SessionType,
		Latitude:    report.Latitude,
		Longitude:   report.Longitude,
		Speed:       report.Speed,
		Heading:     report.Heading,
		Timestamp:   reportedAt,
		GPSQuality:  quality,
	})

	result := &IngestResult{
		SessionID:          dec.Active.ID,
		SessionType:        dec.Active.SessionType,
		Authorized:         dec.Active.SessionType == models.SessionAuthorized,
		InvalidCardAttempt: dec.InvalidCardAttempt,
		GPSQuality:         quality,
		Outcome:            dec.Outcome,
		Vehicle:            vehicle.Summary(),
	}
	if card.Valid() {
		s := card.Driver.Summary()
		result.Driver = &s
	}
	return result, nil
}

// CardValidation is the answer to a standalone card pre-check
type CardValidation struct {
	Driver  models.DriverSummary  `json:"driver"`
	Vehicle models.VehicleSummary `json:"vehicle"`
}

// ValidateCard checks a card swipe without ingesting a report, so device
// firmware can give the driver immediate feedback: the card must map to an
// active driver, the device to an active vehicle, and the vehicle must not
// already have an open session.
func (g *Gateway) ValidateCard(ctx context.Context, deviceID, cardID string) (*CardValidation, error) {
	driver, err := g.drivers.FindActiveByCardID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if driver == nil {
		return nil, ErrInvalidCard
	}

	vehicle, err := g.vehicles.FindActiveByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if vehicle == nil {
		return nil, ErrVehicleNotFound
	}

	open, err := g.sessions.FindOpenByVehicleID(ctx, vehicle.ID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, ErrVehicleInUse
	}

	return &CardValidation{Driver: driver.Summary(), Vehicle: vehicle.Summary()}, nil
}

// closeOpenSession finalizes and closes one session: exact distance from the
// full track, end location from the most recent point (start location when
// the track is empty), conditional close, then a sessionEnded event. Shared
// by the sweeper and ForceClose so the two paths cannot diverge. Returns
// false when a concurrent ingest already closed the session.
func (g *Gateway) closeOpenSession(ctx context.Context, s *models.DrivingSession, endTime int64, reason string) (bool, error) {
	fd, err := g.finalDistance(ctx, s)
	if err != nil {
		return false, err
	}

	end := s.StartLocation()
	if last, err := g.locations.LastBySession(ctx, s.ID); err != nil {
		return false, err
	} else if last != nil {
		end = last.LatLng()
	}

	ok, err := g.sessions.Close(ctx, s.ID, endTime, end, fd)
	if err != nil || !ok {
		return ok, err
	}

	g.sink.Emit(EventSessionEnded, SessionEndedPayload{
		SessionID:     s.ID,
		VehicleID:     s.VehicleID,
		EndTime:       endTime,
		TotalDistance: fd,
		Reason:        reason,
	})
	return true, nil
}

// ForceClose ends a specific open session on behalf of an operator
func (g *Gateway) ForceClose(ctx context.Context, sessionID, reason string) (*models.DrivingSession, error) {
	s, err := g.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil || !s.IsActive {
		return nil, ErrSessionNotFound
	}

	lock := g.vehicleLock(s.VehicleID)
	lock.Lock()
	defer lock.Unlock()

	ok, err := g.closeOpenSession(ctx, s, time.Now().Unix(), reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotFound
	}

	closed, err := g.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// ListOpenSessions returns every open session with resolved driver and
// vehicle summaries for the dashboard.
func (g *Gateway) ListOpenSessions(ctx context.Context) ([]OpenSession, error) {
	sessions, err := g.sessions.FindOpen(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]OpenSession, 0, len(sessions))
	for _, s := range sessions {
		entry := OpenSession{Session: s}
		v, err := g.vehicles.FindByID(ctx, s.VehicleID)
		if err != nil {
			return nil, err
		}
		if v != nil {
			sum := v.Summary()
			entry.Vehicle = &sum
		}
		if s.DriverID != nil {
			d, err := g.drivers.FindByID(ctx, *s.DriverID)
			if err != nil {
				return nil, err
			}
			if d != nil {
				sum := d.Summary()
				entry.Driver = &sum
			}
		}
		out = append(out, entry)
	}
	return out, nil
}
