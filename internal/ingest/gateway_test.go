package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fleettrack-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func newTestGateway(sink EventSink) (*Gateway, *memStore) {
	store := newMemStore()
	vehicles := &fakeVehicles{byDevice: map[string]models.Vehicle{
		"ESP32_1": {ID: "veh-1", PlateNumber: "34ABC123", DeviceID: "ESP32_1", IsActive: true},
		"ESP32_2": {ID: "veh-2", PlateNumber: "34XYZ789", DeviceID: "ESP32_2", IsActive: false},
	}}
	drivers := &fakeDrivers{byCard: map[string]models.Driver{
		"D42CARD": {ID: "drv-42", FirstName: "Ayşe", LastName: "Demir", RFIDCardID: "D42CARD", IsActive: true},
		"D7CARD":  {ID: "drv-7", FirstName: "Mehmet", LastName: "Kaya", RFIDCardID: "D7CARD", IsActive: true},
	}}

	cfg := DefaultConfig()
	cfg.RecomputeSampleEvery = 0 // keep the hot path deterministic in tests

	return NewGateway(vehicles, drivers, store, store, sink, cfg), store
}

// The four literal hand-off scenarios, run as one continuous stream for a
// single vehicle: start unauthorized, upgrade in place, driver change,
// downgrade on an unknown card.
func TestIngestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	sink := &recordSink{}
	g, store := newTestGateway(sink)

	// 1. first report, no card: a new unauthorized session
	res, err := g.Ingest(ctx, Report{DeviceID: "ESP32_1", Latitude: 41.01, Longitude: 28.98})
	assert.NoError(t, err)
	assert.Equal(t, models.SessionUnauthorized, res.SessionType)
	assert.False(t, res.Authorized)
	assert.Nil(t, res.Driver)
	assert.Equal(t, GPSQualityGood, res.GPSQuality)
	assert.Contains(t, sink.names(), EventSessionStarted)
	assert.Contains(t, sink.names(), EventLocationUpdate)
	firstID := res.SessionID

	// 2. valid card: same session upgraded in place
	sink.reset()
	res, err = g.Ingest(ctx, Report{DeviceID: "ESP32_1", Latitude: 41.011, Longitude: 28.981, CardID: "D42CARD"})
	assert.NoError(t, err)
	assert.Equal(t, firstID, res.SessionID)
	assert.Equal(t, models.SessionAuthorized, res.SessionType)
	assert.True(t, res.Authorized)
	if assert.NotNil(t, res.Driver) {
		assert.Equal(t, "drv-42", res.Driver.ID)
	}
	assert.Contains(t, sink.names(), EventSessionUpgraded)

	upgraded, err := store.FindByID(ctx, firstID)
	assert.NoError(t, err)
	assert.True(t, upgraded.IsActive)
	assert.Equal(t, "drv-42", *upgraded.DriverID)

	// 3. a different valid card: old session closed, new one for drv-7
	sink.reset()
	res, err = g.Ingest(ctx, Report{DeviceID: "ESP32_1", Latitude: 41.012, Longitude: 28.982, CardID: "D7CARD"})
	assert.NoError(t, err)
	assert.NotEqual(t, firstID, res.SessionID)
	assert.Equal(t, "drv-7", res.Driver.ID)
	assert.Contains(t, sink.names(), EventDriverChanged)
	secondID := res.SessionID

	closed, err := store.FindByID(ctx, firstID)
	assert.NoError(t, err)
	assert.False(t, closed.IsActive)
	assert.NotNil(t, closed.EndTime)
	assert.GreaterOrEqual(t, *closed.EndTime, closed.StartTime)
	assert.Equal(t, 41.012, *closed.EndLatitude)
	// distance was finalized from the two recorded points
	assert.InDelta(t, Haversine(
		models.LatLng{Latitude: 41.01, Longitude: 28.98},
		models.LatLng{Latitude: 41.011, Longitude: 28.981},
	), closed.TotalDistance, 0.001)

	// 4. unrecognized card: authorized session downgraded
	sink.reset()
	res, err = g.Ingest(ctx, Report{DeviceID: "ESP32_1", Latitude: 41.013, Longitude: 28.983, CardID: "BADCARD"})
	assert.NoError(t, err)
	assert.NotEqual(t, secondID, res.SessionID)
	assert.Equal(t, models.SessionUnauthorized, res.SessionType)
	assert.True(t, res.InvalidCardAttempt)
	assert.Nil(t, res.Driver)
	assert.Contains(t, sink.names(), EventSessionDowngraded)

	// invariant: never more than one open session for the vehicle
	open, err := store.FindOpen(ctx)
	assert.NoError(t, err)
	assert.Len(t, open, 1)
	assert.Equal(t, res.SessionID, open[0].ID)
}

func TestIngestRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGateway(nil)

	tests := []struct {
		name     string
		report   Report
		expected error
	}{
		{
			name:     "unknown device",
			report:   Report{DeviceID: "ESP32_404", Latitude: 41.01, Longitude: 28.98},
			expected: ErrVehicleNotFound,
		},
		{
			name:     "inactive vehicle",
			report:   Report{DeviceID: "ESP32_2", Latitude: 41.01, Longitude: 28.98},
			expected: ErrVehicleNotFound,
		},
		{
			name:     "zero island",
			report:   Report{DeviceID: "ESP32_1", Latitude: 0, Longitude: 0},
			expected: ErrInvalidCoordinates,
		},
		{
			name:     "latitude out of range",
			report:   Report{DeviceID: "ESP32_1", Latitude: 91, Longitude: 28.98},
			expected: ErrInvalidCoordinates,
		},
		{
			name:     "longitude out of range",
			report:   Report{DeviceID: "ESP32_1", Latitude: 41.01, Longitude: 181},
			expected: ErrInvalidCoordinates,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := g.Ingest(ctx, test.report)
			assert.ErrorIs(t, err, test.expected)
		})
	}

	// hard failures must leave no state behind
	open, err := store.FindOpen(ctx)
	assert.NoError(t, err)
	assert.Empty(t, open)
}

func TestIngestSentinelCoordinate(t *testing.T) {
	ctx := context.Background()
	sink := &recordSink{}
	g, store := newTestGateway(sink)

	nofix := DefaultConfig().NoFix

	// the placeholder point is accepted: session continuity beats accuracy
	res, err := g.Ingest(ctx, Report{DeviceID: "ESP32_1", Latitude: nofix.Latitude, Longitude: nofix.Longitude})
	assert.NoError(t, err)
	assert.Equal(t, GPSQualityDefault, res.GPSQuality)

	// the point is persisted and the heartbeat moved
	points, err := store.ListBySession(ctx, res.SessionID)
	assert.NoError(t, err)
	assert.Len(t, points, 1)

	ev, ok := sink.last(EventLocationUpdate)
	if assert.True(t, ok) {
		assert.Equal(t, GPSQualityDefault, ev.Payload.(LocationUpdatePayload).GPSQuality)
	}
}

func TestIngestDeviceTimestampPreserved(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGateway(nil)

	res, err := g.Ingest(ctx, Report{DeviceID: "ESP32_1", Latitude: 41.01, Longitude: 28.98, Timestamp: 1700000000})
	assert.NoError(t, err)

	points, err := store.ListBySession(ctx, res.SessionID)
	assert.NoError(t, err)
	if assert.Len(t, points, 1) {
		assert.Equal(t, int64(1700000000), points[0].Timestamp)
	}
}

func TestForceClose(t *testing.T) {
	ctx := context.Background()
	sink := &recordSink{}
	g, store := newTestGateway(sink)

	res, err := g.Ingest(ctx, Report{DeviceID: "ESP32_1", Latitude: 41.01, Longitude: 28.98, CardID: "D42CARD"})
	assert.NoError(t, err)
	_, err = g.Ingest(ctx, Report{DeviceID: "ESP32_1", Latitude: 41.02, Longitude: 28.99})
	assert.NoError(t, err)

	sink.reset()
	closed, err := g.ForceClose(ctx, res.SessionID, "manager request")
	assert.NoError(t, err)
	assert.False(t, closed.IsActive)
	assert.NotNil(t, closed.EndTime)
	// end location comes from the latest recorded point
	assert.Equal(t, 41.02, *closed.EndLatitude)
	assert.Greater(t, closed.TotalDistance, 0.0)

	ev, ok := sink.last(EventSessionEnded)
	if assert.True(t, ok) {
		assert.Equal(t, "manager request", ev.Payload.(SessionEndedPayload).Reason)
	}

	// closing again is a NotFound, not a double close
	_, err = g.ForceClose(ctx, res.SessionID, "again")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = g.ForceClose(ctx, "no-such-session", "whatever")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// distance frozen at close: later stray point must not change it
	final := closed.TotalDistance
	assert.NoError(t, store.Append(ctx, &models.LocationLog{SessionID: closed.ID, Latitude: 41.5, Longitude: 29.5, Timestamp: 99999}))
	reloaded, err := store.FindByID(ctx, closed.ID)
	assert.NoError(t, err)
	assert.Equal(t, final, reloaded.TotalDistance)
}

// Hammer one vehicle from many goroutines with a mix of card outcomes. The
// per-vehicle lock serializes the load-decide-persist window, so whatever
// interleaving the scheduler picks, the vehicle ends with exactly one open
// session and every superseded session is fully closed.
func TestIngestConcurrentReportsSingleVehicle(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGateway(&recordSink{})

	cards := []string{"", "D42CARD", "D7CARD", "BADCARD"}
	const reports = 200

	var wg sync.WaitGroup
	for i := 0; i < reports; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := g.Ingest(ctx, Report{
				DeviceID:  "ESP32_1",
				Latitude:  41.01 + float64(i)*0.0001,
				Longitude: 28.98,
				CardID:    cards[i%len(cards)],
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	open, err := store.FindOpen(ctx)
	assert.NoError(t, err)
	assert.Len(t, open, 1)

	// every non-open session must be a complete closed record
	totalPoints := 0
	store.mu.Lock()
	for _, s := range store.sessions {
		totalPoints += len(store.points[s.ID])
		if s.IsActive {
			continue
		}
		assert.NotNil(t, s.EndTime, "closed session %s missing end time", s.ID)
		assert.NotNil(t, s.EndLatitude, "closed session %s missing end location", s.ID)
	}
	store.mu.Unlock()

	// exactly one location row per report, none lost to the contention
	assert.Equal(t, reports, totalPoints)
}

func TestValidateCard(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGateway(nil)

	// free vehicle, known card: both summaries come back
	res, err := g.ValidateCard(ctx, "ESP32_1", "D42CARD")
	assert.NoError(t, err)
	if assert.NotNil(t, res) {
		assert.Equal(t, "drv-42", res.Driver.ID)
		assert.Equal(t, "34ABC123", res.Vehicle.PlateNumber)
	}

	// unknown card
	_, err = g.ValidateCard(ctx, "ESP32_1", "BADCARD")
	assert.ErrorIs(t, err, ErrInvalidCard)

	// valid card but no active vehicle behind the device
	_, err = g.ValidateCard(ctx, "ESP32_404", "D42CARD")
	assert.ErrorIs(t, err, ErrVehicleNotFound)
	_, err = g.ValidateCard(ctx, "ESP32_2", "D42CARD")
	assert.ErrorIs(t, err, ErrVehicleNotFound)

	// once a session is open the vehicle is busy
	_, err = g.Ingest(ctx, Report{DeviceID: "ESP32_1", Latitude: 41.01, Longitude: 28.98})
	assert.NoError(t, err)
	_, err = g.ValidateCard(ctx, "ESP32_1", "D42CARD")
	assert.ErrorIs(t, err, ErrVehicleInUse)
}

func TestPointQuality(t *testing.T) {
	g, _ := newTestGateway(nil)
	nofix := DefaultConfig().NoFix

	assert.Equal(t, GPSQualityDefault, g.PointQuality(nofix.Latitude, nofix.Longitude))
	assert.Equal(t, GPSQualityGood, g.PointQuality(41.01, 28.98))
}

func TestListOpenSessionsPropagatesLookupFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	vehicles := &fakeVehicles{byDevice: map[string]models.Vehicle{
		"ESP32_1": {ID: "veh-1", PlateNumber: "34ABC123", DeviceID: "ESP32_1", IsActive: true},
	}}
	drivers := &fakeDrivers{byCard: map[string]models.Driver{}}
	g := NewGateway(vehicles, drivers, store, store, nil, DefaultConfig())

	_, err := g.Ingest(ctx, Report{DeviceID: "ESP32_1", Latitude: 41.01, Longitude: 28.98})
	assert.NoError(t, err)

	boom := errors.New("connection refused")
	vehicles.findErr = boom

	_, err = g.ListOpenSessions(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestListOpenSessions(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGateway(nil)

	res, err := g.Ingest(ctx, Report{DeviceID: "ESP32_1", Latitude: 41.01, Longitude: 28.98, CardID: "D42CARD"})
	assert.NoError(t, err)

	open, err := g.ListOpenSessions(ctx)
	assert.NoError(t, err)
	if assert.Len(t, open, 1) {
		assert.Equal(t, res.SessionID, open[0].Session.ID)
		if assert.NotNil(t, open[0].Vehicle) {
			assert.Equal(t, "34ABC123", open[0].Vehicle.PlateNumber)
		}
		if assert.NotNil(t, open[0].Driver) {
			assert.Equal(t, "Ayşe", open[0].Driver.FirstName)
		}
	}
}
