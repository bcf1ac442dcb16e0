package ingest

import (
	"context"
	"testing"
	"time"

	"fleettrack-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSweepTimeouts(t *testing.T) {
	ctx := context.Background()
	sink := &recordSink{}
	g, store := newTestGateway(sink)

	now := time.Unix(100000, 0)
	timeout := 10 * time.Minute

	// stale: last heartbeat 11 minutes ago
	stale := &models.DrivingSession{
		ID: "stale", VehicleID: "veh-1", SessionType: models.SessionUnauthorized,
		StartTime: now.Unix() - 3600, StartLatitude: 41.0, StartLongitude: 29.0,
		LastHeartbeat: now.Add(-11 * time.Minute).Unix(), IsActive: true,
	}
	assert.NoError(t, store.Create(ctx, stale))
	assert.NoError(t, store.Append(ctx, &models.LocationLog{SessionID: "stale", Latitude: 41.0, Longitude: 29.0, Timestamp: 1}))
	assert.NoError(t, store.Append(ctx, &models.LocationLog{SessionID: "stale", Latitude: 41.001, Longitude: 29.0, Timestamp: 2}))

	// fresh: heartbeat 2 minutes ago, must survive
	fresh := &models.DrivingSession{
		ID: "fresh", VehicleID: "veh-2", SessionType: models.SessionUnauthorized,
		StartTime: now.Unix() - 600, StartLatitude: 41.1, StartLongitude: 29.1,
		LastHeartbeat: now.Add(-2 * time.Minute).Unix(), IsActive: true,
	}
	assert.NoError(t, store.Create(ctx, fresh))

	count, err := g.SweepTimeouts(ctx, now, timeout)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	closed, err := store.FindByID(ctx, "stale")
	assert.NoError(t, err)
	assert.False(t, closed.IsActive)
	assert.Equal(t, now.Unix(), *closed.EndTime)
	// end location is the most recent recorded point
	assert.Equal(t, 41.001, *closed.EndLatitude)
	assert.InDelta(t, 0.111, closed.TotalDistance, 0.001)

	survivor, err := store.FindByID(ctx, "fresh")
	assert.NoError(t, err)
	assert.True(t, survivor.IsActive)

	ev, ok := sink.last(EventSessionEnded)
	if assert.True(t, ok) {
		p := ev.Payload.(SessionEndedPayload)
		assert.Equal(t, "stale", p.SessionID)
		assert.Equal(t, "timeout", p.Reason)
	}

	// the next sweep sees nothing: no double close
	count, err = g.SweepTimeouts(ctx, now, timeout)
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSweepFallsBackToStartLocation(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGateway(nil)

	now := time.Unix(100000, 0)
	s := &models.DrivingSession{
		ID: "bare", VehicleID: "veh-1", SessionType: models.SessionUnauthorized,
		StartTime: now.Unix() - 3600, StartLatitude: 41.2, StartLongitude: 29.2,
		LastHeartbeat: now.Add(-time.Hour).Unix(), IsActive: true,
	}
	assert.NoError(t, store.Create(ctx, s))

	count, err := g.SweepTimeouts(ctx, now, 10*time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	closed, _ := store.FindByID(ctx, "bare")
	assert.Equal(t, 41.2, *closed.EndLatitude)
	assert.Equal(t, 29.2, *closed.EndLongitude)
	assert.Equal(t, 0.0, closed.TotalDistance)
}

// A session closed between scan and close (e.g. by a concurrent ingest) is
// skipped, not closed twice or overwritten.
func TestSweepSkipsConcurrentlyClosedSession(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGateway(nil)

	now := time.Unix(100000, 0)
	s := &models.DrivingSession{
		ID: "racy", VehicleID: "veh-1", SessionType: models.SessionUnauthorized,
		StartTime: now.Unix() - 3600, StartLatitude: 41.0, StartLongitude: 29.0,
		LastHeartbeat: now.Add(-time.Hour).Unix(), IsActive: true,
	}
	assert.NoError(t, store.Create(ctx, s))

	// the sweeper scanned this session...
	scanned, err := store.FindByID(ctx, "racy")
	assert.NoError(t, err)

	// ...and an ingest closed it before the sweeper got to it
	ok, err := store.Close(ctx, "racy", now.Unix()-5, models.LatLng{Latitude: 41.0, Longitude: 29.0}, 1.234)
	assert.NoError(t, err)
	assert.True(t, ok)

	// the conditional close no-ops on the stale snapshot
	ok, err = g.closeOpenSession(ctx, scanned, now.Unix(), "timeout")
	assert.NoError(t, err)
	assert.False(t, ok)

	// the earlier close's state stands
	closed, _ := store.FindByID(ctx, "racy")
	assert.Equal(t, now.Unix()-5, *closed.EndTime)
	assert.Equal(t, 1.234, closed.TotalDistance)
}
