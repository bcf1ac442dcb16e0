package ingest

import (
	"context"
	"sync"

	"fleettrack-backend/internal/models"
)

// In-memory fakes for the directory/store interfaces. Session reads hand out
// copies so that, as with a real database, nothing is persisted until the
// gateway explicitly writes.

type fakeVehicles struct {
	byDevice map[string]models.Vehicle
	findErr  error // injected lookup failure
}

func (f *fakeVehicles) FindActiveByDeviceID(_ context.Context, deviceID string) (*models.Vehicle, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	v, ok := f.byDevice[deviceID]
	if !ok || !v.IsActive {
		return nil, nil
	}
	c := v
	return &c, nil
}

func (f *fakeVehicles) FindByID(_ context.Context, id string) (*models.Vehicle, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, v := range f.byDevice {
		if v.ID == id {
			c := v
			return &c, nil
		}
	}
	return nil, nil
}

type fakeDrivers struct {
	byCard map[string]models.Driver
}

func (f *fakeDrivers) FindActiveByCardID(_ context.Context, cardID string) (*models.Driver, error) {
	d, ok := f.byCard[cardID]
	if !ok || !d.IsActive {
		return nil, nil
	}
	c := d
	return &c, nil
}

func (f *fakeDrivers) FindByID(_ context.Context, id string) (*models.Driver, error) {
	for _, d := range f.byCard {
		if d.ID == id {
			c := d
			return &c, nil
		}
	}
	return nil, nil
}

type memStore struct {
	mu       sync.Mutex
	sessions map[string]models.DrivingSession
	points   map[string][]models.LocationLog
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[string]models.DrivingSession),
		points:   make(map[string][]models.LocationLog),
	}
}

func (m *memStore) FindOpenByVehicleID(_ context.Context, vehicleID string) (*models.DrivingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.VehicleID == vehicleID && s.IsActive {
			c := s
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindByID(_ context.Context, id string) (*models.DrivingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	c := s
	return &c, nil
}

func (m *memStore) FindOpen(_ context.Context) ([]models.DrivingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DrivingSession
	for _, s := range m.sessions {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) FindOpenStale(_ context.Context, heartbeatBefore int64) ([]models.DrivingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DrivingSession
	for _, s := range m.sessions {
		if s.IsActive && s.LastHeartbeat < heartbeatBefore {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) Create(_ context.Context, s *models.DrivingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *memStore) Update(_ context.Context, s *models.DrivingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *memStore) Close(_ context.Context, id string, endTime int64, end models.LatLng, finalDistance float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !s.IsActive {
		return false, nil
	}
	s.EndTime = &endTime
	s.EndLatitude = &end.Latitude
	s.EndLongitude = &end.Longitude
	s.TotalDistance = finalDistance
	s.IsActive = false
	m.sessions[id] = s
	return true, nil
}

func (m *memStore) Append(_ context.Context, p *models.LocationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	m.points[p.SessionID] = append(m.points[p.SessionID], *p)
	return nil
}

func (m *memStore) ListBySession(_ context.Context, sessionID string) ([]models.LocationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	points := append([]models.LocationLog(nil), m.points[sessionID]...)
	// fake inserts in arrival order; Timestamp ties are fine for these tests
	for i := 1; i < len(points); i++ {
		for j := i; j > 0 && points[j].Timestamp < points[j-1].Timestamp; j-- {
			points[j], points[j-1] = points[j-1], points[j]
		}
	}
	return points, nil
}

func (m *memStore) LastBySession(_ context.Context, sessionID string) (*models.LocationLog, error) {
	points, _ := m.ListBySession(nil, sessionID)
	if len(points) == 0 {
		return nil, nil
	}
	c := points[len(points)-1]
	return &c, nil
}

type recordSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordSink) Emit(event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: event, Payload: payload})
}

func (r *recordSink) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Name)
	}
	return out
}

func (r *recordSink) last(name string) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Name == name {
			return r.events[i], true
		}
	}
	return Event{}, false
}

func (r *recordSink) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
