package ingest

import (
	"context"
	"math"

	"fleettrack-backend/internal/models"
)

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two coordinates in
// kilometers. Symmetric, zero for identical points.
func Haversine(a, b models.LatLng) float64 {
	lat1Rad := a.Latitude * math.Pi / 180
	lat2Rad := b.Latitude * math.Pi / 180
	deltaLat := (b.Latitude - a.Latitude) * math.Pi / 180
	deltaLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// routeDistanceKm sums consecutive-point distances over an ordered track,
// rounded to 3 decimal places (the precision the session column keeps).
func routeDistanceKm(points []models.LocationLog) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += Haversine(points[i-1].LatLng(), points[i].LatLng())
	}
	return roundKm(total)
}

func roundKm(km float64) float64 {
	return math.Round(km*1000) / 1000
}

// Recompute reloads the session's full track and rewrites its total distance
// from scratch. Recomputing rather than adding the newest segment tolerates
// out-of-order point inserts and keeps rounding error from compounding; the
// gateway amortizes the O(n) cost by sampling (see Ingest). Fewer than two
// points is a no-op.
func (g *Gateway) Recompute(ctx context.Context, s *models.DrivingSession) error {
	points, err := g.locations.ListBySession(ctx, s.ID)
	if err != nil {
		return err
	}
	if len(points) < 2 {
		return nil
	}

	total := routeDistanceKm(points)
	if total == s.TotalDistance {
		return nil
	}
	s.TotalDistance = total
	return g.sessions.Update(ctx, s)
}

// finalDistance computes the frozen total for a session about to close,
// without persisting an intermediate row.
func (g *Gateway) finalDistance(ctx context.Context, s *models.DrivingSession) (float64, error) {
	points, err := g.locations.ListBySession(ctx, s.ID)
	if err != nil {
		return 0, err
	}
	if len(points) < 2 {
		return s.TotalDistance, nil
	}
	return routeDistanceKm(points), nil
}
