package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"fleettrack-backend/internal/ingest"

	"github.com/redis/go-redis/v9"
)

const liveTTL = 5 * time.Minute

// LiveCache keeps each vehicle's latest position in Redis for the live map.
// It subscribes to ingest events as an EventSink, so the cache stays current
// without the hot path knowing about Redis. Entries expire on their own: a
// vehicle that stops reporting drops off the map.
type LiveCache struct {
	rdb *redis.Client
}

func NewLiveCache(redisURL string) (*LiveCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &LiveCache{rdb: rdb}, nil
}

func liveKey(vehicleID string) string {
	return fmt.Sprintf("vehicle:%s:live", vehicleID)
}

// Emit implements ingest.EventSink. Only location updates matter here;
// everything else is ignored. Cache failures are logged and dropped, never
// surfaced to the ingestion path.
func (c *LiveCache) Emit(event string, payload interface{}) {
	if event != ingest.EventLocationUpdate {
		return
	}
	update, ok := payload.(ingest.LocationUpdatePayload)
	if !ok {
		return
	}

	b, err := json.Marshal(update)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.rdb.Set(ctx, liveKey(update.VehicleID), b, liveTTL).Err(); err != nil {
		log.Printf("⚠️  Live cache set failed for vehicle %s: %v", update.VehicleID, err)
	}
}

// GetPosition returns the cached latest position for a vehicle, or nil when
// the cache has nothing fresh.
func (c *LiveCache) GetPosition(ctx context.Context, vehicleID string) (*ingest.LocationUpdatePayload, error) {
	raw, err := c.rdb.Get(ctx, liveKey(vehicleID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var update ingest.LocationUpdatePayload
	if err := json.Unmarshal(raw, &update); err != nil {
		return nil, err
	}
	return &update, nil
}
