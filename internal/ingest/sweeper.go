package ingest

import (
	"context"
	"log"
	"time"
)

// SweepTimeouts closes every open session whose last heartbeat is older than
// the timeout. This is the only path that ends a session without a new device
// report, so a disconnected vehicle never holds a session open forever.
// Returns the number of sessions closed. Safe against concurrent ingests:
// the conditional close skips sessions that were closed between scan and
// close time.
func (g *Gateway) SweepTimeouts(ctx context.Context, now time.Time, timeout time.Duration) (int, error) {
	cutoff := now.Add(-timeout).Unix()
	stale, err := g.sessions.FindOpenStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	closed := 0
	for i := range stale {
		s := stale[i]

		lock := g.vehicleLock(s.VehicleID)
		lock.Lock()
		ok, err := g.closeOpenSession(ctx, &s, now.Unix(), "timeout")
		lock.Unlock()
		if err != nil {
			return closed, err
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}

// RunSweeper executes the heartbeat sweep on a fixed interval until the
// context is cancelled. Intended to run as a single background goroutine.
func (g *Gateway) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.SweepInterval)
	defer ticker.Stop()

	log.Printf("🧹 Session sweeper started (interval=%s, timeout=%s)", g.cfg.SweepInterval, g.cfg.SessionTimeout)

	for {
		select {
		case <-ctx.Done():
			log.Println("🧹 Session sweeper stopped")
			return
		case <-ticker.C:
			count, err := g.SweepTimeouts(ctx, time.Now(), g.cfg.SessionTimeout)
			if err != nil {
				log.Printf("❌ Session sweep error: %v", err)
				continue
			}
			if count > 0 {
				log.Printf("🧹 Session sweep completed: %d sessions ended", count)
			}
		}
	}
}
