package session

import (
	"context"
	"log"
	"time"

	"github.com/suturelab/tissuesim/internal/models"
)

// StartExpiryChecker closes sessions that have gone IdleTimeout without a
// contact, checking every interval until ctx ends.
func (m *Manager) StartExpiryChecker(ctx context.Context, interval time.Duration) {
	if m.opts.IdleTimeout <= 0 || interval <= 0 {
		log.Println("[SESSION] Idle timeout disabled; expiry checker not started")
		return
	}

	log.Printf("[SESSION] Expiry checker started (idle=%v every=%v)", m.opts.IdleTimeout, interval)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("[SESSION] Expiry checker stopping")
				return
			case <-ticker.C:
				m.expireIdle(ctx)
			}
		}
	}()
}

// expireIdle closes every session idle past the timeout and returns their ids.
func (m *Manager) expireIdle(ctx context.Context) []string {
	cutoff := m.now().Add(-m.opts.IdleTimeout)

	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if s.LastActivity().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		log.Printf("[SESSION] %s idle since before %s, expiring", id, cutoff.Format(time.RFC3339))
		m.Close(ctx, id, models.SessionExpired)
	}
	return stale
}
