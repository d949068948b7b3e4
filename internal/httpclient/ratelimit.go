package httpclient

import (
	"sync"
	"time"
)

// rateLimiter enforces a minimum inter-request interval globally across the
// client: a single bucket with no per-key map, since this engine rate-limits
// its own outbound calls to one remote rather than inbound calls from many
// clients.
type rateLimiter struct {
	mu       sync.Mutex
	minGap   time.Duration
	lastSent time.Time
}

func newRateLimiter(minGap time.Duration) *rateLimiter {
	return &rateLimiter{minGap: minGap}
}

// wait blocks until at least minGap has elapsed since the previous
// request's recorded departure time, then records the new departure time.
func (rl *rateLimiter) wait() {
	if rl.minGap <= 0 {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if since := now.Sub(rl.lastSent); since < rl.minGap {
		time.Sleep(rl.minGap - since)
		now = time.Now()
	}
	rl.lastSent = now
}
