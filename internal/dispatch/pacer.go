package dispatch

import (
	"sync"
	"time"
)

// pacer is the per-endpoint pacing clock. Each reservation pushes the next
// allowed request start forward by the endpoint's wait, so concurrent
// queries to the same endpoint space their starts without a global limiter
// and without blocking queries to other endpoints.
type pacer struct {
	mu   sync.Mutex
	next time.Time
}

// reserve claims the next request-start slot and returns how long the
// caller must sleep before starting. A wait of zero disables pacing.
func (p *pacer) reserve(wait time.Duration) time.Duration {
	if wait <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	start := now
	if p.next.After(start) {
		start = p.next
	}
	p.next = start.Add(wait)
	return start.Sub(now)
}
