package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// maxLimiters bounds the limiter table; target names come from clients.
const maxLimiters = 1024

// targetLimiter holds one token bucket per target.
// A nil *targetLimiter allows everything.
type targetLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newTargetLimiter(perSecond float64, burst int) *targetLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &targetLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether a request for target may proceed now.
func (l *targetLimiter) Allow(target string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	lim, ok := l.limiters[target]
	if !ok {
		if len(l.limiters) >= maxLimiters {
			l.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[target] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}
