package summary

import (
	"sync"
	"time"
)

// IntervalLimiter enforces a minimum spacing between calls. The first call
// passes immediately; later calls sleep out the remainder of the interval.
type IntervalLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	sleep    func(time.Duration)
}

// NewIntervalLimiter creates a limiter with the given minimum interval.
func NewIntervalLimiter(interval time.Duration) *IntervalLimiter {
	return &IntervalLimiter{
		interval: interval,
		sleep:    time.Sleep,
	}
}

// WaitIfNeeded blocks until at least the configured interval has elapsed
// since the previous call returned.
func (l *IntervalLimiter) WaitIfNeeded() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.interval <= 0 {
		return
	}
	now := time.Now()
	if !l.last.IsZero() {
		if wait := l.interval - now.Sub(l.last); wait > 0 {
			l.sleep(wait)
			now = now.Add(wait)
		}
	}
	l.last = now
}
