package worker

import (
	"context"
	"sync"
	"time"
)

// SlidingWindowLimiter admits at most max starts within any rolling
// window. Unlike a token bucket it tracks actual start timestamps, so the
// bound holds for every possible window placement, not just on average.
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	starts []time.Time
	now    func() time.Time
}

// NewSlidingWindowLimiter creates a limiter admitting max starts per
// rolling window.
func NewSlidingWindowLimiter(max int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// Reserve attempts to record a start now. It returns zero when admitted,
// or the duration to hold back until the window has room. The caller is
// expected to retry after the hold.
func (l *SlidingWindowLimiter) Reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	// Drop starts that have left the window.
	keep := l.starts[:0]
	for _, t := range l.starts {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	l.starts = keep

	if len(l.starts) < l.max {
		l.starts = append(l.starts, now)
		return 0
	}

	// Window is full: room opens when the oldest counted start ages out.
	return l.starts[len(l.starts)-l.max].Add(l.window).Sub(now)
}

// Wait blocks until a start is admitted or the context is cancelled. The
// hold is deliberate pacing, not an error condition.
func (l *SlidingWindowLimiter) Wait(ctx context.Context) error {
	for {
		hold := l.Reserve()
		if hold <= 0 {
			return nil
		}
		timer := time.NewTimer(hold)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
