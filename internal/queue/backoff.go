package queue

import "time"

// MaxDelay bounds the retry delay regardless of attempt count.
const MaxDelay = time.Hour

// Delay computes the retry backoff for a given attempt count:
// base * 2^attempt, capped at MaxDelay. It is a pure function so the
// schedule is testable without timers.
func Delay(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= MaxDelay {
			return MaxDelay
		}
	}
	if d > MaxDelay {
		return MaxDelay
	}
	return d
}
