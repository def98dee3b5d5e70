package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowLimiter_AdmitsUpToMax(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewSlidingWindowLimiter(4, time.Hour)
	l.now = func() time.Time { return clock }

	for i := 0; i < 4; i++ {
		assert.Equal(t, time.Duration(0), l.Reserve(), "start %d should be admitted", i+1)
	}
	assert.Greater(t, l.Reserve(), time.Duration(0), "fifth start in the window must hold")
}

func TestSlidingWindowLimiter_HoldUntilOldestAgesOut(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewSlidingWindowLimiter(2, time.Hour)
	l.now = func() time.Time { return clock }

	require.Zero(t, l.Reserve())
	clock = clock.Add(10 * time.Minute)
	require.Zero(t, l.Reserve())

	// Window full. Room opens when the first start leaves the window,
	// 50 minutes from now.
	assert.Equal(t, 50*time.Minute, l.Reserve())

	// Partially aged: the hold shrinks accordingly.
	clock = clock.Add(30 * time.Minute)
	assert.Equal(t, 20*time.Minute, l.Reserve())

	// Once the oldest start ages out, the next is admitted.
	clock = clock.Add(20*time.Minute + time.Nanosecond)
	assert.Zero(t, l.Reserve())
}

func TestSlidingWindowLimiter_BoundHoldsForAnyWindowPlacement(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewSlidingWindowLimiter(3, time.Hour)
	l.now = func() time.Time { return clock }

	var admitted []time.Time
	for i := 0; i < 200; i++ {
		if l.Reserve() == 0 {
			admitted = append(admitted, clock)
		}
		clock = clock.Add(7 * time.Minute)
	}

	for i := range admitted {
		count := 1
		for j := i + 1; j < len(admitted); j++ {
			if admitted[j].Sub(admitted[i]) < time.Hour {
				count++
			}
		}
		assert.LessOrEqual(t, count, 3, "window starting at %v exceeds the cap", admitted[i])
	}
}

func TestSlidingWindowLimiter_WaitCancellable(t *testing.T) {
	l := NewSlidingWindowLimiter(1, time.Hour)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
