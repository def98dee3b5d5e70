package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelay(t *testing.T) {
	base := 30 * time.Second

	tests := []struct {
		name     string
		attempt  int
		expected time.Duration
	}{
		{"zero attempts", 0, 30 * time.Second},
		{"first retry", 1, 60 * time.Second},
		{"second retry", 2, 120 * time.Second},
		{"third retry", 3, 240 * time.Second},
		{"negative clamps to base", -2, 30 * time.Second},
		{"deep retry caps at an hour", 10, time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Delay(base, tt.attempt))
		})
	}
}

func TestDelay_LargeBaseCapped(t *testing.T) {
	assert.Equal(t, MaxDelay, Delay(2*time.Hour, 0))
	assert.Equal(t, MaxDelay, Delay(45*time.Minute, 3))
}
