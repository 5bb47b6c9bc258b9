package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFPSMeter_WindowThenGap(t *testing.T) {
	t0 := time.Unix(1000, 0)
	m := NewFPSMeter(t0)

	const n = 24
	for i := 0; i < n-1; i++ {
		got := m.Tick(t0.Add(time.Duration(i) * 40 * time.Millisecond))
		assert.Equal(t, 0, got, "no window has closed yet")
	}

	// The n-th frame lands on the window boundary and closes it.
	assert.Equal(t, n, m.Tick(t0.Add(time.Second)))
	assert.Equal(t, n, m.Rate())

	// After a gap the next window counts only newly arriving frames.
	assert.Equal(t, n, m.Tick(t0.Add(1500*time.Millisecond)))
	assert.Equal(t, 2, m.Tick(t0.Add(3*time.Second)))
}

func TestFPSMeter_RateDoesNotCount(t *testing.T) {
	t0 := time.Unix(0, 0)
	m := NewFPSMeter(t0)
	m.Rate()
	m.Rate()

	assert.Equal(t, 1, m.Tick(t0.Add(time.Second)))
}
