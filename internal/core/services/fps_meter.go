package services

import (
	"sync"
	"time"
)

// FPSMeter counts frames over one-second windows. The displayed rate is the
// count of the last completed window.
type FPSMeter struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
	displayed   int
}

func NewFPSMeter(start time.Time) *FPSMeter {
	return &FPSMeter{windowStart: start}
}

// Tick records one frame at now and returns the displayed rate.
func (m *FPSMeter) Tick(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.count++
	if now.Sub(m.windowStart) >= time.Second {
		m.displayed = m.count
		m.count = 0
		m.windowStart = now
	}
	return m.displayed
}

// Rate returns the displayed rate without recording a frame.
func (m *FPSMeter) Rate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.displayed
}
