package webrtc

import (
	"sync"

	"lensrelay/internal/core/domain"
)

// mailbox is a one-slot, latest-wins frame queue. A frame that has not been
// taken when the next one arrives is dropped.
type mailbox struct {
	mu     sync.Mutex
	ch     chan domain.Frame
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan domain.Frame, 1)}
}

// put stores f and reports whether an unread frame was displaced. Frames put
// after close are discarded.
func (m *mailbox) put(f domain.Frame) (dropped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	select {
	case <-m.ch:
		dropped = true
	default:
	}
	m.ch <- f
	return dropped
}

func (m *mailbox) frames() <-chan domain.Frame {
	return m.ch
}

func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
}
