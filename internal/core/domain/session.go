package domain

import (
	"fmt"
	"time"
)

// SessionID identifies one peer session.
type SessionID string

// SessionState is a node of the session lifecycle.
type SessionState int

const (
	StateCreated SessionState = iota
	StateNegotiating
	StateConnected
	StateFailed
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *SessionState) UnmarshalText(text []byte) error {
	for st := StateCreated; st <= StateClosed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Terminal reports whether no further transitions are possible.
func (s SessionState) Terminal() bool {
	return s == StateFailed || s == StateClosed
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to SessionState) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StateNegotiating:
		return from == StateCreated
	case StateConnected:
		return from == StateNegotiating
	case StateFailed, StateClosed:
		return true
	default:
		return false
	}
}

// TransportState is the connectivity state reported by the media collaborator.
type TransportState int

const (
	TransportNew TransportState = iota
	TransportChecking
	TransportConnected
	TransportDisconnected
	TransportFailed
	TransportClosed
)

func (t TransportState) String() string {
	switch t {
	case TransportNew:
		return "new"
	case TransportChecking:
		return "checking"
	case TransportConnected:
		return "connected"
	case TransportDisconnected:
		return "disconnected"
	case TransportFailed:
		return "failed"
	case TransportClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionInfo is a read-only snapshot of a session.
type SessionInfo struct {
	ID               SessionID     `json:"id"`
	Transform        TransformKind `json:"transform"`
	State            SessionState  `json:"state"`
	SelectedObjectID int           `json:"selected_object_id"`
	FPS              int           `json:"fps"`
	CreatedAt        time.Time     `json:"created_at"`
}
