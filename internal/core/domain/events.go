package domain

import "time"

// LifecycleEventType names a session lifecycle notification.
type LifecycleEventType string

const (
	EventSessionCreated   LifecycleEventType = "session.created"
	EventSessionConnected LifecycleEventType = "session.connected"
	EventSessionFailed    LifecycleEventType = "session.failed"
	EventSessionClosed    LifecycleEventType = "session.closed"
)

// LifecycleEvent is published once per observable session transition.
type LifecycleEvent struct {
	Type      LifecycleEventType `json:"type"`
	SessionID SessionID          `json:"session_id"`
	Transform TransformKind      `json:"transform"`
	State     SessionState       `json:"state"`
	Reason    string             `json:"reason,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// SessionDescription is an SDP blob plus its type ("offer"/"answer").
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}
