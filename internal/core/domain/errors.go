package domain

import "errors"

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExists    = errors.New("session already registered")
	ErrSessionClosed    = errors.New("session closed")
	ErrCapacityReached  = errors.New("session capacity reached")
	ErrInvalidOffer     = errors.New("invalid offer")
	ErrNoVideoTrack     = errors.New("no video track")
	ErrUnknownTransform = errors.New("unknown transform")
	ErrInvalidImage     = errors.New("invalid image buffer")
	ErrNeedKeyFrame     = errors.New("key frame required")
	// ErrDetectorUnavailable marks detections skipped without asking the
	// detector, e.g. while its circuit breaker is open.
	ErrDetectorUnavailable = errors.New("detector unavailable")
)
