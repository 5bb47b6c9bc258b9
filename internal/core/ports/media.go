package ports

import (
	"context"

	"lensrelay/internal/core/domain"
)

// MediaEngine negotiates a peer connection for one session. onState receives
// transport connectivity changes for the life of the returned link.
type MediaEngine interface {
	Negotiate(ctx context.Context, offer domain.SessionDescription, onState func(domain.TransportState)) (PeerLink, domain.SessionDescription, error)
}

// PeerLink is a negotiated connection: decoded inbound frames and an
// outbound track accepting processed frames.
type PeerLink interface {
	// Frames is closed when the inbound track ends or the link closes.
	Frames() <-chan domain.Frame
	WriteFrame(ctx context.Context, frame domain.Frame) error
	Close() error
}

// FrameDecoder turns an assembled compressed sample into an image.
type FrameDecoder interface {
	Decode(sample []byte) (*domain.Image, error)
}

// FrameEncoder compresses an image into one sample for the outbound track.
type FrameEncoder interface {
	Encode(img *domain.Image) ([]byte, error)
	Close() error
}
