package ports

import (
	"context"

	"lensrelay/internal/core/domain"
)

// DetectOptions are the per-call inference parameters.
type DetectOptions struct {
	Track         bool
	Confidence    float64
	IoU           float64
	MaxDetections int
	// StreamID keys tracker state so identities persist per session.
	StreamID string
}

// Detector runs object detection, optionally with tracking.
type Detector interface {
	Detect(ctx context.Context, img *domain.Image, opts DetectOptions) ([]domain.RawDetection, error)
	ClassNames() map[int]string
}
