package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"lensrelay/internal/core/domain"
	"lensrelay/internal/core/ports"
	"lensrelay/pkg/imaging"
)

// Stage transforms one image. Implementations must not modify their input.
type Stage interface {
	Kind() domain.TransformKind
	Apply(ctx context.Context, img *domain.Image) (*domain.Image, error)
}

// StageConfig carries the knobs and collaborators stages are built from.
type StageConfig struct {
	BlurKernel int
	EdgeLow    float64
	EdgeHigh   float64

	Detector ports.Detector
	Detect   ports.DetectOptions
	// Selected returns the track id to highlight, or domain.NoTrack.
	Selected func() int
	// FPS returns the rate shown in the overlay.
	FPS func() int

	Metrics ports.PipelineMetrics
	Logger  *zap.SugaredLogger
}

// NewStage builds the stage for kind.
func NewStage(kind domain.TransformKind, cfg StageConfig) (Stage, error) {
	if kind.IsDetection() {
		if cfg.Detector == nil {
			return nil, fmt.Errorf("%s stage needs a detector", kind)
		}
		return newDetectionStage(kind, cfg), nil
	}
	switch kind {
	case domain.TransformPassthrough:
		return passthroughStage{}, nil
	case domain.TransformGrayscale:
		return grayscaleStage{}, nil
	case domain.TransformEdge:
		return edgeStage{low: cfg.EdgeLow, high: cfg.EdgeHigh}, nil
	case domain.TransformBlur:
		return blurStage{kernel: cfg.BlurKernel}, nil
	default:
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownTransform, int(kind))
	}
}

type passthroughStage struct{}

func (passthroughStage) Kind() domain.TransformKind { return domain.TransformPassthrough }

func (passthroughStage) Apply(_ context.Context, img *domain.Image) (*domain.Image, error) {
	return img, nil
}

type grayscaleStage struct{}

func (grayscaleStage) Kind() domain.TransformKind { return domain.TransformGrayscale }

func (grayscaleStage) Apply(_ context.Context, img *domain.Image) (*domain.Image, error) {
	return imaging.Grayscale(img), nil
}

type edgeStage struct {
	low, high float64
}

func (edgeStage) Kind() domain.TransformKind { return domain.TransformEdge }

func (s edgeStage) Apply(_ context.Context, img *domain.Image) (*domain.Image, error) {
	return imaging.Edge(img, s.low, s.high), nil
}

type blurStage struct {
	kernel int
}

func (blurStage) Kind() domain.TransformKind { return domain.TransformBlur }

func (s blurStage) Apply(_ context.Context, img *domain.Image) (*domain.Image, error) {
	return imaging.GaussianBlur(img, s.kernel), nil
}
