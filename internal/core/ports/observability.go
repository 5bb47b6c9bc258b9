package ports

import (
	"context"
	"time"

	"lensrelay/internal/core/domain"
)

// EventPublisher receives session lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.LifecycleEvent) error
}

// PipelineMetrics records per-frame pipeline outcomes.
type PipelineMetrics interface {
	FrameProcessed(kind domain.TransformKind, elapsed time.Duration)
	TransformFailed(kind domain.TransformKind)
	DetectionFailed()
	DetectionsRendered(kind domain.TransformKind, n int)
	SessionOpened()
	SessionEnded(state domain.SessionState)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) FrameProcessed(domain.TransformKind, time.Duration) {}
func (NopMetrics) TransformFailed(domain.TransformKind)               {}
func (NopMetrics) DetectionFailed()                                   {}
func (NopMetrics) DetectionsRendered(domain.TransformKind, int)       {}
func (NopMetrics) SessionOpened()                                     {}
func (NopMetrics) SessionEnded(domain.SessionState)                   {}

// NopPublisher drops events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.LifecycleEvent) error { return nil }
