package events

import (
	"context"
	"errors"

	"lensrelay/internal/core/domain"
	"lensrelay/internal/core/ports"
)

// Fanout publishes each event to every sink and joins their errors.
type Fanout []ports.EventPublisher

func (f Fanout) Publish(ctx context.Context, event domain.LifecycleEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
