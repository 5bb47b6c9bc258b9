package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"lensrelay/internal/core/domain"
	"lensrelay/internal/core/ports"
)

// Pipeline applies one stage to every frame of a session.
type Pipeline struct {
	stage   Stage
	fps     *FPSMeter
	metrics ports.PipelineMetrics
	log     *zap.SugaredLogger
	warn    *rate.Limiter
	now     func() time.Time
}

func NewPipeline(stage Stage, fps *FPSMeter, metrics ports.PipelineMetrics, log *zap.SugaredLogger) *Pipeline {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Pipeline{
		stage:   stage,
		fps:     fps,
		metrics: metrics,
		log:     log,
		warn:    rate.NewLimiter(rate.Every(5*time.Second), 1),
		now:     time.Now,
	}
}

// Kind returns the transform this pipeline applies.
func (p *Pipeline) Kind() domain.TransformKind {
	return p.stage.Kind()
}

// Process transforms in. The output always carries in's PTS and time base;
// if the stage fails, in is returned unchanged.
func (p *Pipeline) Process(ctx context.Context, in domain.Frame) domain.Frame {
	start := p.now()
	if p.fps != nil {
		p.fps.Tick(start)
	}

	if err := in.Image.Validate(); err != nil {
		p.fail(err)
		return in
	}

	img, err := p.apply(ctx, in.Image)
	if err == nil && img != in.Image && !img.SameGeometry(in.Image) {
		err = fmt.Errorf("stage %s changed frame geometry", p.stage.Kind())
	}
	if err != nil {
		p.fail(err)
		return in
	}

	p.metrics.FrameProcessed(p.stage.Kind(), p.now().Sub(start))
	return in.WithImage(img)
}

func (p *Pipeline) apply(ctx context.Context, img *domain.Image) (out *domain.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("stage %s panicked: %v", p.stage.Kind(), r)
		}
	}()
	out, err = p.stage.Apply(ctx, img)
	if err == nil && out == nil {
		err = fmt.Errorf("stage %s returned no image", p.stage.Kind())
	}
	return out, err
}

func (p *Pipeline) fail(err error) {
	kind := p.stage.Kind()
	p.metrics.TransformFailed(kind)
	if p.warn.Allow() {
		p.log.Warnw("Transform failed, passing frame through", "transform", kind.String(), "error", err)
		return
	}
	p.log.Debugw("Transform failed, passing frame through", "transform", kind.String(), "error", err)
}
