package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"lensrelay/internal/core/domain"
	"lensrelay/internal/core/ports"
)

type fakeDetector struct {
	mu    sync.Mutex
	rows  []domain.RawDetection
	err   error
	panic bool
	calls []ports.DetectOptions
	names map[int]string
}

func (d *fakeDetector) Detect(_ context.Context, _ *domain.Image, opts ports.DetectOptions) ([]domain.RawDetection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, opts)
	if d.panic {
		panic("model exploded")
	}
	return d.rows, d.err
}

func (d *fakeDetector) ClassNames() map[int]string {
	if d.names == nil {
		return map[int]string{0: "person", 2: "car"}
	}
	return d.names
}

type recordingMetrics struct {
	mu              sync.Mutex
	processed       int
	transformFailed int
	detectionFailed int
	detections      int
	opened, ended   int
	endedStates     []domain.SessionState
}

func (m *recordingMetrics) FrameProcessed(domain.TransformKind, time.Duration) {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *recordingMetrics) TransformFailed(domain.TransformKind) {
	m.mu.Lock()
	m.transformFailed++
	m.mu.Unlock()
}

func (m *recordingMetrics) DetectionFailed() {
	m.mu.Lock()
	m.detectionFailed++
	m.mu.Unlock()
}

func (m *recordingMetrics) DetectionsRendered(_ domain.TransformKind, n int) {
	m.mu.Lock()
	m.detections += n
	m.mu.Unlock()
}

func (m *recordingMetrics) SessionOpened() {
	m.mu.Lock()
	m.opened++
	m.mu.Unlock()
}

func (m *recordingMetrics) SessionEnded(state domain.SessionState) {
	m.mu.Lock()
	m.ended++
	m.endedStates = append(m.endedStates, state)
	m.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []domain.LifecycleEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.LifecycleEventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeLink struct {
	frames    chan domain.Frame
	mu        sync.Mutex
	written   []domain.Frame
	closes    int
	closeOnce sync.Once
}

func newFakeLink() *fakeLink {
	return &fakeLink{frames: make(chan domain.Frame, 64)}
}

func (l *fakeLink) Frames() <-chan domain.Frame { return l.frames }

func (l *fakeLink) WriteFrame(ctx context.Context, f domain.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.written = append(l.written, f)
	return nil
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	l.closes++
	l.mu.Unlock()
	l.closeOnce.Do(func() { close(l.frames) })
	return nil
}

func (l *fakeLink) Written() []domain.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Frame(nil), l.written...)
}

func (l *fakeLink) Closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

type fakeEngine struct {
	link    *fakeLink
	err     error
	onState func(domain.TransportState)
	offers  []domain.SessionDescription
}

func (e *fakeEngine) Negotiate(_ context.Context, offer domain.SessionDescription, onState func(domain.TransportState)) (ports.PeerLink, domain.SessionDescription, error) {
	e.offers = append(e.offers, offer)
	if e.err != nil {
		return nil, domain.SessionDescription{}, e.err
	}
	e.onState = onState
	if e.link == nil {
		e.link = newFakeLink()
	}
	return e.link, domain.SessionDescription{Type: "answer", SDP: "v=0\r\n"}, nil
}

var errStage = errors.New("stage broke")

type failingStage struct {
	panic bool
}

func (failingStage) Kind() domain.TransformKind { return domain.TransformBlur }

func (s failingStage) Apply(context.Context, *domain.Image) (*domain.Image, error) {
	if s.panic {
		panic("boom")
	}
	return nil, errStage
}

// End simulates the remote track ending.
func (l *fakeLink) End() {
	l.closeOnce.Do(func() { close(l.frames) })
}
