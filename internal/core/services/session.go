package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"lensrelay/internal/core/domain"
	"lensrelay/internal/core/ports"
	"lensrelay/pkg/utils"
)

const (
	sessionEventBuffer = 16
	maxReasonLen       = 256
)

type sessionEvent struct {
	to     domain.SessionState
	reason string
	link   ports.PeerLink
}

// SessionOptions configures a new session.
type SessionOptions struct {
	ID        domain.SessionID
	Transform domain.TransformKind
	// Stages configures the session's stage. Selected, FPS and StreamID are
	// bound to the session.
	Stages    StageConfig
	Publisher ports.EventPublisher
	Metrics   ports.PipelineMetrics
	Logger    *zap.SugaredLogger
	// OnTerminal runs once when the session reaches Failed or Closed.
	OnTerminal func(*Session)
	Now        func() time.Time
}

// Session owns one peer's lifecycle and frame loop. All state transitions
// are serialised through its event loop.
type Session struct {
	id        domain.SessionID
	transform domain.TransformKind
	createdAt time.Time

	mu     sync.RWMutex
	state  domain.SessionState
	reason string
	link   ports.PeerLink

	selected atomic.Int64
	fps      *FPSMeter
	pipeline *Pipeline

	publisher  ports.EventPublisher
	metrics    ports.PipelineMetrics
	log        *zap.SugaredLogger
	onTerminal func(*Session)
	now        func() time.Time

	events   chan sessionEvent
	postMu   sync.RWMutex
	closed   bool
	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
	done     chan struct{}
	teardown sync.Once
}

// NewSession creates a session in Created and starts its event loop.
func NewSession(opts SessionOptions) (*Session, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = ports.NopPublisher{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         opts.ID,
		transform:  opts.Transform,
		createdAt:  now(),
		state:      domain.StateCreated,
		fps:        NewFPSMeter(now()),
		publisher:  publisher,
		metrics:    metrics,
		log:        log.With("session_id", string(opts.ID), "transform", opts.Transform.String()),
		onTerminal: opts.OnTerminal,
		now:        now,
		events:     make(chan sessionEvent, sessionEventBuffer),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	s.selected.Store(domain.NoTrack)

	cfg := opts.Stages
	cfg.Selected = s.SelectedObject
	cfg.FPS = s.fps.Rate
	cfg.Metrics = metrics
	cfg.Logger = s.log
	cfg.Detect.StreamID = string(opts.ID)
	stage, err := NewStage(opts.Transform, cfg)
	if err != nil {
		cancel()
		return nil, err
	}
	s.pipeline = NewPipeline(stage, s.fps, metrics, s.log)

	metrics.SessionOpened()
	go s.run()
	s.publish(domain.EventSessionCreated)
	return s, nil
}

func (s *Session) ID() domain.SessionID { return s.id }

func (s *Session) Transform() domain.TransformKind { return s.transform }

func (s *Session) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Done is closed once terminal teardown has finished.
func (s *Session) Done() <-chan struct{} { return s.done }

// SelectObject sets the highlighted track id; domain.NoTrack clears it.
func (s *Session) SelectObject(trackID int) {
	if trackID < 0 {
		trackID = domain.NoTrack
	}
	s.selected.Store(int64(trackID))
}

func (s *Session) SelectedObject() int {
	return int(s.selected.Load())
}

// Info returns a snapshot for listings.
func (s *Session) Info() domain.SessionInfo {
	return domain.SessionInfo{
		ID:               s.id,
		Transform:        s.transform,
		State:            s.State(),
		SelectedObjectID: s.SelectedObject(),
		FPS:              s.fps.Rate(),
		CreatedAt:        s.createdAt,
	}
}

// BeginNegotiation moves Created to Negotiating.
func (s *Session) BeginNegotiation() error {
	return s.post(sessionEvent{to: domain.StateNegotiating})
}

// Attach hands the negotiated link to the session and starts the frame loop.
// A link attached after teardown is closed immediately.
func (s *Session) Attach(link ports.PeerLink) error {
	if err := s.post(sessionEvent{link: link}); err != nil {
		_ = link.Close()
		return err
	}
	return nil
}

// OnTransportState maps connectivity changes onto the lifecycle.
func (s *Session) OnTransportState(ts domain.TransportState) {
	switch ts {
	case domain.TransportConnected:
		_ = s.post(sessionEvent{to: domain.StateConnected})
	case domain.TransportFailed:
		_ = s.post(sessionEvent{to: domain.StateFailed, reason: "transport failed"})
	case domain.TransportClosed:
		_ = s.post(sessionEvent{to: domain.StateClosed, reason: "transport closed"})
	case domain.TransportDisconnected:
		s.log.Infow("Transport disconnected, waiting for recovery")
	default:
		s.log.Debugw("Transport state changed", "state", ts.String())
	}
}

// Fail moves the session to Failed.
func (s *Session) Fail(reason error) {
	msg := "failed"
	if reason != nil {
		msg = utils.TruncateString(reason.Error(), maxReasonLen)
	}
	_ = s.post(sessionEvent{to: domain.StateFailed, reason: msg})
}

// Close moves the session to Closed and waits for teardown or ctx. Closing
// a terminated session is a no-op.
func (s *Session) Close(ctx context.Context) error {
	_ = s.post(sessionEvent{to: domain.StateClosed, reason: "closed"})
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) post(ev sessionEvent) error {
	s.postMu.RLock()
	defer s.postMu.RUnlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.ctx.Done():
		return domain.ErrSessionClosed
	}
}

func (s *Session) run() {
	for ev := range s.events {
		if s.handle(ev) {
			s.terminate()
			return
		}
	}
}

// handle applies one event and reports whether the session became terminal.
func (s *Session) handle(ev sessionEvent) bool {
	if ev.link != nil {
		s.mu.Lock()
		if s.link != nil {
			s.mu.Unlock()
			_ = ev.link.Close()
			return false
		}
		s.link = ev.link
		s.loopDone = make(chan struct{})
		s.mu.Unlock()
		go s.frameLoop(ev.link, s.loopDone)
		return false
	}

	s.mu.Lock()
	from := s.state
	if !domain.CanTransition(from, ev.to) {
		s.mu.Unlock()
		s.log.Debugw("Ignoring transition", "from", from.String(), "to", ev.to.String())
		return false
	}
	s.state = ev.to
	s.reason = ev.reason
	s.mu.Unlock()

	s.log.Infow("Session state changed", "from", from.String(), "state", ev.to.String(), "reason", ev.reason)
	if ev.to == domain.StateConnected {
		s.publish(domain.EventSessionConnected)
	}
	return ev.to.Terminal()
}

func (s *Session) terminate() {
	s.teardown.Do(func() {
		s.cancel()
		s.postMu.Lock()
		s.closed = true
		s.postMu.Unlock()
		s.drainEvents()

		s.mu.RLock()
		link, loopDone, state := s.link, s.loopDone, s.state
		s.mu.RUnlock()

		if link != nil {
			if err := link.Close(); err != nil {
				s.log.Debugw("Closing peer link", "error", err)
			}
		}
		if loopDone != nil {
			<-loopDone
		}
		if s.onTerminal != nil {
			s.onTerminal(s)
		}
		s.metrics.SessionEnded(state)

		if state == domain.StateFailed {
			s.publish(domain.EventSessionFailed)
		} else {
			s.publish(domain.EventSessionClosed)
		}
		close(s.done)
	})
}

// drainEvents closes links that were queued after the terminal transition.
func (s *Session) drainEvents() {
	for {
		select {
		case ev := <-s.events:
			if ev.link != nil {
				_ = ev.link.Close()
			}
		default:
			return
		}
	}
}

func (s *Session) frameLoop(link ports.PeerLink, done chan struct{}) {
	defer close(done)
	frames := link.Frames()
	for {
		select {
		case <-s.ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				_ = s.post(sessionEvent{to: domain.StateClosed, reason: "track ended"})
				return
			}
			out := s.pipeline.Process(s.ctx, f)
			if err := link.WriteFrame(s.ctx, out); err != nil {
				if errors.Is(err, context.Canceled) || s.ctx.Err() != nil {
					return
				}
				s.log.Debugw("Writing frame", "error", err)
			}
		}
	}
}

func (s *Session) publish(t domain.LifecycleEventType) {
	s.mu.RLock()
	ev := domain.LifecycleEvent{
		Type:      t,
		SessionID: s.id,
		Transform: s.transform,
		State:     s.state,
		Reason:    s.reason,
		Timestamp: s.now(),
	}
	s.mu.RUnlock()

	if err := s.publisher.Publish(context.Background(), ev); err != nil {
		s.log.Warnw("Publishing lifecycle event", "event", string(t), "error", err)
	}
}
