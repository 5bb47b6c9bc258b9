package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lensrelay/internal/core/domain"
	"lensrelay/internal/core/ports"
	apperrors "lensrelay/pkg/errors"
	"lensrelay/pkg/tracing"
	"lensrelay/pkg/validation"
)

// Offer is an inbound session description plus the requested transform.
type Offer struct {
	SDP       string `json:"sdp"`
	Type      string `json:"type"`
	Transform string `json:"transform,omitempty"`
}

// Answer is returned to the peer.
type Answer struct {
	SDP       string           `json:"sdp"`
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"session_id"`
}

// SignalingConfig configures offer handling.
type SignalingConfig struct {
	DefaultTransform domain.TransformKind
	MaxSessions      int
	Stages           StageConfig
}

// SignalingService turns offers into running sessions.
type SignalingService struct {
	engine    ports.MediaEngine
	registry  *SessionRegistry
	publisher ports.EventPublisher
	metrics   ports.PipelineMetrics
	log       *zap.SugaredLogger
	cfg       SignalingConfig
	newID     func() domain.SessionID
}

func NewSignalingService(
	engine ports.MediaEngine,
	registry *SessionRegistry,
	publisher ports.EventPublisher,
	metrics ports.PipelineMetrics,
	log *zap.SugaredLogger,
	cfg SignalingConfig,
) *SignalingService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SignalingService{
		engine:    engine,
		registry:  registry,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
		cfg:       cfg,
		newID:     func() domain.SessionID { return domain.SessionID(uuid.NewString()) },
	}
}

// ResolveTransform maps a requested name onto a kind, falling back to the
// configured default for empty or unknown names.
func (s *SignalingService) ResolveTransform(name string) domain.TransformKind {
	if kind, ok := domain.ParseTransformKind(name); ok {
		return kind
	}
	if name != "" {
		s.log.Infow("Unknown transform requested, using default", "requested", name, "transform", s.cfg.DefaultTransform.String())
	}
	return s.cfg.DefaultTransform
}

// HandleOffer validates offer, creates and registers a session, negotiates
// it and starts its frame loop. On failure no session remains registered.
func (s *SignalingService) HandleOffer(ctx context.Context, offer Offer) (Answer, error) {
	if err := validation.ValidateSDPType(offer.Type); err != nil {
		return Answer{}, apperrors.NewInvalidOfferError(err)
	}
	if err := validation.ValidateOfferSDP(offer.SDP); err != nil {
		return Answer{}, apperrors.NewInvalidOfferError(err)
	}

	kind := s.ResolveTransform(offer.Transform)

	if s.cfg.MaxSessions > 0 && s.registry.Len() >= s.cfg.MaxSessions {
		return Answer{}, s.capacityError()
	}

	id := s.newID()
	ctx, span := tracing.TraceNegotiation(ctx, string(id), kind.String())
	defer span.End()

	session, err := NewSession(SessionOptions{
		ID:         id,
		Transform:  kind,
		Stages:     s.cfg.Stages,
		Publisher:  s.publisher,
		Metrics:    s.metrics,
		Logger:     s.log,
		OnTerminal: func(done *Session) { s.registry.Release(done) },
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return Answer{}, apperrors.NewInternalError(fmt.Sprintf("creating %s session: %v", kind, err))
	}
	if err := s.registry.AddIfBelow(session, s.cfg.MaxSessions); err != nil {
		s.abort(session, err)
		if errors.Is(err, domain.ErrCapacityReached) {
			return Answer{}, s.capacityError()
		}
		return Answer{}, apperrors.WrapError(err, apperrors.ErrCodeConflict, "session id collision", http.StatusConflict)
	}
	if err := session.BeginNegotiation(); err != nil {
		s.abort(session, err)
		return Answer{}, apperrors.NewInternalError("session closed during setup")
	}

	link, answer, err := s.engine.Negotiate(ctx, domain.SessionDescription{Type: offer.Type, SDP: offer.SDP}, session.OnTransportState)
	if err != nil {
		tracing.RecordError(ctx, err)
		s.abort(session, err)
		if errors.Is(err, domain.ErrInvalidOffer) || errors.Is(err, domain.ErrNoVideoTrack) {
			return Answer{}, apperrors.NewInvalidOfferError(err)
		}
		return Answer{}, apperrors.NewNegotiationError(err)
	}
	if err := session.Attach(link); err != nil {
		s.abort(session, err)
		return Answer{}, apperrors.NewNegotiationError(err)
	}

	tracing.AddSpanAttributes(ctx, tracing.StateKey.String(session.State().String()))
	s.log.Infow("Session negotiated", "session_id", string(id), "transform", kind.String())
	return Answer{SDP: answer.SDP, Type: answer.Type, SessionID: id}, nil
}

func (s *SignalingService) capacityError() *apperrors.AppError {
	return apperrors.NewServiceUnavailableError(fmt.Sprintf("session limit of %d reached", s.cfg.MaxSessions))
}

// abort fails session and waits briefly for its teardown so the registry is
// consistent when the caller returns.
func (s *SignalingService) abort(session *Session, reason error) {
	session.Fail(reason)
	select {
	case <-session.Done():
	case <-time.After(time.Second):
	}
	s.log.Warnw("Session setup failed", "session_id", string(session.ID()), "error", reason)
}

// Sessions exposes the registry to handlers.
func (s *SignalingService) Sessions() *SessionRegistry {
	return s.registry
}
