package http

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"lensrelay/internal/core/domain"
	"lensrelay/internal/core/services"
	"lensrelay/pkg/errors"
	"lensrelay/pkg/logger"
	"lensrelay/pkg/validation"

	"github.com/gin-gonic/gin"
)

// SessionDirectory is the read and control surface of the session registry.
type SessionDirectory interface {
	List() []domain.SessionInfo
	Get(id domain.SessionID) (services.ManagedSession, error)
}

type SessionHandler struct {
	sessions     SessionDirectory
	closeTimeout time.Duration
}

func NewSessionHandler(sessions SessionDirectory, closeTimeout time.Duration) *SessionHandler {
	if closeTimeout <= 0 {
		closeTimeout = 5 * time.Second
	}
	return &SessionHandler{sessions: sessions, closeTimeout: closeTimeout}
}

func (h *SessionHandler) SetupRoutes(router gin.IRouter) {
	sessions := router.Group("/sessions")
	{
		sessions.GET("", h.ListSessions)
		sessions.GET("/:id", h.GetSession)
		sessions.POST("/:id/select", h.SelectObject)
		sessions.DELETE("/:id", h.CloseSession)
	}
}

type SelectObjectRequest struct {
	// TrackID is the object to highlight; -1 clears the selection.
	TrackID *int `json:"track_id" binding:"required"`
}

func (h *SessionHandler) ListSessions(c *gin.Context) {
	list := h.sessions.List()
	c.JSON(http.StatusOK, gin.H{
		"sessions": list,
		"count":    len(list),
	})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session.Info()})
}

func (h *SessionHandler) SelectObject(c *gin.Context) {
	var req SelectObjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("track_id is required"))
		return
	}
	if *req.TrackID < domain.NoTrack {
		c.Error(errors.NewInvalidInputError("track_id must be >= -1"))
		return
	}

	session, ok := h.lookup(c)
	if !ok {
		return
	}
	session.SelectObject(*req.TrackID)

	c.JSON(http.StatusOK, gin.H{"session": session.Info()})
}

func (h *SessionHandler) CloseSession(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.closeTimeout)
	defer cancel()
	if err := session.Close(ctx); err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "session did not close in time", http.StatusGatewayTimeout))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID(),
		"status":     "closed",
	})
}

func (h *SessionHandler) lookup(c *gin.Context) (services.ManagedSession, bool) {
	id := c.Param("id")
	if err := validation.ValidateSessionID(id); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return nil, false
	}
	c.Request = c.Request.WithContext(logger.WithSessionID(c.Request.Context(), id))
	session, err := h.sessions.Get(domain.SessionID(id))
	if err != nil {
		if stderrors.Is(err, domain.ErrSessionNotFound) {
			c.Error(errors.NewNotFoundError("session"))
		} else {
			c.Error(err)
		}
		return nil, false
	}
	return session, true
}
