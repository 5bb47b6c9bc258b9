package http

import (
	"context"
	"net/http"

	"lensrelay/internal/core/services"
	"lensrelay/pkg/errors"
	"lensrelay/pkg/logger"

	"github.com/gin-gonic/gin"
)

// OfferNegotiator turns a client offer into a running session.
type OfferNegotiator interface {
	HandleOffer(ctx context.Context, offer services.Offer) (services.Answer, error)
}

type OfferHandler struct {
	signaling OfferNegotiator
}

func NewOfferHandler(signaling OfferNegotiator) *OfferHandler {
	return &OfferHandler{signaling: signaling}
}

// SetupRoutes mounts POST and OPTIONS /offer. Preflight is answered by the
// CORS middleware placed ahead of the handler.
func (h *OfferHandler) SetupRoutes(router gin.IRouter, pre ...gin.HandlerFunc) {
	router.OPTIONS("/offer", chain(pre, h.Preflight)...)
	router.POST("/offer", chain(pre, h.CreateOffer)...)
}

func chain(pre []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(pre)+1)
	return append(append(out, pre...), h)
}

func (h *OfferHandler) CreateOffer(c *gin.Context) {
	var req services.Offer
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	answer, err := h.signaling.HandleOffer(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.Request = c.Request.WithContext(logger.WithSessionID(c.Request.Context(), string(answer.SessionID)))
	c.JSON(http.StatusOK, answer)
}

// Preflight runs only when no CORS middleware answered first.
func (h *OfferHandler) Preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}
