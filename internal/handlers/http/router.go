package http

import (
	"net/http"
	"time"

	"lensrelay/internal/infrastructure/middleware"
	"lensrelay/internal/infrastructure/monitoring"
	"lensrelay/pkg/config"
	"lensrelay/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterDeps are the collaborators the HTTP surface is built from.
type RouterDeps struct {
	Config    *config.Config
	Logger    *zap.Logger
	Signaling OfferNegotiator
	Sessions  SessionDirectory
	Health    *monitoring.HealthChecker
	// Events serves the lifecycle websocket feed; nil disables /ws/events.
	Events http.Handler
	// Metrics serves the prometheus exposition; nil disables /metrics.
	Metrics   http.Handler
	StartTime time.Time
}

// NewRouter assembles the gin engine with the shared middleware chain.
func NewRouter(deps RouterDeps) *gin.Engine {
	log := deps.Logger.Sugar()

	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestLoggerMiddleware(logger.NewContextLogger(deps.Logger)),
		middleware.TracingMiddleware(),
		middleware.ErrorHandlerMiddleware(log),
	)

	NewOfferHandler(deps.Signaling).SetupRoutes(router,
		middleware.CORSMiddleware(),
		middleware.NewOfferRateLimitMiddleware(deps.Config),
	)
	NewSessionHandler(deps.Sessions, deps.Config.Sessions.CloseTimeout).SetupRoutes(router)

	if deps.Health != nil {
		NewHealthHandler(deps.Health, deps.StartTime).SetupRoutes(router)
	}
	if deps.Events != nil {
		router.GET("/ws/events", gin.WrapH(deps.Events))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	return router
}
