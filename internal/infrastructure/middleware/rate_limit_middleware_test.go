package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"lensrelay/pkg/config"

	"github.com/gin-gonic/gin"
)

func offerRouter(cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(NewOfferRateLimitMiddleware(cfg))
	router.POST("/offer", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.OPTIONS("/offer", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func doRequest(router http.Handler, method, remote string) int {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, "/offer", nil)
	req.RemoteAddr = remote
	router.ServeHTTP(w, req)
	return w.Code
}

// Test that when rate limiting is disabled, middleware lets all requests through.
func TestOfferRateLimitMiddleware_Disabled_AllowsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = false
	router := offerRouter(cfg)

	for i := 0; i < 3; i++ {
		if code := doRequest(router, http.MethodPost, "10.0.0.1:5000"); code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i, code)
		}
	}
}

// Test basic per-IP rate limiting behaviour.
func TestOfferRateLimitMiddleware_Enabled_RateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.RequestsPerSecond = 1
	cfg.RateLimiting.Burst = 1
	router := offerRouter(cfg)

	if code := doRequest(router, http.MethodPost, "10.0.0.1:5000"); code != http.StatusOK {
		t.Fatalf("expected status 200 for first request, got %d", code)
	}
	if code := doRequest(router, http.MethodPost, "10.0.0.1:5001"); code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 for second request, got %d", code)
	}
	// Another client has its own budget.
	if code := doRequest(router, http.MethodPost, "10.0.0.2:5000"); code != http.StatusOK {
		t.Fatalf("expected status 200 for other client, got %d", code)
	}
	// Preflights are never limited.
	if code := doRequest(router, http.MethodOptions, "10.0.0.1:5000"); code != http.StatusOK {
		t.Fatalf("expected preflight to pass, got %d", code)
	}
}

func TestClientIP_PrefersFirstForwardedHop(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "/offer", nil)
	req.RemoteAddr = "192.168.1.1:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if got := clientIP(req); got != "203.0.113.7" {
		t.Fatalf("expected 203.0.113.7, got %s", got)
	}

	req.Header.Del("X-Forwarded-For")
	if got := clientIP(req); got != "192.168.1.1" {
		t.Fatalf("expected 192.168.1.1, got %s", got)
	}
}
