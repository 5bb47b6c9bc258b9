package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"lensrelay/internal/core/domain"
	"lensrelay/internal/core/ports"
	"lensrelay/pkg/circuitbreaker"
	"lensrelay/pkg/retry"
	"lensrelay/pkg/validation"

	"go.uber.org/zap"
)

const maxResponseBytes = 4 << 20

// Config configures the inference client.
type Config struct {
	URL         string
	Timeout     time.Duration
	JPEGQuality int
	Breaker     circuitbreaker.Config
}

type detectRequest struct {
	Image         string  `json:"image"`
	Confidence    float64 `json:"conf"`
	IoU           float64 `json:"iou"`
	MaxDetections int     `json:"max_det"`
	Track         bool    `json:"track"`
	StreamID      string  `json:"stream_id,omitempty"`
}

type detectResponse struct {
	Detections [][]float64 `json:"detections"`
}

type infoResponse struct {
	Names map[string]string `json:"names"`
}

// Client talks to a remote detection server over HTTP. Frames are sent as
// base64 JPEG; rows come back as [x1,y1,x2,y2,(track),conf,cls].
type Client struct {
	baseURL string
	http    *http.Client
	quality int
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.SugaredLogger

	mu    sync.RWMutex
	names map[int]string
}

var _ ports.Detector = (*Client)(nil)

func NewClient(cfg Config, logger *zap.SugaredLogger) (*Client, error) {
	if err := validation.ValidateURL(cfg.URL); err != nil {
		return nil, fmt.Errorf("inference url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	quality := cfg.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}

	breaker := circuitbreaker.New(cfg.Breaker)
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("Inference circuit breaker changed state", "from", from.String(), "to", to.String())
	})

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		quality: quality,
		breaker: breaker,
		logger:  logger,
		names:   map[int]string{},
	}, nil
}

// Detect runs inference on img. While the breaker is open it fails fast with
// domain.ErrDetectorUnavailable without contacting the server.
func (c *Client) Detect(ctx context.Context, img *domain.Image, opts ports.DetectOptions) ([]domain.RawDetection, error) {
	rows, err := circuitbreaker.ExecuteWithResult(c.breaker, func() ([]domain.RawDetection, error) {
		return c.detect(ctx, img, opts)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return nil, fmt.Errorf("%w: %v", domain.ErrDetectorUnavailable, err)
	}
	return rows, err
}

// BreakerState exposes the breaker for health reporting.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

func (c *Client) detect(ctx context.Context, img *domain.Image, opts ports.DetectOptions) ([]domain.RawDetection, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img.ToRGBA(), &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	body, err := json.Marshal(detectRequest{
		Image:         base64.StdEncoding.EncodeToString(buf.Bytes()),
		Confidence:    opts.Confidence,
		IoU:           opts.IoU,
		MaxDetections: opts.MaxDetections,
		Track:         opts.Track,
		StreamID:      opts.StreamID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var resp detectResponse
	if err := c.do(ctx, http.MethodPost, "/detect", body, &resp); err != nil {
		return nil, err
	}

	rows := make([]domain.RawDetection, len(resp.Detections))
	for i, r := range resp.Detections {
		rows[i] = domain.RawDetection(r)
	}
	return rows, nil
}

// ClassNames returns the last class table fetched from the server.
func (c *Client) ClassNames() map[int]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.names
}

// LoadClassNames fetches the class table.
func (c *Client) LoadClassNames(ctx context.Context) error {
	var info infoResponse
	if err := c.do(ctx, http.MethodGet, "/info", nil, &info); err != nil {
		return err
	}

	names := make(map[int]string, len(info.Names))
	for k, v := range info.Names {
		id, err := strconv.Atoi(k)
		if err != nil {
			c.logger.Debugw("Skipping non-numeric class id", "id", k)
			continue
		}
		names[id] = v
	}

	c.mu.Lock()
	c.names = names
	c.mu.Unlock()
	return nil
}

// Ping reports whether the server answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.LoadClassNames(ctx)
}

// Probe waits for the server to come up, retrying with backoff.
func (c *Client) Probe(ctx context.Context, cfg retry.Config) error {
	return retry.Do(ctx, cfg, func(ctx context.Context) error {
		if err := c.LoadClassNames(ctx); err != nil {
			c.logger.Infow("Inference server not ready", "url", c.baseURL, "error", err)
			return err
		}
		return nil
	})
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
