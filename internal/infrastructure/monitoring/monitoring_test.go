package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lensrelay/internal/core/domain"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestPrometheusCollector_SessionsAndFrames(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.SessionOpened()
	c.SessionOpened()
	c.SessionEnded(domain.StateFailed)
	c.FrameProcessed(domain.TransformEdge, 4*time.Millisecond)
	c.FrameProcessed(domain.TransformEdge, 6*time.Millisecond)
	c.TransformFailed(domain.TransformBlur)
	c.DetectionFailed()
	c.DetectionsRendered(domain.TransformDetectTrack, 3)
	c.DetectionsRendered(domain.TransformDetectTrack, 0)

	assert.Equal(t, 1.0, gather(t, reg, "lensrelay_sessions_active").GetMetric()[0].GetGauge().GetValue())

	ended := gather(t, reg, "lensrelay_sessions_total").GetMetric()
	require.Len(t, ended, 1)
	assert.Equal(t, "failed", ended[0].GetLabel()[0].GetValue())

	frames := gather(t, reg, "lensrelay_frames_processed_total").GetMetric()
	require.Len(t, frames, 1)
	assert.Equal(t, 2.0, frames[0].GetCounter().GetValue())
	assert.Equal(t, "edge", frames[0].GetLabel()[0].GetValue())

	hist := gather(t, reg, "lensrelay_frame_processing_seconds").GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(2), hist.GetSampleCount())

	assert.Equal(t, 3.0, gather(t, reg, "lensrelay_detections_total").GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 1.0, gather(t, reg, "lensrelay_detection_failures_total").GetMetric()[0].GetCounter().GetValue())
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthChecker_CheckAll(t *testing.T) {
	h := NewHealthChecker()
	h.AddInferenceCheck(pingerFunc(func(context.Context) error { return nil }), time.Second)
	assert.Equal(t, "healthy", h.CheckAll(context.Background()).Status)
	assert.True(t, h.IsReady(context.Background()))

	h.AddInferenceCheck(pingerFunc(func(context.Context) error { return errors.New("connection refused") }), time.Second)
	status := h.CheckAll(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "connection refused", status.Checks["inference"])
}

func TestHealthChecker_SessionCapacity(t *testing.T) {
	active := 0
	h := NewHealthChecker()
	h.AddSessionCapacityCheck(func() int { return active }, 2)

	assert.True(t, h.IsReady(context.Background()))
	active = 2
	assert.False(t, h.IsReady(context.Background()))
}

func TestHealthChecker_TimeoutIsApplied(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("slow", func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	}, 10*time.Millisecond)

	status := h.CheckAll(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Contains(t, status.Checks["slow"], "deadline")
}

func TestGetReadinessStatus_IncludesProcessStats(t *testing.T) {
	status := NewHealthChecker().GetReadinessStatus(context.Background())

	require.NotNil(t, status.Process)
	assert.Greater(t, status.Process.PID, int32(0))
}
