package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lensrelay/internal/core/domain"
	"lensrelay/pkg/imaging"
)

func newOverlay(t *testing.T, kind domain.TransformKind, det *fakeDetector, selected int, m *recordingMetrics) Stage {
	t.Helper()
	cfg := testStageConfig(det)
	cfg.Selected = func() int { return selected }
	cfg.FPS = func() int { return 30 }
	cfg.Metrics = m
	stage, err := NewStage(kind, cfg)
	require.NoError(t, err)
	return stage
}

func pixel(img *domain.Image, x, y int) imaging.Color {
	b, g, r := img.BGR(x, y)
	return imaging.Color{B: b, G: g, R: r}
}

func TestDetectionStage_ActiveTrackStyling(t *testing.T) {
	det := &fakeDetector{rows: []domain.RawDetection{
		{40, 40, 100, 100, 7, 0.9, 0},
		{120, 40, 180, 100, 8, 0.9, 0},
	}}
	m := &recordingMetrics{}
	stage := newOverlay(t, domain.TransformDetectTrack, det, 7, m)

	src := domain.NewImage(200, 120)
	out, err := stage.Apply(context.Background(), src)
	require.NoError(t, err)

	// Selected track: white 3px box.
	assert.Equal(t, imaging.White, pixel(out, 42, 70))
	// Other track: palette colour, 2px box.
	assert.Equal(t, imaging.PaletteColor(8), pixel(out, 121, 70))
	assert.Equal(t, imaging.Color{}, pixel(out, 122, 70))

	assert.Equal(t, 2, m.detections)
	require.Len(t, det.calls, 1)
	assert.True(t, det.calls[0].Track)
}

func TestDetectionStage_SkipsShortRows(t *testing.T) {
	det := &fakeDetector{rows: []domain.RawDetection{
		{10, 10, 50, 50},
		{60, 40, 100, 100, 0.8, 2},
	}}
	m := &recordingMetrics{}
	stage := newOverlay(t, domain.TransformDetectOnly, det, domain.NoTrack, m)

	out, err := stage.Apply(context.Background(), domain.NewImage(120, 120))
	require.NoError(t, err)

	assert.Equal(t, 1, m.detections)
	assert.Equal(t, imaging.PaletteColor(2), pixel(out, 60, 70))
	assert.Equal(t, imaging.Color{}, pixel(out, 10, 30))
	assert.False(t, det.calls[0].Track)
}

func TestDetectionStage_DetectorFailureDrawsNothing(t *testing.T) {
	for name, det := range map[string]*fakeDetector{
		"error":        {err: errors.New("unreachable")},
		"panic":        {panic: true},
		"breaker open": {err: fmt.Errorf("%w: circuit breaker is open", domain.ErrDetectorUnavailable)},
	} {
		t.Run(name, func(t *testing.T) {
			m := &recordingMetrics{}
			stage := newOverlay(t, domain.TransformDetectTrack, det, domain.NoTrack, m)

			src := domain.NewImage(80, 60)
			out, err := stage.Apply(context.Background(), src)
			require.NoError(t, err)
			assert.Equal(t, 1, m.detectionFailed)
			assert.Equal(t, 0, m.detections)
			assert.True(t, out.SameGeometry(src))
		})
	}
}

func TestDetectionStage_DrawsFPS(t *testing.T) {
	stage := newOverlay(t, domain.TransformDetectOnly, &fakeDetector{}, domain.NoTrack, &recordingMetrics{})

	out, err := stage.Apply(context.Background(), domain.NewImage(80, 40))
	require.NoError(t, err)

	lit := false
	for y := 10; y < 30 && !lit; y++ {
		for x := 10; x < 60; x++ {
			if pixel(out, x, y) == imaging.White {
				lit = true
				break
			}
		}
	}
	assert.True(t, lit)
}

func TestClassName(t *testing.T) {
	names := map[int]string{0: "person"}
	assert.Equal(t, "person", className(names, 0))
	assert.Equal(t, "class 5", className(names, 5))
}
