package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lensrelay/internal/core/domain"
)

func testStageConfig(det *fakeDetector) StageConfig {
	return StageConfig{
		BlurKernel: 15,
		EdgeLow:    100,
		EdgeHigh:   200,
		Detector:   det,
	}
}

func TestNewStage_AllKindsPreserveGeometry(t *testing.T) {
	det := &fakeDetector{rows: []domain.RawDetection{{4, 4, 20, 20, 0.9, 0}}}
	src := domain.NewSolidImage(64, 48, 20, 120, 240)

	for _, kind := range domain.TransformKinds {
		t.Run(kind.String(), func(t *testing.T) {
			stage, err := NewStage(kind, testStageConfig(det))
			require.NoError(t, err)
			assert.Equal(t, kind, stage.Kind())

			out, err := stage.Apply(context.Background(), src)
			require.NoError(t, err)
			assert.Equal(t, src.Width, out.Width)
			assert.Equal(t, src.Height, out.Height)
			assert.Equal(t, domain.PixelFormatBGR24, out.Format)
			assert.NoError(t, out.Validate())
		})
	}
}

func TestNewStage_DetectionNeedsDetector(t *testing.T) {
	_, err := NewStage(domain.TransformDetectTrack, StageConfig{})
	assert.Error(t, err)
}

func TestNewStage_UnknownKind(t *testing.T) {
	_, err := NewStage(domain.TransformKind(99), StageConfig{})
	assert.ErrorIs(t, err, domain.ErrUnknownTransform)
}

func TestPassthroughStage_ReturnsSameBuffer(t *testing.T) {
	src := domain.NewSolidImage(4, 4, 1, 2, 3)
	stage, err := NewStage(domain.TransformPassthrough, StageConfig{})
	require.NoError(t, err)

	out, err := stage.Apply(context.Background(), src)
	require.NoError(t, err)
	assert.Same(t, src, out)
}

func TestGrayscaleStage_LeavesInputUntouched(t *testing.T) {
	src := domain.NewSolidImage(4, 4, 10, 20, 200)
	before := append([]byte(nil), src.Pix...)
	stage, _ := NewStage(domain.TransformGrayscale, StageConfig{})

	out, err := stage.Apply(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, before, src.Pix)

	b, g, r := out.BGR(2, 2)
	assert.True(t, b == g && g == r)
}
