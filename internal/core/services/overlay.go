package services

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	"lensrelay/internal/core/domain"
	"lensrelay/internal/core/ports"
	"lensrelay/pkg/imaging"
)

const (
	boxThickness       = 2
	activeBoxThickness = 3
)

var fpsOrigin = image.Pt(10, 25)

type detectionStage struct {
	kind     domain.TransformKind
	detector ports.Detector
	opts     ports.DetectOptions
	selected func() int
	fps      func() int
	metrics  ports.PipelineMetrics
	log      *zap.SugaredLogger
}

func newDetectionStage(kind domain.TransformKind, cfg StageConfig) *detectionStage {
	s := &detectionStage{
		kind:     kind,
		detector: cfg.Detector,
		opts:     cfg.Detect,
		selected: cfg.Selected,
		fps:      cfg.FPS,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
	}
	s.opts.Track = kind == domain.TransformDetectTrack
	if s.selected == nil {
		s.selected = func() int { return domain.NoTrack }
	}
	if s.fps == nil {
		s.fps = func() int { return 0 }
	}
	if s.metrics == nil {
		s.metrics = ports.NopMetrics{}
	}
	if s.log == nil {
		s.log = zap.NewNop().Sugar()
	}
	return s
}

func (s *detectionStage) Kind() domain.TransformKind { return s.kind }

func (s *detectionStage) Apply(ctx context.Context, img *domain.Image) (*domain.Image, error) {
	out := img.Clone()

	rows, err := s.detect(ctx, img)
	if err != nil {
		s.metrics.DetectionFailed()
		s.log.Debugw("Detection failed, drawing no boxes", "error", err)
		rows = nil
	}

	names := s.detector.ClassNames()
	selected := s.selected()
	drawn := 0
	for _, row := range rows {
		d, ok := domain.ParseDetection(row, out.Bounds())
		if !ok {
			continue
		}
		s.draw(out, d, names, selected)
		drawn++
	}
	s.metrics.DetectionsRendered(s.kind, drawn)

	imaging.DrawText(out, fpsOrigin, fmt.Sprintf("FPS: %d", s.fps()), imaging.White)
	return out, nil
}

func (s *detectionStage) detect(ctx context.Context, img *domain.Image) (rows []domain.RawDetection, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("detector panic: %v", r)
		}
	}()
	return s.detector.Detect(ctx, img, s.opts)
}

func (s *detectionStage) draw(img *domain.Image, d domain.Detection, names map[int]string, selected int) {
	name := className(names, d.ClassID)

	if s.kind == domain.TransformDetectOnly {
		c := imaging.PaletteColor(d.ClassID)
		imaging.DrawRect(img, d.Box, c, boxThickness)
		imaging.DrawLabel(img, d.Box, fmt.Sprintf("%s %.2f", name, d.Confidence), c, imaging.White)
		return
	}

	if d.Tracked() && d.TrackID == selected {
		imaging.DrawRect(img, d.Box, imaging.White, activeBoxThickness)
		imaging.DrawLabel(img, d.Box, fmt.Sprintf("ACTIVE: TRACK %d", d.TrackID), imaging.Red, imaging.White)
		return
	}

	c := imaging.PaletteColor(d.ClassID)
	if d.Tracked() {
		c = imaging.PaletteColor(d.TrackID)
	}
	imaging.DrawRect(img, d.Box, c, boxThickness)
	imaging.DrawLabel(img, d.Box, fmt.Sprintf("%s ID %d", name, d.TrackID), c, imaging.White)
}

func className(names map[int]string, id int) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return fmt.Sprintf("class %d", id)
}
