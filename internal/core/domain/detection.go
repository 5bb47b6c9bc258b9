package domain

import (
	"image"
	"math"
)

// NoTrack marks a detection or selection without a track identity.
const NoTrack = -1

// RawDetection is one row as produced by the inference collaborator:
// [x1, y1, x2, y2, conf, cls] or, with tracking, [x1, y1, x2, y2, track, conf, cls].
type RawDetection []float64

const (
	untrackedFields = 6
	trackedFields   = 7
)

// Detection is a validated, clamped detection for one frame.
type Detection struct {
	Box        image.Rectangle
	ClassID    int
	Confidence float64
	TrackID    int
}

// Tracked reports whether the detection carries a track identity.
func (d Detection) Tracked() bool {
	return d.TrackID != NoTrack
}

// ParseDetection converts a raw row into a Detection clamped to bounds. It returns
// false for rows that are too short, contain NaNs, or collapse to an empty box.
func ParseDetection(row RawDetection, bounds image.Rectangle) (Detection, bool) {
	if len(row) < untrackedFields {
		return Detection{}, false
	}
	for _, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Detection{}, false
		}
	}

	d := Detection{TrackID: NoTrack}
	if len(row) >= trackedFields {
		d.TrackID = int(row[4])
		d.Confidence = row[5]
		d.ClassID = int(row[6])
	} else {
		d.Confidence = row[4]
		d.ClassID = int(row[5])
	}
	if d.ClassID < 0 {
		return Detection{}, false
	}
	if d.TrackID < 0 {
		d.TrackID = NoTrack
	}
	d.Confidence = math.Max(0, math.Min(1, d.Confidence))

	x1, y1, x2, y2 := int(row[0]), int(row[1]), int(row[2]), int(row[3])
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	box := image.Rect(x1, y1, x2, y2).Intersect(bounds)
	if box.Empty() {
		return Detection{}, false
	}
	d.Box = box
	return d, true
}
