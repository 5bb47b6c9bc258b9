package domain

import "time"

// Rational is a time base: one PTS tick lasts Num/Den seconds.
type Rational struct {
	Num int
	Den int
}

// VideoTimeBase is the RTP clock used for video.
var VideoTimeBase = Rational{Num: 1, Den: 90000}

// Duration converts ticks to wall time.
func (r Rational) Duration(ticks int64) time.Duration {
	if r.Den == 0 {
		return 0
	}
	return time.Duration(ticks) * time.Second * time.Duration(r.Num) / time.Duration(r.Den)
}

// Frame is one decoded video frame plus its presentation timing.
type Frame struct {
	Image    *Image
	PTS      int64
	TimeBase Rational
}

// WithImage returns a frame carrying img and f's timing unchanged.
func (f Frame) WithImage(img *Image) Frame {
	return Frame{Image: img, PTS: f.PTS, TimeBase: f.TimeBase}
}
