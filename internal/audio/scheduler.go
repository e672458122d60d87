package audio

import "time"

// DefaultFrameRate is the meter refresh rate of IntervalScheduler.
const DefaultFrameRate = 60

// CancelFunc cancels a pending frame callback. Calling it after the callback
// ran, or more than once, has no effect.
type CancelFunc func()

// FrameScheduler runs a callback once on the next frame.
type FrameScheduler interface {
	RequestFrame(fn func()) CancelFunc
}

// IntervalScheduler schedules frames at a fixed rate using timers.
type IntervalScheduler struct {
	interval time.Duration
}

// NewIntervalScheduler creates a scheduler running fps frames per second.
// A non-positive fps selects DefaultFrameRate.
func NewIntervalScheduler(fps int) *IntervalScheduler {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	return &IntervalScheduler{interval: time.Second / time.Duration(fps)}
}

// RequestFrame runs fn once after one frame interval.
func (s *IntervalScheduler) RequestFrame(fn func()) CancelFunc {
	t := time.AfterFunc(s.interval, fn)
	return func() { t.Stop() }
}
