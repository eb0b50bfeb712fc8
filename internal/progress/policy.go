// Package progress reports playback progress into watch state while a title plays.
package progress

import (
	"math"
	"time"
)

// Policy maps time spent in the player to a progress value. final reports
// that no further updates are needed.
type Policy interface {
	Progress(elapsed time.Duration) (value float64, final bool)
}

// LinearRamp starts at Start and adds Step every Interval up to Cap.
// It stands in for real player telemetry.
type LinearRamp struct {
	Start    float64
	Step     float64
	Cap      float64
	Interval time.Duration
}

// DefaultRamp is 5, then +15 every 30s, capped at 90.
var DefaultRamp = LinearRamp{Start: 5, Step: 15, Cap: 90, Interval: 30 * time.Second}

// Progress implements Policy.
func (r LinearRamp) Progress(elapsed time.Duration) (float64, bool) {
	if elapsed < 0 {
		elapsed = 0
	}
	steps := 0.0
	if r.Interval > 0 {
		steps = math.Floor(float64(elapsed) / float64(r.Interval))
	}
	v := r.Start + r.Step*steps
	if v >= r.Cap {
		return r.Cap, true
	}
	return v, false
}

// Position derives progress from the real playback position as a percentage
// of the title duration. Positions are supplied through Reporter.Report.
type Position struct {
	Duration time.Duration
}

// Progress implements Policy.
func (p Position) Progress(elapsed time.Duration) (float64, bool) {
	if p.Duration <= 0 {
		return 0, false
	}
	v := 100 * float64(elapsed) / float64(p.Duration)
	if v >= 100 {
		return 100, true
	}
	if v < 0 {
		v = 0
	}
	return v, false
}
