// Package filter smooths a stream of raw sensor packets with a bounded
// sliding-window moving average, rejecting obstacle-distance samples that
// jump further than is physically plausible at walking speed.
package filter

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/asgard/openeyes/internal/sensing"
)

const (
	// DefaultWindowSize is used by New when no size is given.
	DefaultWindowSize = 5
	minWindowSize     = 2
	maxWindowSize     = 20
	// anomalyJumpMeters gates obstacle-distance samples: a new reading more
	// than this far from the last valid one is physically impossible at
	// walking speed and is dropped rather than averaged in.
	anomalyJumpMeters = 1.5
)

// ring is a fixed-capacity sliding window of possibly-absent float samples.
type ring struct {
	capacity int
	samples  []*float64
}

func newRing(capacity int) *ring {
	return &ring{capacity: capacity, samples: make([]*float64, 0, capacity)}
}

func (r *ring) push(v *float64) {
	r.samples = append(r.samples, v)
	if len(r.samples) > r.capacity {
		r.samples = r.samples[1:]
	}
}

func (r *ring) size() int { return len(r.samples) }

func (r *ring) full() bool { return len(r.samples) >= r.capacity }

// mean returns the arithmetic mean of the non-nil samples currently held.
// The second return value is false if no sample is non-nil.
func (r *ring) mean() (float64, bool) {
	vals := make([]float64, 0, len(r.samples))
	for _, s := range r.samples {
		if s != nil {
			vals = append(vals, *s)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	m, err := stats.Mean(vals)
	if err != nil {
		return 0, false
	}
	return m, true
}

func (r *ring) reset() { r.samples = r.samples[:0] }

// axisWindow filters a value that is always present (IMU angles, servo
// angle): plain moving average, raw pass-through while warming up.
type axisWindow struct {
	ring *ring
}

func newAxisWindow(capacity int) *axisWindow {
	return &axisWindow{ring: newRing(capacity)}
}

func (a *axisWindow) apply(raw float64) float64 {
	a.ring.push(&raw)
	if a.ring.size() < minWindowSize {
		return raw
	}
	mean, ok := a.ring.mean()
	if !ok {
		return raw
	}
	return mean
}

func (a *axisWindow) reset() { a.ring.reset() }

// obstacleWindow filters a nullable obstacle distance: moving average over
// non-null samples, with anomaly rejection and warm-up pass-through.
type obstacleWindow struct {
	ring       *ring
	lastNonNil *float64
	lastMean   *float64
}

func newObstacleWindow(capacity int) *obstacleWindow {
	return &obstacleWindow{ring: newRing(capacity)}
}

func (o *obstacleWindow) apply(raw *float64) *float64 {
	rejected := raw != nil && o.lastNonNil != nil &&
		math.Abs(*raw-*o.lastNonNil) > anomalyJumpMeters

	if !rejected {
		o.ring.push(raw)
		if raw != nil {
			v := *raw
			o.lastNonNil = &v
		}
	}

	if o.ring.size() < minWindowSize {
		if rejected {
			return o.lastMean
		}
		return raw
	}

	if rejected {
		return o.lastMean
	}

	mean, ok := o.ring.mean()
	if !ok {
		o.lastMean = nil
		return nil
	}
	o.lastMean = &mean
	return &mean
}

func (o *obstacleWindow) reset() {
	o.ring.reset()
	o.lastNonNil = nil
	o.lastMean = nil
}

// Filter maintains the per-axis and per-obstacle-channel windows and
// produces a smoothed packet from a raw stream. A Filter is not safe for
// concurrent use; the pipeline owns exactly one instance per packet stream.
type Filter struct {
	windowSize int
	yaw        *axisWindow
	pitch      *axisWindow
	roll       *axisWindow
	upper      *obstacleWindow
	lower      *obstacleWindow
	servo      *axisWindow
}

// New creates a Filter with the given window capacity, clamped to [2, 20].
// A size of 0 uses DefaultWindowSize.
func New(windowSize int) *Filter {
	if windowSize == 0 {
		windowSize = DefaultWindowSize
	}
	if windowSize < minWindowSize {
		windowSize = minWindowSize
	}
	if windowSize > maxWindowSize {
		windowSize = maxWindowSize
	}
	return &Filter{
		windowSize: windowSize,
		yaw:        newAxisWindow(windowSize),
		pitch:      newAxisWindow(windowSize),
		roll:       newAxisWindow(windowSize),
		upper:      newObstacleWindow(windowSize),
		lower:      newObstacleWindow(windowSize),
		servo:      newAxisWindow(windowSize),
	}
}

// Apply pushes one raw packet through the windows and returns the smoothed
// packet. Water and GPS readings pass through unfiltered.
func (f *Filter) Apply(p sensing.Packet) sensing.Packet {
	out := p
	out.IMU = sensing.IMU{
		Yaw:   f.yaw.apply(p.IMU.Yaw),
		Pitch: f.pitch.apply(p.IMU.Pitch),
		Roll:  f.roll.apply(p.IMU.Roll),
	}
	out.Obstacles = sensing.ObstaclePair{
		Upper:      f.upper.apply(p.Obstacles.Upper),
		Lower:      f.lower.apply(p.Obstacles.Lower),
		ServoAngle: f.servo.apply(p.Obstacles.ServoAngle),
	}
	return out
}

// Reset clears all windows, discarding accumulated history.
func (f *Filter) Reset() {
	f.yaw.reset()
	f.pitch.reset()
	f.roll.reset()
	f.upper.reset()
	f.lower.reset()
	f.servo.reset()
}

// IsWarmedUp reports whether every window holds a full W samples.
func (f *Filter) IsWarmedUp() bool {
	return f.yaw.ring.full() && f.pitch.ring.full() && f.roll.ring.full() &&
		f.upper.ring.full() && f.lower.ring.full() && f.servo.ring.full()
}

// WindowSize returns the configured window capacity.
func (f *Filter) WindowSize() int { return f.windowSize }
