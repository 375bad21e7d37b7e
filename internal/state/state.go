// Package state derives temporal signals — orientation deltas, rotation
// speed, obstacle approach/recession, and a composite danger level — from
// consecutive filtered sensor packets.
package state

import (
	"math"

	"github.com/asgard/openeyes/internal/sensing"
)

// IMUDelta holds the shortest-path angle deltas between two IMU readings,
// each normalized to (-180, 180].
type IMUDelta struct {
	Yaw   float64
	Pitch float64
	Roll  float64
}

// ObstacleDelta holds the signed distance change per obstacle channel.
// A negative value means the obstacle moved closer; positive means it
// receded or disappeared.
type ObstacleDelta struct {
	Upper *float64
	Lower *float64
}

// Danger-level and priority thresholds. Not specified numerically by the
// governing spec beyond "alert_priority in {0,1,2,3}"; chosen so priority 3
// ("emergency escalation") lines up exactly with RequiresImmediateAlert's
// own danger_level>1.5 threshold.
const (
	dangerLevelCaution  = 0.3
	dangerLevelWarning  = 0.8
	dangerLevelCritical = 1.5

	staleDangerAdd    = 0.5
	approachSpeedMult = 3.0
	rotatingAdd       = 0.3

	rotatingFastThresholdDegPerSec = 30.0
	approachingThresholdMeters     = 0.1
	immediateApproachSpeedMps      = 0.5
)

// TemporalState is the temporal derivation over one filtered packet and,
// optionally, the state derived from the packet immediately before it. Only
// one level of history is retained: Previous's own Previous is always nil,
// so the chain never grows past depth 2 (spec.md §9's "ring buffer of size
// 2" guidance, expressed here as a plain one-deep pointer instead of an
// arena+index, which buys nothing extra in Go).
type TemporalState struct {
	Packet      sensing.Packet
	CreatedAtMs int64
	Previous    *TemporalState

	IMUDelta       IMUDelta
	RotationSpeed  float64 // deg/s; 0 when undefined (time_diff <= 0)
	IsRotatingFast bool

	ObstacleDelta         ObstacleDelta
	ApproachSpeed         float64 // m/s, max closing rate across directions
	IsApproachingObstacle bool

	DangerLevel   float64 // unclamped; see spec.md §4.2
	AlertPriority int     // 0..3
}

// FromPacket derives a TemporalState from a filtered packet and the
// previous cycle's state (nil on the first packet). createdAtMs is the
// wall-clock time the pipeline produced this state, captured independently
// of the packet's own timestamp since filtering may introduce latency.
func FromPacket(packet sensing.Packet, previous *TemporalState, createdAtMs int64) *TemporalState {
	ts := &TemporalState{
		Packet:      packet,
		CreatedAtMs: createdAtMs,
	}
	if previous != nil {
		prevShallow := *previous
		prevShallow.Previous = nil
		ts.Previous = &prevShallow
	}

	if previous != nil {
		dt := float64(createdAtMs-previous.CreatedAtMs) / 1000.0
		ts.IMUDelta = IMUDelta{
			Yaw:   angleDelta(previous.Packet.IMU.Yaw, packet.IMU.Yaw),
			Pitch: angleDelta(previous.Packet.IMU.Pitch, packet.IMU.Pitch),
			Roll:  angleDelta(previous.Packet.IMU.Roll, packet.IMU.Roll),
		}
		if dt > 0 {
			ts.RotationSpeed = math.Abs(ts.IMUDelta.Yaw) / dt
		}
		ts.IsRotatingFast = ts.RotationSpeed > rotatingFastThresholdDegPerSec

		ts.ObstacleDelta = ObstacleDelta{
			Upper: obstacleDelta(previous.Packet.Obstacles.Upper, packet.Obstacles.Upper),
			Lower: obstacleDelta(previous.Packet.Obstacles.Lower, packet.Obstacles.Lower),
		}
		ts.ApproachSpeed = approachSpeed(ts.ObstacleDelta, dt)
		ts.IsApproachingObstacle = closesBeyond(ts.ObstacleDelta, approachingThresholdMeters)
	}

	ts.DangerLevel = dangerLevel(ts)
	ts.AlertPriority = alertPriority(ts.DangerLevel)

	return ts
}

// angleDelta returns the shortest-path signed delta from a to b, normalized
// to (-180, 180].
func angleDelta(a, b float64) float64 {
	d := math.Mod(b-a, 360)
	switch {
	case d < -180:
		d += 360
	case d > 180:
		d -= 360
	case d == -180:
		d = 180
	}
	return d
}

// obstacleDelta applies the signed appearance/recession/difference rule.
func obstacleDelta(prev, cur *float64) *float64 {
	switch {
	case prev == nil && cur == nil:
		return nil
	case prev == nil && cur != nil:
		v := -*cur
		return &v
	case prev != nil && cur == nil:
		v := *prev
		return &v
	default:
		v := *cur - *prev
		return &v
	}
}

func approachSpeed(d ObstacleDelta, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	max := 0.0
	for _, delta := range []*float64{d.Upper, d.Lower} {
		if delta == nil || *delta >= 0 {
			continue
		}
		rate := -*delta / dt
		if rate > max {
			max = rate
		}
	}
	return max
}

func closesBeyond(d ObstacleDelta, threshold float64) bool {
	for _, delta := range []*float64{d.Upper, d.Lower} {
		if delta != nil && *delta < -threshold {
			return true
		}
	}
	return false
}

// dangerLevel combines the filtered packet's own obstacle danger score with
// staleness, approach speed, and rotation penalties. Deliberately
// unclamped: a concurrence of factors can exceed 1.0, which is the signal
// alertPriority and RequiresImmediateAlert key off of.
func dangerLevel(ts *TemporalState) float64 {
	level := ts.Packet.Obstacles.DangerScore()
	if ts.Packet.Stale(ts.CreatedAtMs) {
		level += staleDangerAdd
	}
	level += ts.ApproachSpeed * approachSpeedMult
	if ts.IsRotatingFast {
		level += rotatingAdd
	}
	return level
}

func alertPriority(level float64) int {
	switch {
	case level >= dangerLevelCritical:
		return 3
	case level >= dangerLevelWarning:
		return 2
	case level >= dangerLevelCaution:
		return 1
	default:
		return 0
	}
}

// RequiresImmediateAlert reports whether this state demands preemptive
// speech. "Packet's own immediate flag" (spec.md §4.2) is realized here as
// the packet itself signaling an emergency independent of history: a
// dangerous tilt (fall risk) or full submersion — the SOS/SMS hardware
// flag the source firmware also reports is explicitly out of scope
// (spec.md §1) and never reaches this layer.
func (ts *TemporalState) RequiresImmediateAlert() bool {
	if ts.Packet.IMU.DangerousTilt() || ts.Packet.Water.Submerged() {
		return true
	}
	if ts.DangerLevel > dangerLevelCritical {
		return true
	}
	return ts.ApproachSpeed > immediateApproachSpeedMps
}
