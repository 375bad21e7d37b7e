package executor

import (
	"math"

	"github.com/asgard/openeyes/internal/snapshot"
)

const (
	avgWalkingSpeedMps  = 1.4
	pitchAttenuationAt  = 10.0
	pitchAttenuation    = 0.8
	yawDampingThreshold = 15.0
)

// displacementTracker estimates distance traveled since an instruction was
// issued, from the snapshot taken at emission time and the latest
// snapshot, per spec §4.7.
type displacementTracker struct {
	start       snapshot.Snapshot
	targetM     float64
	trackedM    float64
	hasExternal bool
}

func newDisplacementTracker(start snapshot.Snapshot, targetM float64) *displacementTracker {
	return &displacementTracker{start: start, targetM: targetM}
}

// update folds in elapsed time (seconds) and the current snapshot, and
// returns the updated tracked distance.
func (d *displacementTracker) update(deltaSeconds float64, current snapshot.Snapshot) float64 {
	if d.hasExternal {
		return d.trackedM
	}
	attenuation := 1.0
	if math.Abs(current.Pitch) > pitchAttenuationAt {
		attenuation = pitchAttenuation
	}
	distance := avgWalkingSpeedMps * deltaSeconds * attenuation

	deltaYaw := math.Abs(current.Yaw - d.start.Yaw)
	if deltaYaw > yawDampingThreshold {
		distance *= math.Cos(deltaYaw * math.Pi / 180)
	}
	if distance > 0 {
		d.trackedM += distance
	}
	return d.trackedM
}

// supplyExternal overrides the estimate with an externally measured
// distance (for future odometry integration), per spec §4.7.
func (d *displacementTracker) supplyExternal(distanceM float64) float64 {
	d.hasExternal = true
	d.trackedM = distanceM
	return d.trackedM
}

// reached reports whether the tracked distance has met the target.
func (d *displacementTracker) reached() bool {
	return d.trackedM >= d.targetM
}
