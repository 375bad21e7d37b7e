// Package snapshot fuses a TemporalState with the route navigator's current
// context into the flat view the expert rule engine decides from.
package snapshot

import (
	"fmt"
	"math"

	"github.com/asgard/openeyes/internal/navigation"
	"github.com/asgard/openeyes/internal/state"
)

// Distance-based predicate thresholds, meters and degrees.
const (
	obstacleFrontThreshold   = 1.5
	obstacleSideThreshold    = 0.8
	deviatingYawThreshold    = 15.0
	offCourseThreshold       = 15.0
	stronglyOffCourseThresh  = 45.0
	nearWaypointThreshold    = 15.0
	nearDestinationThreshold = 10.0
	defaultClearDistance     = 10.0
	obstacleHighDistance     = 1.5

	approachAttenuationRate = 0.2
	approachAttenuationMax  = 0.3
)

// Snapshot is the decision-ready view consumed by the expert engine.
type Snapshot struct {
	Front, Left, Right float64
	ObstacleHigh       bool
	WaterDetected      bool

	Yaw, Pitch, Roll float64
	TimestampMs      int64

	TargetBearing          *float64
	HeadingDeviation       *float64
	DistanceToDestination  *float64
	DestinationName        *string
	DistanceToNextWaypoint *float64
	NextWaypointName       *string
}

// HasObstacleFront reports whether the front distance is within the close
// threshold.
func (s Snapshot) HasObstacleFront() bool { return s.Front < obstacleFrontThreshold }

// HasObstacleLeft reports whether the left distance is within the close
// threshold.
func (s Snapshot) HasObstacleLeft() bool { return s.Left < obstacleSideThreshold }

// HasObstacleRight reports whether the right distance is within the close
// threshold.
func (s Snapshot) HasObstacleRight() bool { return s.Right < obstacleSideThreshold }

// IsDeviating reports whether the IMU yaw alone indicates the traveler has
// drifted off their heading.
func (s Snapshot) IsDeviating() bool { return math.Abs(s.Yaw) > deviatingYawThreshold }

// HasActiveDestination reports whether GPS route context is present.
func (s Snapshot) HasActiveDestination() bool { return s.DestinationName != nil }

// IsOffCourse reports whether the GPS heading deviation exceeds the
// off-course threshold.
func (s Snapshot) IsOffCourse() bool {
	return s.HeadingDeviation != nil && math.Abs(*s.HeadingDeviation) > offCourseThreshold
}

// IsStronglyOffCourse reports a more severe heading deviation.
func (s Snapshot) IsStronglyOffCourse() bool {
	return s.HeadingDeviation != nil && math.Abs(*s.HeadingDeviation) > stronglyOffCourseThresh
}

// IsNearWaypoint reports whether the next waypoint is within range.
func (s Snapshot) IsNearWaypoint() bool {
	return s.DistanceToNextWaypoint != nil && *s.DistanceToNextWaypoint < nearWaypointThreshold
}

// IsNearDestination reports whether the final destination is within range.
func (s Snapshot) IsNearDestination() bool {
	return s.DistanceToDestination != nil && *s.DistanceToDestination < nearDestinationThreshold
}

// Build fuses a TemporalState and the route navigator's current context
// into a Snapshot. nav may be nil when no route is active. An error is
// returned (never a panic) when the state fails the validation gate: it
// must be fresh and carry no NaN IMU component.
func Build(ts *state.TemporalState, nav *navigation.Navigator) (Snapshot, error) {
	if ts == nil {
		return Snapshot{}, fmt.Errorf("snapshot: nil temporal state")
	}
	p := ts.Packet

	if !p.Fresh(ts.CreatedAtMs) {
		return Snapshot{}, fmt.Errorf("snapshot: state is not fresh (age over %dms)", 1000)
	}
	if math.IsNaN(p.IMU.Yaw) || math.IsNaN(p.IMU.Pitch) || math.IsNaN(p.IMU.Roll) {
		return Snapshot{}, fmt.Errorf("snapshot: IMU reading contains NaN")
	}

	front, left, right := defaultClearDistance, defaultClearDistance, defaultClearDistance
	lowerOr10 := orDefault(p.Obstacles.Lower, defaultClearDistance)
	upperOr10 := orDefault(p.Obstacles.Upper, defaultClearDistance)

	switch p.Obstacles.Zone() {
	case "right":
		right = lowerOr10
		front = upperOr10
	case "left":
		left = lowerOr10
		front = upperOr10
	default:
		front = lowerOr10
	}

	snap := Snapshot{
		Front:         front,
		Left:          left,
		Right:         right,
		ObstacleHigh:  p.Obstacles.Upper != nil && *p.Obstacles.Upper < obstacleHighDistance,
		WaterDetected: p.Water.Danger() || p.Water.Submerged(),
		Yaw:           p.IMU.Yaw,
		Pitch:         p.IMU.Pitch,
		Roll:          p.IMU.Roll,
		TimestampMs:   p.TimestampMs,
	}

	if ts.IsApproachingObstacle {
		snap.applyApproachEnhancement(ts.ApproachSpeed)
	}

	if nav != nil && nav.HasActiveDestination() {
		applyRouteContext(&snap, nav)
	}

	return snap, nil
}

// applyApproachEnhancement shortens the perceived distances when closing
// fast, giving downstream rules more time to react. Distances never go
// negative.
func (s *Snapshot) applyApproachEnhancement(approachSpeed float64) {
	attenuation := clamp(approachSpeed*approachAttenuationRate, 0, approachAttenuationMax)
	factor := 1 - attenuation
	s.Front = math.Max(0, s.Front*factor)
	s.Left = math.Max(0, s.Left*factor)
	s.Right = math.Max(0, s.Right*factor)
}

func applyRouteContext(s *Snapshot, nav *navigation.Navigator) {
	dest := nav.CurrentDestination()
	if dest == nil {
		return
	}
	name := dest.Name
	s.DestinationName = &name

	if bearing, ok := nav.TargetBearing(); ok {
		s.TargetBearing = &bearing
		deviation := headingDeviation(s.Yaw, bearing)
		s.HeadingDeviation = &deviation
	}
	if d, ok := nav.DistanceToDestination(); ok {
		s.DistanceToDestination = &d
	}
	if d, ok := nav.DistanceToCurrentWaypoint(); ok {
		s.DistanceToNextWaypoint = &d
	}
	idx := nav.CurrentWaypointIndex()
	if wps := dest.Waypoints; idx >= 0 && idx < len(wps) {
		name := wps[idx].Name
		s.NextWaypointName = &name
	}
}

// headingDeviation returns the signed angle between the current yaw and
// the bearing to the next waypoint, normalized to (-180,180].
func headingDeviation(yaw, bearing float64) float64 {
	d := math.Mod(bearing-yaw, 360)
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

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
