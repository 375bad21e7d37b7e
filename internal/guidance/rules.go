package guidance

import (
	"math"

	"github.com/asgard/openeyes/internal/snapshot"
)

const (
	immediateFrontThreshold  = 1.0
	immediateFreeSide        = 1.5
	gpsRouteFreeSide         = 2.0
	gpsRouteHeadingTolerance = 30.0
	mediumFrontLow           = 1.0
	mediumFrontHigh          = 2.0
	deviationHardTurn        = 30.0
)

// --- 100: HighObstacle ---

type highObstacleRule struct{}

func (highObstacleRule) Name() string                     { return "HighObstacle" }
func (highObstacleRule) Priority() int                    { return 100 }
func (highObstacleRule) Matches(s snapshot.Snapshot) bool { return s.ObstacleHigh }
func (highObstacleRule) Apply(snapshot.Snapshot) Instruction {
	return Instruction{Kind: KindWarning, Message: "head-height obstacle", Immediate: true}
}

// --- 95: DestinationReached (one-shot) ---

type destinationReachedRule struct {
	latch *bool
}

func (destinationReachedRule) Name() string  { return "DestinationReached" }
func (destinationReachedRule) Priority() int { return 95 }
func (r destinationReachedRule) Matches(s snapshot.Snapshot) bool {
	near := s.IsNearDestination()
	if !near {
		*r.latch = false
		return false
	}
	if *r.latch {
		return false
	}
	return true
}
func (r destinationReachedRule) Apply(s snapshot.Snapshot) Instruction {
	*r.latch = true
	return Instruction{
		Kind:           KindGuidance,
		Message:        "you have arrived at your destination",
		FollowUpAction: followUp(FollowUpStop),
	}
}

// --- 90: Water ---

type waterRule struct{}

func (waterRule) Name() string              { return "Water" }
func (waterRule) Priority() int             { return 90 }
func (waterRule) Matches(s snapshot.Snapshot) bool { return s.WaterDetected }
func (waterRule) Apply(snapshot.Snapshot) Instruction {
	return Instruction{Kind: KindWarning, Message: "water, advance slowly", Immediate: true}
}

// --- 80: ImmediateObstacleFront ---

type immediateObstacleFrontRule struct{}

func (immediateObstacleFrontRule) Name() string  { return "ImmediateObstacleFront" }
func (immediateObstacleFrontRule) Priority() int { return 80 }
func (immediateObstacleFrontRule) Matches(s snapshot.Snapshot) bool {
	return s.Front < immediateFrontThreshold
}
func (immediateObstacleFrontRule) Apply(s snapshot.Snapshot) Instruction {
	side, ok := pickFreeSide(s.Left, s.Right, immediateFreeSide, nil)
	if !ok {
		return Instruction{Kind: KindWarning, Message: "stop", Immediate: true}
	}
	return withDistance(Instruction{
		Kind:           KindGuidance,
		Message:        "obstacle ahead, step " + side.String(),
		FollowUpAction: followUp(side.followUp()),
	}, side.distance)
}

// --- 75: ObstacleOnGpsRoute ---

type obstacleOnGpsRouteRule struct{}

func (obstacleOnGpsRouteRule) Name() string  { return "ObstacleOnGpsRoute" }
func (obstacleOnGpsRouteRule) Priority() int { return 75 }
func (obstacleOnGpsRouteRule) Matches(s snapshot.Snapshot) bool {
	return s.HasObstacleFront() &&
		s.HasActiveDestination() &&
		s.HeadingDeviation != nil &&
		math.Abs(*s.HeadingDeviation) <= gpsRouteHeadingTolerance
}
func (obstacleOnGpsRouteRule) Apply(s snapshot.Snapshot) Instruction {
	gpsSide := gpsConsistentSide(s)
	side, ok := pickFreeSide(s.Left, s.Right, gpsRouteFreeSide, gpsSide)
	if !ok {
		return Instruction{Kind: KindWarning, Message: "obstacle blocks your route, stop", Immediate: true}
	}
	return withDistance(Instruction{
		Kind:           KindGuidance,
		Message:        "obstacle on route, detour " + side.String(),
		FollowUpAction: followUp(side.followUp()),
	}, side.distance)
}

// --- 70: MediumObstacleFront ---

type mediumObstacleFrontRule struct{}

func (mediumObstacleFrontRule) Name() string  { return "MediumObstacleFront" }
func (mediumObstacleFrontRule) Priority() int { return 70 }
func (mediumObstacleFrontRule) Matches(s snapshot.Snapshot) bool {
	return s.Front >= mediumFrontLow && s.Front < mediumFrontHigh
}
func (mediumObstacleFrontRule) Apply(s snapshot.Snapshot) Instruction {
	distance := clamp(s.Front-0.5, 0.5, 1.5)
	side, ok := pickFreeSide(s.Left, s.Right, immediateFreeSide, nil)
	followUpKind := FollowUpContinue
	if ok {
		followUpKind = side.followUp()
	}
	return withDistance(Instruction{
		Kind:           KindGuidance,
		Message:        "obstacle ahead, slow down",
		FollowUpAction: followUp(followUpKind),
	}, distance)
}

// --- 65: GpsLostDuringNavigation (pipeline-driven) ---

type gpsLostDuringNavigationRule struct{}

func (gpsLostDuringNavigationRule) Name() string  { return "GpsLostDuringNavigation" }
func (gpsLostDuringNavigationRule) Priority() int { return 65 }
func (gpsLostDuringNavigationRule) Matches(snapshot.Snapshot) bool { return false }
func (gpsLostDuringNavigationRule) Apply(snapshot.Snapshot) Instruction {
	return Instruction{Kind: KindWarning, Message: "GPS lost, navigation suspended", Immediate: true}
}
func (r gpsLostDuringNavigationRule) matchesContext(ctx ruleContext) bool { return ctx.gpsLost }
func (r gpsLostDuringNavigationRule) applyContext(ruleContext) Instruction {
	return r.Apply(snapshot.Snapshot{})
}

// --- 60: TrajectoryDeviation ---

type trajectoryDeviationRule struct{}

func (trajectoryDeviationRule) Name() string  { return "TrajectoryDeviation" }
func (trajectoryDeviationRule) Priority() int { return 60 }
func (trajectoryDeviationRule) Matches(s snapshot.Snapshot) bool { return s.IsDeviating() }
func (trajectoryDeviationRule) Apply(s snapshot.Snapshot) Instruction {
	if math.Abs(s.Yaw) > deviationHardTurn {
		return withDistance(Instruction{
			Kind:           KindCorrection,
			Message:        "go back 1 meter, then turn around",
			FollowUpAction: followUp(FollowUpContinue),
		}, 1.0)
	}
	return Instruction{
		Kind:           KindCorrection,
		Message:        "straighten your heading",
		FollowUpAction: followUp(FollowUpContinue),
	}
}

// --- 50: LateralObstacle ---

type lateralObstacleRule struct{}

func (lateralObstacleRule) Name() string  { return "LateralObstacle" }
func (lateralObstacleRule) Priority() int { return 50 }
func (lateralObstacleRule) Matches(s snapshot.Snapshot) bool {
	return s.HasObstacleLeft() || s.HasObstacleRight()
}
func (lateralObstacleRule) Apply(s snapshot.Snapshot) Instruction {
	left, right := s.HasObstacleLeft(), s.HasObstacleRight()
	if left && right {
		return Instruction{Kind: KindWarning, Message: "narrow passage, proceed with caution"}
	}
	if left {
		return Instruction{Kind: KindWarning, Message: "obstacle on your left"}
	}
	return Instruction{Kind: KindWarning, Message: "obstacle on your right"}
}

// --- 40: WaypointReached (one-shot) ---

type waypointReachedRule struct {
	latch *bool
}

func (waypointReachedRule) Name() string  { return "WaypointReached" }
func (waypointReachedRule) Priority() int { return 40 }
func (r waypointReachedRule) Matches(s snapshot.Snapshot) bool {
	near := s.IsNearWaypoint() && !s.IsNearDestination()
	if !near {
		*r.latch = false
		return false
	}
	if *r.latch {
		return false
	}
	return true
}
func (r waypointReachedRule) Apply(s snapshot.Snapshot) Instruction {
	*r.latch = true
	name := "waypoint"
	if s.NextWaypointName != nil && *s.NextWaypointName != "" {
		name = *s.NextWaypointName
	}
	return Instruction{
		Kind:           KindGuidance,
		Message:        "reached " + name,
		FollowUpAction: followUp(FollowUpContinue),
	}
}

// --- 10: GpsNavigation ---

type gpsNavigationRule struct{}

func (gpsNavigationRule) Name() string  { return "GpsNavigation" }
func (gpsNavigationRule) Priority() int { return 10 }
func (gpsNavigationRule) Matches(s snapshot.Snapshot) bool {
	return s.HasActiveDestination() && s.IsOffCourse() &&
		!s.HasObstacleFront() && !s.HasObstacleLeft() && !s.HasObstacleRight()
}
func (gpsNavigationRule) Apply(s snapshot.Snapshot) Instruction {
	// Correction direction = sign(-heading_deviation): a positive deviation
	// means the route bearing is ahead-right of the current heading, so the
	// correction (the sign-flipped quantity) is negative, meaning turn right.
	dir := FollowUpTurnRight
	if s.HeadingDeviation != nil && -*s.HeadingDeviation > 0 {
		dir = FollowUpTurnLeft
	}
	msg := "turn right to stay on route"
	if dir == FollowUpTurnLeft {
		msg = "turn left to stay on route"
	}
	return Instruction{Kind: KindGuidance, Message: msg, FollowUpAction: followUp(dir)}
}

// --- 0: ClearPath ---

type clearPathRule struct{}

func (clearPathRule) Name() string                     { return "ClearPath" }
func (clearPathRule) Priority() int                    { return 0 }
func (clearPathRule) Matches(snapshot.Snapshot) bool   { return true }
func (clearPathRule) Apply(snapshot.Snapshot) Instruction {
	return Instruction{Kind: KindGuidance, Message: "clear, continue", FollowUpAction: followUp(FollowUpContinue)}
}

// --- side selection helpers ---

type freeSide struct {
	name     string
	distance float64
	isLeft   bool
}

func (f freeSide) String() string {
	if f.isLeft {
		return "left"
	}
	return "right"
}

func (f freeSide) followUp() FollowUpActionKind {
	if f.isLeft {
		return FollowUpTurnLeft
	}
	return FollowUpTurnRight
}

// pickFreeSide implements spec §4.5's tie-breaking policy: if exactly one
// side clears the threshold, pick it; if both clear, pick the larger
// distance unless a GPS-consistent preference is supplied; if neither
// clears, report no free side.
func pickFreeSide(left, right, threshold float64, gpsPreferLeft *bool) (freeSide, bool) {
	leftFree := left > threshold
	rightFree := right > threshold

	switch {
	case leftFree && !rightFree:
		return freeSide{distance: left, isLeft: true}, true
	case rightFree && !leftFree:
		return freeSide{distance: right, isLeft: false}, true
	case leftFree && rightFree:
		if gpsPreferLeft != nil {
			return freeSide{distance: pick(left, right, *gpsPreferLeft), isLeft: *gpsPreferLeft}, true
		}
		if left >= right {
			return freeSide{distance: left, isLeft: true}, true
		}
		return freeSide{distance: right, isLeft: false}, true
	default:
		return freeSide{}, false
	}
}

func pick(left, right float64, wantLeft bool) float64 {
	if wantLeft {
		return left
	}
	return right
}

// gpsConsistentSide returns the side that would reduce heading deviation,
// if a heading deviation is known.
func gpsConsistentSide(s snapshot.Snapshot) *bool {
	if s.HeadingDeviation == nil {
		return nil
	}
	wantLeft := *s.HeadingDeviation < 0
	return &wantLeft
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
