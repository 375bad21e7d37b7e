package snapshot

import (
	"math"
	"testing"

	"github.com/asgard/openeyes/internal/navigation"
	"github.com/asgard/openeyes/internal/sensing"
	"github.com/asgard/openeyes/internal/state"
)

func fv(v float64) *float64 { return &v }

func freshPacket(upper, lower *float64, servoAngle float64) sensing.Packet {
	return sensing.Packet{
		TimestampMs: 1000,
		IMU:         sensing.IMU{Yaw: 0, Pitch: 0, Roll: 0},
		Obstacles:   sensing.ObstaclePair{Upper: upper, Lower: lower, ServoAngle: servoAngle},
	}
}

func TestBuildRejectsStaleState(t *testing.T) {
	p := freshPacket(nil, nil, 0)
	ts := state.FromPacket(p, nil, 1000)
	// CreatedAtMs 1000, but we evaluate it as if 4000ms has passed by
	// constructing a second state far in the future sharing the packet.
	stale := state.FromPacket(p, nil, 5000)
	if _, err := Build(stale, nil); err == nil {
		t.Fatalf("expected error for stale state")
	}
	if _, err := Build(ts, nil); err != nil {
		t.Fatalf("fresh state should build cleanly: %v", err)
	}
}

func TestBuildRejectsNaNIMU(t *testing.T) {
	p := freshPacket(nil, nil, 0)
	p.IMU.Yaw = math.NaN()
	ts := state.FromPacket(p, nil, 1000)
	if _, err := Build(ts, nil); err == nil {
		t.Fatalf("expected error for NaN IMU")
	}
}

func TestBuildRoutesCenterZoneToFront(t *testing.T) {
	p := freshPacket(fv(3.0), fv(2.0), 0)
	ts := state.FromPacket(p, nil, 1000)
	snap, err := Build(ts, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if snap.Front != 2.0 {
		t.Errorf("Front = %v, want 2.0 (lower reading in center zone)", snap.Front)
	}
	if snap.Left != defaultClearDistance || snap.Right != defaultClearDistance {
		t.Errorf("unswept sides should default to %v, got left=%v right=%v", defaultClearDistance, snap.Left, snap.Right)
	}
}

func TestBuildRoutesRightZone(t *testing.T) {
	p := freshPacket(fv(4.0), fv(1.2), 45)
	ts := state.FromPacket(p, nil, 1000)
	snap, err := Build(ts, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if snap.Right != 1.2 {
		t.Errorf("Right = %v, want 1.2", snap.Right)
	}
	if snap.Front != 4.0 {
		t.Errorf("Front = %v, want 4.0 (upper reading)", snap.Front)
	}
	if snap.Left != defaultClearDistance {
		t.Errorf("Left should default to %v, got %v", defaultClearDistance, snap.Left)
	}
}

func TestBuildRoutesLeftZone(t *testing.T) {
	p := freshPacket(fv(4.0), fv(0.9), -45)
	ts := state.FromPacket(p, nil, 1000)
	snap, err := Build(ts, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if snap.Left != 0.9 {
		t.Errorf("Left = %v, want 0.9", snap.Left)
	}
	if snap.Right != defaultClearDistance {
		t.Errorf("Right should default to %v, got %v", defaultClearDistance, snap.Right)
	}
}

func TestObstacleHighPredicate(t *testing.T) {
	close := freshPacket(fv(0.5), nil, 0)
	far := freshPacket(fv(5.0), nil, 0)
	tsClose := state.FromPacket(close, nil, 1000)
	tsFar := state.FromPacket(far, nil, 1000)

	snapClose, _ := Build(tsClose, nil)
	snapFar, _ := Build(tsFar, nil)
	if !snapClose.ObstacleHigh {
		t.Errorf("expected ObstacleHigh for a 0.5m upper reading")
	}
	if snapFar.ObstacleHigh {
		t.Errorf("did not expect ObstacleHigh for a 5m upper reading")
	}
}

func TestWaterDetectedPredicate(t *testing.T) {
	p := freshPacket(nil, nil, 0)
	p.Water = sensing.WaterSensor{Humidity: 70}
	ts := state.FromPacket(p, nil, 1000)
	snap, _ := Build(ts, nil)
	if !snap.WaterDetected {
		t.Errorf("expected WaterDetected at 70%% humidity")
	}
}

func TestHasObstacleFrontLeftRightThresholds(t *testing.T) {
	snap := Snapshot{Front: 1.0, Left: 0.5, Right: 2.0}
	if !snap.HasObstacleFront() {
		t.Errorf("1.0m front should trip the close threshold")
	}
	if !snap.HasObstacleLeft() {
		t.Errorf("0.5m left should trip the side threshold")
	}
	if snap.HasObstacleRight() {
		t.Errorf("2.0m right should not trip the side threshold")
	}
}

func TestApproachEnhancementShortensDistances(t *testing.T) {
	prev := state.FromPacket(freshPacket(fv(3.0), nil, 0), nil, 1000)
	cur := state.FromPacket(freshPacket(fv(1.0), nil, 0), prev, 1500) // closed 2m in 0.5s = 4 m/s
	if !cur.IsApproachingObstacle {
		t.Fatalf("expected approaching obstacle in fixture")
	}
	snap, err := Build(cur, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// Front would be 10 (default, center zone, lower is nil) before
	// attenuation; enhancement should shrink it below 10.
	if snap.Front >= defaultClearDistance {
		t.Errorf("expected enhancement to shrink Front below default, got %v", snap.Front)
	}
}

func TestRouteContextPopulatesGpsFields(t *testing.T) {
	nav := navigation.New()
	dest := navigation.Destination{
		Name: "Library",
		Waypoints: []navigation.Waypoint{
			{Latitude: 0, Longitude: 0, Name: "start"},
			{Latitude: 1, Longitude: 0, Name: "library"},
		},
	}
	if err := nav.LoadDestination(dest); err != nil {
		t.Fatalf("load destination: %v", err)
	}
	nav.UpdatePosition(sensing.GpsFix{Latitude: fv(-1), Longitude: fv(0), Kind: sensing.Fix3D})

	ts := state.FromPacket(freshPacket(nil, nil, 0), nil, 1000)
	snap, err := Build(ts, nav)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !snap.HasActiveDestination() {
		t.Fatalf("expected an active destination in the snapshot")
	}
	if snap.TargetBearing == nil || snap.DistanceToNextWaypoint == nil {
		t.Fatalf("expected bearing and distance to be populated")
	}
	if snap.NextWaypointName == nil || *snap.NextWaypointName != "start" {
		t.Errorf("NextWaypointName = %v, want start", snap.NextWaypointName)
	}
}

func TestIsOffCourseAndStronglyOffCourse(t *testing.T) {
	mild := 20.0
	strong := 60.0
	s1 := Snapshot{HeadingDeviation: &mild}
	s2 := Snapshot{HeadingDeviation: &strong}
	if !s1.IsOffCourse() || s1.IsStronglyOffCourse() {
		t.Errorf("20deg deviation should be off-course but not strongly so")
	}
	if !s2.IsOffCourse() || !s2.IsStronglyOffCourse() {
		t.Errorf("60deg deviation should be strongly off-course")
	}
}

func TestIsNearWaypointAndDestination(t *testing.T) {
	near := 5.0
	far := 50.0
	s := Snapshot{DistanceToNextWaypoint: &near, DistanceToDestination: &far}
	if !s.IsNearWaypoint() {
		t.Errorf("5m should count as near the waypoint")
	}
	if s.IsNearDestination() {
		t.Errorf("50m should not count as near the destination")
	}
}
