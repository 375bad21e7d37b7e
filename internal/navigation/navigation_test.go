package navigation

import (
	"math"
	"testing"

	"github.com/asgard/openeyes/internal/openeyeserr"
	"github.com/asgard/openeyes/internal/sensing"
)

func fv(v float64) *float64 { return &v }

func fix(lat, lon float64) sensing.GpsFix {
	return sensing.GpsFix{Latitude: fv(lat), Longitude: fv(lon), Kind: sensing.Fix3D}
}

func TestHaversineSymmetryAndZero(t *testing.T) {
	a := [2]float64{37.7749, -122.4194}
	b := [2]float64{40.7128, -74.0060}

	if d := haversineMeters(a[0], a[1], a[0], a[1]); d != 0 {
		t.Errorf("distance to self = %v, want 0", d)
	}

	dAB := haversineMeters(a[0], a[1], b[0], b[1])
	dBA := haversineMeters(b[0], b[1], a[0], a[1])
	if math.Abs(dAB-dBA) > 1e-6 {
		t.Errorf("haversine not symmetric: %v vs %v", dAB, dBA)
	}
	// San Francisco to New York is roughly 4,100 km.
	if dAB < 4_000_000 || dAB > 4_200_000 {
		t.Errorf("SF-NYC distance = %v meters, want ~4,100km", dAB)
	}
}

func TestLoadDestinationValidation(t *testing.T) {
	n := New()
	err := n.LoadDestination(Destination{Name: "Park", Waypoints: []Waypoint{{Latitude: 1, Longitude: 1}}})
	if err == nil {
		t.Fatalf("expected error for single-waypoint destination")
	}
	if !openeyeserr.Is(err, openeyeserr.KindNavigationError) {
		t.Errorf("expected KindNavigationError, got %v", err)
	}

	err = n.LoadDestination(Destination{
		Name: "Park",
		Waypoints: []Waypoint{
			{Latitude: 1, Longitude: 1, Kind: WaypointStart},
			{Latitude: 2, Longitude: 2, Kind: WaypointDestination},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !n.HasActiveDestination() {
		t.Errorf("expected active destination after successful load")
	}
}

func TestUpdatePositionEmitsWaypointAndDestinationReached(t *testing.T) {
	n := NewWithThreshold(10)
	dest := Destination{
		Name: "Cross street",
		Waypoints: []Waypoint{
			{Latitude: 0, Longitude: 0, Kind: WaypointStart},
			{Latitude: 0, Longitude: 0.0001, Kind: WaypointDestination},
		},
	}
	if err := n.LoadDestination(dest); err != nil {
		t.Fatalf("load: %v", err)
	}

	ev := n.UpdatePosition(fix(0, 0))
	if !ev.WaypointReached || ev.DestinationReached {
		t.Fatalf("expected first waypoint reached, not destination: %+v", ev)
	}

	ev = n.UpdatePosition(fix(0, 0.0001))
	if !ev.WaypointReached || !ev.DestinationReached {
		t.Fatalf("expected destination reached at final waypoint: %+v", ev)
	}
}

func TestUpdatePositionIgnoresInvalidFix(t *testing.T) {
	n := New()
	dest := Destination{
		Name: "X",
		Waypoints: []Waypoint{
			{Latitude: 0, Longitude: 0},
			{Latitude: 1, Longitude: 1},
		},
	}
	_ = n.LoadDestination(dest)
	ev := n.UpdatePosition(sensing.GpsFix{Kind: sensing.FixNone})
	if ev.WaypointReached || ev.DestinationReached {
		t.Errorf("invalid fix should never trigger an event")
	}
}

func TestTargetBearingNormalizedRange(t *testing.T) {
	n := New()
	dest := Destination{
		Name: "North",
		Waypoints: []Waypoint{
			{Latitude: 0, Longitude: 0},
			{Latitude: 1, Longitude: 0},
		},
	}
	_ = n.LoadDestination(dest)
	n.UpdatePosition(fix(0, 0))
	// The update above advances the index if within threshold; reload to
	// guarantee the waypoint we're bearing toward is still index 0's twin.
	n2 := New()
	_ = n2.LoadDestination(dest)
	n2.UpdatePosition(fix(-1, 0))
	bearing, ok := n2.TargetBearing()
	if !ok {
		t.Fatalf("expected a bearing")
	}
	if bearing < 0 || bearing >= 360 {
		t.Errorf("bearing = %v, want [0,360)", bearing)
	}
	if math.Abs(bearing) > 1 {
		t.Errorf("bearing due north should be ~0, got %v", bearing)
	}
}

func TestProgressMonotonic(t *testing.T) {
	n := NewWithThreshold(10)
	dest := Destination{
		Name: "Three stops",
		Waypoints: []Waypoint{
			{Latitude: 0, Longitude: 0},
			{Latitude: 0, Longitude: 0.0001},
			{Latitude: 0, Longitude: 0.0002},
		},
	}
	_ = n.LoadDestination(dest)
	p0, _ := n.Progress()
	n.UpdatePosition(fix(0, 0))
	p1, _ := n.Progress()
	n.UpdatePosition(fix(0, 0.0001))
	p2, _ := n.Progress()
	if !(p0 <= p1 && p1 <= p2) {
		t.Errorf("progress should be non-decreasing: %v, %v, %v", p0, p1, p2)
	}
}
