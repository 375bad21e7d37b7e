// Package navigation sequences a destination's waypoints and derives
// bearing, distance, and progress from the latest GPS fix, using
// great-circle formulas on the WGS-84 sphere approximation.
package navigation

import (
	"fmt"
	"math"
	"strings"

	"github.com/asgard/openeyes/internal/openeyeserr"
	"github.com/asgard/openeyes/internal/sensing"
)

// earthRadiusMeters is the mean Earth radius used for the haversine and
// initial-bearing formulas (spec.md §4.3).
const earthRadiusMeters = 6_371_000.0

// DefaultReachedThresholdMeters is how close the cane must get to a
// waypoint before it counts as reached.
const DefaultReachedThresholdMeters = 10.0

// WaypointKind classifies a waypoint's role in its route.
type WaypointKind string

const (
	WaypointStart        WaypointKind = "start"
	WaypointIntermediate WaypointKind = "intermediate"
	WaypointDestination  WaypointKind = "destination"
)

// Waypoint is one named geographic point in an ordered route.
type Waypoint struct {
	Latitude    float64
	Longitude   float64
	Name        string
	Instruction string
	Kind        WaypointKind
}

// TransportMode describes how the traveler intends to cover the route.
type TransportMode string

const (
	TransportWalking TransportMode = "walking"
	TransportCycling TransportMode = "cycling"
	TransportTransit TransportMode = "transit"
	TransportDriving TransportMode = "driving"
)

// Destination is an immutable, ordered route of at least two waypoints.
type Destination struct {
	Name                 string
	TransportMode        TransportMode
	TotalDistanceMeters  *float64
	EstimatedTimeSeconds *int
	Waypoints            []Waypoint
}

// Validate checks the minimum-shape invariant for a destination.
func (d Destination) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("navigation: destination name is required")
	}
	if len(d.Waypoints) < 2 {
		return fmt.Errorf("navigation: destination needs at least 2 waypoints, got %d", len(d.Waypoints))
	}
	return nil
}

// Event is emitted by UpdatePosition when the traveler reaches a waypoint
// or the final destination.
type Event struct {
	WaypointReached    bool
	DestinationReached bool
	Waypoint           Waypoint
}

// Navigator tracks progress along a loaded Destination.
type Navigator struct {
	destination      *Destination
	currentIndex     int
	currentPosition  *sensing.GpsFix
	reachedThreshold float64
}

// New creates a Navigator with the default reached-threshold.
func New() *Navigator {
	return &Navigator{reachedThreshold: DefaultReachedThresholdMeters}
}

// NewWithThreshold creates a Navigator with a custom waypoint-reached
// threshold, in meters.
func NewWithThreshold(thresholdMeters float64) *Navigator {
	return &Navigator{reachedThreshold: thresholdMeters}
}

// LoadDestination validates and installs a new destination, resetting
// progress to its first waypoint.
func (n *Navigator) LoadDestination(dest Destination) error {
	if err := dest.Validate(); err != nil {
		return openeyeserr.New("navigation.LoadDestination", openeyeserr.KindNavigationError, err)
	}
	d := dest
	n.destination = &d
	n.currentIndex = 0
	return nil
}

// HasActiveDestination reports whether a destination is currently loaded.
func (n *Navigator) HasActiveDestination() bool {
	return n.destination != nil
}

// CurrentDestination returns the active destination, or nil if none.
func (n *Navigator) CurrentDestination() *Destination {
	return n.destination
}

// CurrentWaypointIndex returns the index of the waypoint currently being
// navigated to. Only meaningful while HasActiveDestination is true.
func (n *Navigator) CurrentWaypointIndex() int {
	return n.currentIndex
}

// currentWaypoint returns the waypoint currently being navigated to.
func (n *Navigator) currentWaypoint() (Waypoint, bool) {
	if n.destination == nil || n.currentIndex >= len(n.destination.Waypoints) {
		return Waypoint{}, false
	}
	return n.destination.Waypoints[n.currentIndex], true
}

// UpdatePosition folds a new GPS fix into the navigator's progress. If the
// fix is invalid or no destination is active, it is a no-op. Returns the
// waypoint/destination-reached event, if any.
func (n *Navigator) UpdatePosition(fix sensing.GpsFix) Event {
	n.currentPosition = &fix
	if n.destination == nil || !fix.Valid() {
		return Event{}
	}

	wp, ok := n.currentWaypoint()
	if !ok {
		return Event{}
	}

	d := haversineMeters(*fix.Latitude, *fix.Longitude, wp.Latitude, wp.Longitude)
	if d > n.reachedThreshold {
		return Event{}
	}

	n.currentIndex++
	event := Event{WaypointReached: true, Waypoint: wp}
	if n.currentIndex >= len(n.destination.Waypoints) {
		event.DestinationReached = true
	}
	return event
}

// TargetBearing returns the initial bearing, degrees in [0,360), from the
// current position to the current waypoint. The second return is false if
// there is no fix or no active waypoint.
func (n *Navigator) TargetBearing() (float64, bool) {
	wp, ok := n.currentWaypoint()
	if !ok || n.currentPosition == nil || !n.currentPosition.Valid() {
		return 0, false
	}
	return initialBearing(*n.currentPosition.Latitude, *n.currentPosition.Longitude, wp.Latitude, wp.Longitude), true
}

// DistanceToCurrentWaypoint returns the great-circle distance, in meters,
// from the current position to the current waypoint.
func (n *Navigator) DistanceToCurrentWaypoint() (float64, bool) {
	wp, ok := n.currentWaypoint()
	if !ok || n.currentPosition == nil || !n.currentPosition.Valid() {
		return 0, false
	}
	return haversineMeters(*n.currentPosition.Latitude, *n.currentPosition.Longitude, wp.Latitude, wp.Longitude), true
}

// DistanceToDestination sums the remaining distance: current position to
// the current waypoint, plus each subsequent inter-waypoint leg.
func (n *Navigator) DistanceToDestination() (float64, bool) {
	if n.destination == nil {
		return 0, false
	}
	toCurrent, ok := n.DistanceToCurrentWaypoint()
	if !ok {
		return 0, false
	}
	total := toCurrent
	wps := n.destination.Waypoints
	for i := n.currentIndex; i < len(wps)-1; i++ {
		total += haversineMeters(wps[i].Latitude, wps[i].Longitude, wps[i+1].Latitude, wps[i+1].Longitude)
	}
	return total, true
}

// Progress returns fractional completion in [0,1] based on waypoint index
// versus route length. Returns false if no destination is active.
func (n *Navigator) Progress() (float64, bool) {
	if n.destination == nil || len(n.destination.Waypoints) == 0 {
		return 0, false
	}
	total := len(n.destination.Waypoints)
	p := float64(n.currentIndex) / float64(total)
	if p > 1 {
		p = 1
	}
	return p, true
}

// haversineMeters returns the great-circle distance between two lat/lon
// points in meters.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := deg2rad(lat1)
	phi2 := deg2rad(lat2)
	dPhi := deg2rad(lat2 - lat1)
	dLambda := deg2rad(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// initialBearing returns the initial great-circle bearing from point 1 to
// point 2, normalized to [0,360) degrees.
func initialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := deg2rad(lat1)
	phi2 := deg2rad(lat2)
	dLambda := deg2rad(lon2 - lon1)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	theta := math.Atan2(y, x)

	deg := rad2deg(theta)
	return math.Mod(deg+360, 360)
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }
