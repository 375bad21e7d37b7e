package transport

import (
	"testing"

	"github.com/asgard/openeyes/internal/openeyeserr"
)

func TestDecodePacketRoundTrip(t *testing.T) {
	raw := []byte(`{
		"timestamp": 123456,
		"imu": {"yaw": 1.5, "pitch": -2.5, "roll": 0},
		"obstacles": {"upper": 2.0, "lower": null, "servoAngle": 45},
		"waterSensor": {"humidityLevel": 12.0, "rawValue": null},
		"gps": {"latitude": 37.1, "longitude": -122.2, "altitude": null,
		        "speed": null, "heading": null, "satellitesCount": null,
		        "hdop": null, "gpsTimestamp": null, "fixType": "3d"}
	}`)

	p, err := DecodePacket(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.TimestampMs != 123456 {
		t.Errorf("timestamp = %v, want 123456", p.TimestampMs)
	}
	if p.IMU.Yaw != 1.5 || p.IMU.Pitch != -2.5 {
		t.Errorf("imu = %+v", p.IMU)
	}
	if p.Obstacles.Upper == nil || *p.Obstacles.Upper != 2.0 {
		t.Errorf("upper = %v, want 2.0", p.Obstacles.Upper)
	}
	if p.Obstacles.Lower != nil {
		t.Errorf("lower = %v, want nil", p.Obstacles.Lower)
	}
	if p.Gps.Kind != "3d" {
		t.Errorf("gps kind = %v, want 3d", p.Gps.Kind)
	}
	if !p.Gps.Valid() {
		t.Errorf("expected a valid gps fix")
	}

	encoded, err := EncodePacket(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	p2, err := DecodePacket(encoded)
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if p2.TimestampMs != p.TimestampMs || p2.IMU != p.IMU {
		t.Errorf("round-trip mismatch: %+v vs %+v", p, p2)
	}
}

func TestDecodePacketMissingFixTypeDefaultsToNone(t *testing.T) {
	raw := []byte(`{
		"timestamp": 1,
		"imu": {"yaw": 0, "pitch": 0, "roll": 0},
		"obstacles": {"upper": null, "lower": null, "servoAngle": 0},
		"waterSensor": {"humidityLevel": 0, "rawValue": null},
		"gps": {"latitude": null, "longitude": null, "altitude": null,
		        "speed": null, "heading": null, "satellitesCount": null,
		        "hdop": null, "gpsTimestamp": null}
	}`)
	p, err := DecodePacket(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Gps.Kind != "none" {
		t.Errorf("gps kind = %v, want none", p.Gps.Kind)
	}
	if p.Gps.Valid() {
		t.Errorf("expected an invalid gps fix when fixType is omitted")
	}
}

func TestDecodeDestinationDefaultsWaypointKinds(t *testing.T) {
	raw := []byte(`{
		"name": "Library",
		"transportMode": "walking",
		"waypoints": [
			{"latitude": 0, "longitude": 0},
			{"latitude": 1, "longitude": 1, "name": "crosswalk"},
			{"latitude": 2, "longitude": 2}
		]
	}`)
	dest, err := DecodeDestination(raw)
	if err != nil {
		t.Fatalf("decode destination: %v", err)
	}
	if len(dest.Waypoints) != 3 {
		t.Fatalf("expected 3 waypoints, got %d", len(dest.Waypoints))
	}
	if dest.Waypoints[0].Kind != "start" {
		t.Errorf("first waypoint kind = %v, want start", dest.Waypoints[0].Kind)
	}
	if dest.Waypoints[1].Kind != "intermediate" {
		t.Errorf("middle waypoint kind = %v, want intermediate", dest.Waypoints[1].Kind)
	}
	if dest.Waypoints[2].Kind != "destination" {
		t.Errorf("last waypoint kind = %v, want destination", dest.Waypoints[2].Kind)
	}
	if err := dest.Validate(); err != nil {
		t.Errorf("expected decoded destination to validate: %v", err)
	}
}

func TestDecodePacketRejectsMalformedJSON(t *testing.T) {
	_, err := DecodePacket([]byte(`{not json`))
	if err == nil {
		t.Fatalf("expected an error for malformed JSON")
	}
	if !openeyeserr.Is(err, openeyeserr.KindTransportError) {
		t.Errorf("expected KindTransportError, got %v", err)
	}
}

func TestDecodeDestinationRespectsExplicitType(t *testing.T) {
	raw := []byte(`{
		"name": "Park",
		"transportMode": "walking",
		"waypoints": [
			{"latitude": 0, "longitude": 0, "type": "start"},
			{"latitude": 1, "longitude": 1, "type": "destination"}
		]
	}`)
	dest, err := DecodeDestination(raw)
	if err != nil {
		t.Fatalf("decode destination: %v", err)
	}
	if dest.Waypoints[0].Kind != "start" || dest.Waypoints[1].Kind != "destination" {
		t.Errorf("kinds = %v, %v", dest.Waypoints[0].Kind, dest.Waypoints[1].Kind)
	}
}
