// Package transport defines the external contracts the core depends on:
// the BLE notify payload's wire JSON shape, the destination-loading JSON
// shape, and the BLE transport capability interface consumed as a
// collaborator rather than a concrete type. The speech collaborator
// interface lives in package executor; this package only implements it.
package transport

import (
	"encoding/json"
	"fmt"

	"github.com/asgard/openeyes/internal/navigation"
	"github.com/asgard/openeyes/internal/openeyeserr"
	"github.com/asgard/openeyes/internal/sensing"
)

// wireIMU is the JSON shape of one packet's IMU reading.
type wireIMU struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// wireObstacles is the JSON shape of one packet's obstacle-detector pair.
type wireObstacles struct {
	Upper      *float64 `json:"upper"`
	Lower      *float64 `json:"lower"`
	ServoAngle float64  `json:"servoAngle"`
}

// wireWater is the JSON shape of one packet's water sensor reading.
type wireWater struct {
	HumidityLevel float64 `json:"humidityLevel"`
	RawValue      *int    `json:"rawValue"`
}

// wireGps is the JSON shape of one packet's GPS fix.
type wireGps struct {
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	Altitude        *float64 `json:"altitude"`
	Speed           *float64 `json:"speed"`
	Heading         *float64 `json:"heading"`
	SatellitesCount *int     `json:"satellitesCount"`
	HDOP            *float64 `json:"hdop"`
	GpsTimestamp    *int64   `json:"gpsTimestamp"`
	FixType         string   `json:"fixType"`
}

// WirePacket is the exact JSON shape of a BLE notify payload.
type WirePacket struct {
	Timestamp   int64         `json:"timestamp"`
	IMU         wireIMU       `json:"imu"`
	Obstacles   wireObstacles `json:"obstacles"`
	WaterSensor wireWater     `json:"waterSensor"`
	Gps         wireGps       `json:"gps"`
}

// DecodePacket parses one BLE notify payload into the internal sensing
// type. The core never sees raw bytes or the wire JSON shape beyond this
// boundary.
func DecodePacket(data []byte) (sensing.Packet, error) {
	var w WirePacket
	if err := json.Unmarshal(data, &w); err != nil {
		return sensing.Packet{}, openeyeserr.New("transport.DecodePacket", openeyeserr.KindTransportError, fmt.Errorf("decode packet: %w", err))
	}
	return w.toPacket(), nil
}

func (w WirePacket) toPacket() sensing.Packet {
	return sensing.Packet{
		TimestampMs: w.Timestamp,
		IMU:         sensing.IMU{Yaw: w.IMU.Yaw, Pitch: w.IMU.Pitch, Roll: w.IMU.Roll},
		Obstacles: sensing.ObstaclePair{
			Upper:      w.Obstacles.Upper,
			Lower:      w.Obstacles.Lower,
			ServoAngle: w.Obstacles.ServoAngle,
		},
		Water: sensing.WaterSensor{
			Humidity: w.WaterSensor.HumidityLevel,
			Raw:      w.WaterSensor.RawValue,
		},
		Gps: sensing.GpsFix{
			Latitude:   w.Gps.Latitude,
			Longitude:  w.Gps.Longitude,
			Altitude:   w.Gps.Altitude,
			Speed:      w.Gps.Speed,
			Heading:    w.Gps.Heading,
			Satellites: w.Gps.SatellitesCount,
			HDOP:       w.Gps.HDOP,
			Timestamp:  w.Gps.GpsTimestamp,
			Kind:       sensing.FixKind(fixTypeOrNone(w.Gps.FixType)),
		},
	}
}

func fixTypeOrNone(s string) string {
	if s == "" {
		return string(sensing.FixNone)
	}
	return s
}

// EncodePacket is the inverse of DecodePacket, mainly useful for tests and
// simulators that need to round-trip a packet through the wire format.
func EncodePacket(p sensing.Packet) ([]byte, error) {
	w := WirePacket{
		Timestamp: p.TimestampMs,
		IMU:       wireIMU{Yaw: p.IMU.Yaw, Pitch: p.IMU.Pitch, Roll: p.IMU.Roll},
		Obstacles: wireObstacles{Upper: p.Obstacles.Upper, Lower: p.Obstacles.Lower, ServoAngle: p.Obstacles.ServoAngle},
		WaterSensor: wireWater{
			HumidityLevel: p.Water.Humidity,
			RawValue:      p.Water.Raw,
		},
		Gps: wireGps{
			Latitude:        p.Gps.Latitude,
			Longitude:       p.Gps.Longitude,
			Altitude:        p.Gps.Altitude,
			Speed:           p.Gps.Speed,
			Heading:         p.Gps.Heading,
			SatellitesCount: p.Gps.Satellites,
			HDOP:            p.Gps.HDOP,
			GpsTimestamp:    p.Gps.Timestamp,
			FixType:         string(p.Gps.Kind),
		},
	}
	return json.Marshal(w)
}

// wireWaypoint is one waypoint in a destination-loading JSON document.
type wireWaypoint struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Name        string  `json:"name,omitempty"`
	Instruction string  `json:"instruction,omitempty"`
	Type        string  `json:"type,omitempty"`
}

// WireDestination is the JSON shape accepted by the route navigator's
// load-destination input.
type WireDestination struct {
	Name                 string         `json:"name"`
	TransportMode        string         `json:"transportMode"`
	TotalDistanceMeters  *float64       `json:"totalDistanceMeters,omitempty"`
	EstimatedTimeSeconds *int           `json:"estimatedTimeSeconds,omitempty"`
	Waypoints            []wireWaypoint `json:"waypoints"`
}

// DecodeDestination parses a destination-loading JSON document into the
// internal navigation type. The first waypoint defaults to start and the
// last to destination when their "type" is omitted.
func DecodeDestination(data []byte) (navigation.Destination, error) {
	var w WireDestination
	if err := json.Unmarshal(data, &w); err != nil {
		return navigation.Destination{}, openeyeserr.New("transport.DecodeDestination", openeyeserr.KindTransportError, fmt.Errorf("decode destination: %w", err))
	}
	return w.toDestination(), nil
}

func (w WireDestination) toDestination() navigation.Destination {
	waypoints := make([]navigation.Waypoint, len(w.Waypoints))
	last := len(w.Waypoints) - 1
	for i, wp := range w.Waypoints {
		kind := navigation.WaypointKind(wp.Type)
		if kind == "" {
			switch i {
			case 0:
				kind = navigation.WaypointStart
			case last:
				kind = navigation.WaypointDestination
			default:
				kind = navigation.WaypointIntermediate
			}
		}
		waypoints[i] = navigation.Waypoint{
			Latitude:    wp.Latitude,
			Longitude:   wp.Longitude,
			Name:        wp.Name,
			Instruction: wp.Instruction,
			Kind:        kind,
		}
	}
	return navigation.Destination{
		Name:                 w.Name,
		TransportMode:        navigation.TransportMode(w.TransportMode),
		TotalDistanceMeters:  w.TotalDistanceMeters,
		EstimatedTimeSeconds: w.EstimatedTimeSeconds,
		Waypoints:            waypoints,
	}
}
