// Package config loads handheld runtime configuration from environment
// variables, following the same getEnv-with-default pattern used
// elsewhere in the platform for service configuration.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every environment-tunable setting for the handheld
// runtime: the debug HTTP/WebSocket surface, the telemetry relay, and
// the BLE device it connects to.
type Config struct {
	// DeviceName is the BLE advertised name to scan for.
	DeviceName string

	// DebugServerAddr is the listen address for the debug HTTP server
	// (health check, Prometheus scrape, state snapshot, dashboard
	// WebSocket). The debug server is always started; an unset or empty
	// OPENEYES_DEBUG_ADDR falls back to ":8090".
	DebugServerAddr string

	// TelemetryEnabled turns the NATS relay on. Disabled by default so a
	// standalone handheld never blocks waiting for a NATS connection it
	// doesn't have.
	TelemetryEnabled bool
	NATSURL          string
	NATSReconnectWait time.Duration
	NATSMaxReconnects int

	// MaxPacketAgeMs bounds how stale a sensor packet may be before the
	// pipeline rejects it.
	MaxPacketAgeMs int64
}

// Load reads Config from the environment, applying the same defaults a
// developer running the handheld locally would want.
func Load() Config {
	return Config{
		DeviceName:        getEnv("OPENEYES_DEVICE_NAME", "OPEN-EYES"),
		DebugServerAddr:   getEnv("OPENEYES_DEBUG_ADDR", ":8090"),
		TelemetryEnabled:  getBool("OPENEYES_TELEMETRY_ENABLED", false),
		NATSURL:           getEnv("OPENEYES_NATS_URL", "nats://localhost:4222"),
		NATSReconnectWait: getDuration("OPENEYES_NATS_RECONNECT_WAIT", 2*time.Second),
		NATSMaxReconnects: getInt("OPENEYES_NATS_MAX_RECONNECTS", 60),
		MaxPacketAgeMs:    getInt64("OPENEYES_MAX_PACKET_AGE_MS", 5000),
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func getInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getInt64(key string, defaultValue int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}
