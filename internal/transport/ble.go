package transport

import (
	"context"

	"github.com/asgard/openeyes/internal/sensing"
)

// DeviceName is the BLE advertised name the transport collaborator scans
// for. Service and characteristic UUIDs are left to runtime configuration.
const DeviceName = "OPEN-EYES"

// BLETransport is the capability the pipeline depends on to receive
// packets. The core never sees raw BLE frames: implementations parse
// bytes to Packet before the stream reaches the pipeline.
type BLETransport interface {
	Connect(ctx context.Context) error
	Stream(ctx context.Context) (<-chan sensing.Packet, error)
	Disconnect(ctx context.Context) error
	IsConnected() bool
	ConnectionState() <-chan bool
}
