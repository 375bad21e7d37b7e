package transport

import (
	"context"
	"math"
	"time"

	"github.com/asgard/openeyes/internal/sensing"
)

// Simulator is a BLETransport that synthesizes packets on a fixed tick
// instead of talking to real hardware. It exists for local development
// and demos where no cane is attached, and is the only BLETransport
// implementation in this module.
type Simulator struct {
	tick      time.Duration
	connected bool
	state     chan bool
	cancel    context.CancelFunc
}

// NewSimulator returns a Simulator emitting one packet every tick.
func NewSimulator(tick time.Duration) *Simulator {
	return &Simulator{tick: tick, state: make(chan bool, 4)}
}

func (s *Simulator) Connect(ctx context.Context) error {
	s.connected = true
	select {
	case s.state <- true:
	default:
	}
	return nil
}

func (s *Simulator) Stream(ctx context.Context) (<-chan sensing.Packet, error) {
	out := make(chan sensing.Packet, 8)
	streamCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go func() {
		defer close(out)
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		var n int
		upper := 3.0
		for {
			select {
			case <-streamCtx.Done():
				return
			case t := <-ticker.C:
				n++
				packet := sensing.Packet{
					TimestampMs: t.UnixMilli(),
					IMU: sensing.IMU{
						Yaw:   10 * math.Sin(float64(n)/20),
						Pitch: 0,
						Roll:  0,
					},
					Obstacles: sensing.ObstaclePair{
						Upper:      &upper,
						Lower:      floatPtr(2.5),
						ServoAngle: 0,
					},
					Water: sensing.WaterSensor{Humidity: 10},
					Gps:   sensing.GpsFix{},
				}
				select {
				case out <- packet:
				case <-streamCtx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *Simulator) Disconnect(ctx context.Context) error {
	s.connected = false
	if s.cancel != nil {
		s.cancel()
	}
	select {
	case s.state <- false:
	default:
	}
	return nil
}

func (s *Simulator) IsConnected() bool { return s.connected }

func (s *Simulator) ConnectionState() <-chan bool { return s.state }

func floatPtr(v float64) *float64 { return &v }
