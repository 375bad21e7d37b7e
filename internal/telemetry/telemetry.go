// Package telemetry relays pipeline events onto NATS subjects for external
// dashboards. Publishing is always best-effort: a telemetry outage must
// never block or slow the perception-decision-guidance loop.
package telemetry

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/asgard/openeyes/internal/platform/observability"
)

// EventType classifies one telemetry event.
type EventType string

const (
	EventTemporalState EventType = "temporal_state"
	EventInstruction   EventType = "instruction"
	EventGpsLoss       EventType = "gps_loss"
	EventExecutorState EventType = "executor_state"
)

// Event is the envelope published to NATS for every relayed occurrence.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

// subjectFor maps an event type to its NATS subject.
func subjectFor(t EventType) string {
	return "openeyes." + string(t)
}

// Relay publishes pipeline events to NATS without ever blocking the
// caller: Publish enqueues onto a buffered channel drained by one
// goroutine, and drops events when that buffer is full rather than apply
// backpressure to the pipeline.
type Relay struct {
	nc *nats.Conn

	mu      sync.Mutex
	running bool

	events chan Event
	done   chan struct{}
}

// Config configures a Relay's connection to NATS.
type Config struct {
	URL           string
	ReconnectWait time.Duration
	MaxReconnects int
	BufferSize    int
}

// DefaultConfig returns sane defaults for a local NATS instance.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: 60,
		BufferSize:    256,
	}
}

// NewRelay connects to NATS and starts the background publish loop.
func NewRelay(cfg Config) (*Relay, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("[telemetry] reconnected to %s", c.ConnectedUrl())
			observability.UpdateNATSConnectionStatus(true)
		}),
		nats.DisconnectErrHandler(func(c *nats.Conn, err error) {
			if err != nil {
				log.Printf("[telemetry] disconnected: %v", err)
			}
			observability.UpdateNATSConnectionStatus(false)
		}),
	)
	if err != nil {
		observability.UpdateNATSConnectionStatus(false)
		return nil, err
	}
	observability.UpdateNATSConnectionStatus(true)

	bufSize := cfg.BufferSize
	if bufSize <= 0 {
		bufSize = 256
	}

	r := &Relay{
		nc:      nc,
		running: true,
		events:  make(chan Event, bufSize),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r, nil
}

func (r *Relay) loop() {
	defer close(r.done)
	for ev := range r.events {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Printf("[telemetry] marshal failed: %v", err)
			continue
		}
		subject := subjectFor(ev.Type)
		if err := r.nc.Publish(subject, data); err != nil {
			log.Printf("[telemetry] publish to %s failed: %v", subject, err)
			continue
		}
		observability.GetMetrics().NATSMessagesPublished.WithLabelValues(subject).Inc()
	}
}

// Publish enqueues an event for best-effort delivery. It never blocks: if
// the internal buffer is full, the event is dropped and logged.
func (r *Relay) Publish(t EventType, payload map[string]interface{}) {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()
	if !running {
		return
	}

	ev := Event{ID: uuid.NewString(), Type: t, Timestamp: time.Now().UTC(), Payload: payload}
	select {
	case r.events <- ev:
	default:
		log.Printf("[telemetry] buffer full, dropping %s event", t)
	}
}

// Close stops the publish loop and disconnects from NATS.
func (r *Relay) Close() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.events)
	<-r.done
	r.nc.Close()
	observability.UpdateNATSConnectionStatus(false)
}
