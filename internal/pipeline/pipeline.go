// Package pipeline wires the sensor stream to the filter, temporal state,
// route navigator, snapshot adapter, and expert engine — the stream
// orchestrator described as component C7.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/asgard/openeyes/internal/filter"
	"github.com/asgard/openeyes/internal/guidance"
	"github.com/asgard/openeyes/internal/navigation"
	"github.com/asgard/openeyes/internal/openeyeserr"
	"github.com/asgard/openeyes/internal/platform/observability"
	"github.com/asgard/openeyes/internal/sensing"
	"github.com/asgard/openeyes/internal/snapshot"
	"github.com/asgard/openeyes/internal/state"
)

// defaultMaxPacketAgeMs is the validation cutoff: packets older than this
// are dropped outright (spec §7 StalePacket). Overridable per Pipeline via
// WithMaxPacketAge.
const defaultMaxPacketAgeMs = 5000

// gpsLossConsecutiveThreshold is how many consecutive invalid fixes, while
// a destination is active, before GpsLostDuringNavigation is armed.
const gpsLossConsecutiveThreshold = 3

// Decision is forwarded to the guidance executor for every packet that
// clears the engine stage.
type Decision struct {
	Instruction guidance.Instruction
	Snapshot    snapshot.Snapshot
	Emit        bool
}

// Stats is a point-in-time snapshot of pipeline counters.
type Stats struct {
	Received  int64
	Processed int64
	Errored   int64
}

// Clock supplies the "now" used for staleness and freshness checks,
// swappable in tests.
type Clock func() int64

// Pipeline orchestrates one packet stream end to end.
type Pipeline struct {
	clock Clock

	filter         *filter.Filter
	navigator      *navigation.Navigator
	engine         *guidance.Engine
	tracer         trace.Tracer
	maxPacketAgeMs int64

	mu               sync.RWMutex
	running          bool
	lastState        *state.TemporalState
	invalidFixStreak int
	gpsLost          bool

	received  int64
	processed int64
	errored   int64

	onState    func(*state.TemporalState)
	onDecision func(Decision)
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithNavigator attaches a route navigator; GPS updates are forwarded to
// it and its context feeds the snapshot and GpsNavigation/ObstacleOnGpsRoute
// rules.
func WithNavigator(nav *navigation.Navigator) Option {
	return func(p *Pipeline) { p.navigator = nav }
}

// WithEngine overrides the default expert engine (mostly for tests).
func WithEngine(e *guidance.Engine) Option {
	return func(p *Pipeline) { p.engine = e }
}

// WithClock overrides the wall-clock source (for deterministic tests).
func WithClock(c Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithStateObserver registers a callback invoked with every derived
// TemporalState, mirroring spec §4.6 step 4's broadcast-to-observers.
func WithStateObserver(fn func(*state.TemporalState)) Option {
	return func(p *Pipeline) { p.onState = fn }
}

// WithDecisionObserver registers a callback invoked with every guidance
// decision, destined for the guidance executor.
func WithDecisionObserver(fn func(Decision)) Option {
	return func(p *Pipeline) { p.onDecision = fn }
}

// WithMaxPacketAge overrides the staleness cutoff used by Ingest.
func WithMaxPacketAge(ms int64) Option {
	return func(p *Pipeline) { p.maxPacketAgeMs = ms }
}

// New builds a Pipeline with the given filter and options.
func New(f *filter.Filter, opts ...Option) *Pipeline {
	p := &Pipeline{
		filter:         f,
		engine:         guidance.NewEngine(),
		tracer:         otel.Tracer("github.com/asgard/openeyes/internal/pipeline"),
		maxPacketAgeMs: defaultMaxPacketAgeMs,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start marks the pipeline as accepting packets. Idempotent.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = true
}

// Stop marks the pipeline as no longer accepting packets. Idempotent.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
}

// Restart resets counters and state while keeping configuration.
func (p *Pipeline) Restart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastState = nil
	p.invalidFixStreak = 0
	p.gpsLost = false
	atomic.StoreInt64(&p.received, 0)
	atomic.StoreInt64(&p.processed, 0)
	atomic.StoreInt64(&p.errored, 0)
	p.running = true
}

// Dispose stops the pipeline and releases its filter windows.
func (p *Pipeline) Dispose() {
	p.Stop()
	if p.filter != nil {
		p.filter.Reset()
	}
}

// Stats returns a point-in-time copy of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Received:  atomic.LoadInt64(&p.received),
		Processed: atomic.LoadInt64(&p.processed),
		Errored:   atomic.LoadInt64(&p.errored),
	}
}

func (p *Pipeline) now() int64 {
	if p.clock != nil {
		return p.clock()
	}
	return wallClockMs()
}

// Ingest runs one packet through validate → filter → state → navigator →
// snapshot → engine, forwarding the derived state and decision to any
// registered observers. It returns an error for packets rejected at
// validation (including any packet ingested while the pipeline is not
// running) and when the engine finds no applicable rule; a snapshot
// validation-gate failure only increments the error counter.
func (p *Pipeline) Ingest(ctx context.Context, packet sensing.Packet) error {
	_, span := p.tracer.Start(ctx, "pipeline.ingest")
	defer span.End()

	atomic.AddInt64(&p.received, 1)
	observability.GetMetrics().PacketsReceived.Inc()

	p.mu.RLock()
	running := p.running
	p.mu.RUnlock()
	if !running {
		atomic.AddInt64(&p.errored, 1)
		observability.RecordPacketErrored(string(openeyeserr.KindInvalidState))
		return openeyeserr.New("pipeline.Ingest", openeyeserr.KindInvalidState, fmt.Errorf("pipeline is not running"))
	}

	nowMs := p.now()
	age := packet.Age(nowMs)
	observability.GetMetrics().PacketAge.Observe(float64(age))
	if age > p.maxPacketAgeMs {
		atomic.AddInt64(&p.errored, 1)
		observability.RecordPacketErrored(string(openeyeserr.KindStalePacket))
		return openeyeserr.New("pipeline.Ingest", openeyeserr.KindStalePacket, fmt.Errorf("packet age %dms exceeds %dms", age, p.maxPacketAgeMs))
	}
	if !packet.IMU.IsValid() {
		atomic.AddInt64(&p.errored, 1)
		observability.RecordPacketErrored(string(openeyeserr.KindInvalidPacket))
		return openeyeserr.New("pipeline.Ingest", openeyeserr.KindInvalidPacket, fmt.Errorf("IMU reading is invalid"))
	}

	filtered := packet
	if p.filter != nil {
		filtered = p.filter.Apply(packet)
		if p.filter.IsWarmedUp() {
			observability.GetMetrics().FilterWarmedUp.Set(1)
		} else {
			observability.GetMetrics().FilterWarmedUp.Set(0)
		}
	}

	p.mu.Lock()
	previous := p.lastState
	ts := state.FromPacket(filtered, previous, nowMs)
	p.lastState = ts
	p.mu.Unlock()

	if p.onState != nil {
		p.onState(ts)
	}

	p.updateGpsLossTracking(filtered.Gps)

	if p.navigator != nil && filtered.Gps.Valid() {
		p.navigator.UpdatePosition(filtered.Gps)
	}

	snap, err := snapshot.Build(ts, p.navigator)
	if err != nil {
		atomic.AddInt64(&p.errored, 1)
		observability.RecordPacketErrored(string(openeyeserr.KindInvalidState))
		return nil // validation-gate failure on snapshot is not a packet-level error
	}

	p.mu.RLock()
	gpsLost := p.gpsLost
	p.mu.RUnlock()

	instr, emit, err := p.engine.Evaluate(snap, gpsLost)
	if err != nil {
		atomic.AddInt64(&p.errored, 1)
		observability.RecordPacketErrored(string(openeyeserr.KindNoValidRule))
		return openeyeserr.New("pipeline.Ingest", openeyeserr.KindNoValidRule, err)
	}

	atomic.AddInt64(&p.processed, 1)
	observability.GetMetrics().PacketsProcessed.Inc()

	if p.onDecision != nil {
		p.onDecision(Decision{Instruction: instr, Snapshot: snap, Emit: emit})
	}
	return nil
}

// updateGpsLossTracking implements spec §4.6's GPS-loss detection: three
// consecutive invalid fixes while a destination is active arms the flag;
// a valid fix clears it immediately.
func (p *Pipeline) updateGpsLossTracking(fix sensing.GpsFix) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.navigator == nil || !p.navigator.HasActiveDestination() {
		p.invalidFixStreak = 0
		p.gpsLost = false
		return
	}

	if fix.Valid() {
		p.invalidFixStreak = 0
		p.gpsLost = false
		return
	}

	p.invalidFixStreak++
	if p.invalidFixStreak >= gpsLossConsecutiveThreshold && !p.gpsLost {
		p.gpsLost = true
		observability.GetMetrics().GpsLossEvents.Inc()
	}
}

// NewRunID mints a fresh identifier for a pipeline run, used to correlate
// traces and telemetry across a single start/stop lifecycle.
func NewRunID() string {
	return uuid.NewString()
}
