// Package executor serializes guidance instructions into speech, tracks
// the traveler's displacement toward a distance target, and emits any
// follow-up action once that target is met — component C8.
package executor

import (
	"context"
	"log"
	"time"

	"github.com/asgard/openeyes/internal/guidance"
	"github.com/asgard/openeyes/internal/openeyeserr"
	"github.com/asgard/openeyes/internal/platform/observability"
	"github.com/asgard/openeyes/internal/snapshot"
)

// State is the executor's coarse lifecycle position.
type State string

const (
	StateIdle       State = "idle"
	StateSpeaking   State = "speaking"
	StateNavigating State = "navigating"
	StateAlerting   State = "alerting"
	StatePaused     State = "paused"
)

// stuckTimeout is how long the executor tolerates a Navigating state with
// no displacement update before logging a (non-fatal) stuck event.
const stuckTimeout = 5 * time.Second

// Executor drives a SpeechCollaborator from a stream of guidance
// instructions. It is built for the single-threaded cooperative model:
// Process, UpdateDisplacement and CheckStuck are expected to be called from
// one logical task.
type Executor struct {
	speech SpeechCollaborator

	state              State
	currentInstruction *guidance.Instruction
	tracker            *displacementTracker
	queue              *messageQueue
	seq                int
	lastDisplacementAt time.Time
}

// New builds an Executor around a speech collaborator.
func New(speech SpeechCollaborator) *Executor {
	e := &Executor{
		speech: speech,
		state:  StateIdle,
		queue:  newMessageQueue(),
	}
	observability.GetMetrics().ExecutorState.Set(stateOrdinal(e.state))
	return e
}

// State returns the executor's current lifecycle state.
func (e *Executor) State() State { return e.state }

// setState transitions the executor's lifecycle state and reflects it in
// the executor_state gauge.
func (e *Executor) setState(s State) {
	e.state = s
	observability.GetMetrics().ExecutorState.Set(stateOrdinal(s))
}

// stateOrdinal maps a State to the numeric value documented on the
// executor_state gauge (0=Idle,1=Speaking,2=Navigating,3=Alerting,4=Paused).
func stateOrdinal(s State) float64 {
	switch s {
	case StateIdle:
		return 0
	case StateSpeaking:
		return 1
	case StateNavigating:
		return 2
	case StateAlerting:
		return 3
	case StatePaused:
		return 4
	default:
		return -1
	}
}

// wrapSpeechErr records a speech-collaborator failure and wraps it in the
// declared error taxonomy (spec §7 SpeechError).
func wrapSpeechErr(op string, err error) error {
	if err == nil {
		return nil
	}
	observability.GetMetrics().SpeechErrors.WithLabelValues(op).Inc()
	return openeyeserr.New(op, openeyeserr.KindSpeechError, err)
}

// Process handles one guidance decision, per spec §4.7.
func (e *Executor) Process(ctx context.Context, instr guidance.Instruction, at snapshot.Snapshot) error {
	requiresMovement := instr.DistanceM != nil && *instr.DistanceM > 0

	if instr.Immediate {
		if err := e.speech.Interrupt(ctx); err != nil {
			return wrapSpeechErr("executor.Interrupt", err)
		}
		if err := e.speech.Speak(ctx, instr.Message, PriorityUrgent); err != nil {
			return wrapSpeechErr("executor.Speak", err)
		}
		e.currentInstruction = &instr
		if requiresMovement {
			e.beginTracking(instr, at)
		} else {
			e.setState(StateIdle)
		}
		return nil
	}

	e.seq++
	msg := &pendingMessage{instruction: instr, snapshot: at, priority: PriorityNormal, seq: e.seq}

	if e.state == StateSpeaking {
		e.queue.enqueue(msg)
		return nil
	}
	return e.speakNow(ctx, msg, requiresMovement)
}

func (e *Executor) speakNow(ctx context.Context, msg *pendingMessage, requiresMovement bool) error {
	e.setState(StateSpeaking)
	if err := e.speech.Speak(ctx, msg.instruction.Message, msg.priority); err != nil {
		return wrapSpeechErr("executor.Speak", err)
	}
	if err := e.speech.WaitForCompletion(ctx); err != nil {
		return wrapSpeechErr("executor.WaitForCompletion", err)
	}
	e.currentInstruction = &msg.instruction
	if requiresMovement {
		e.beginTracking(msg.instruction, msg.snapshot)
	} else {
		e.setState(StateIdle)
	}
	return nil
}

func (e *Executor) beginTracking(instr guidance.Instruction, start snapshot.Snapshot) {
	e.tracker = newDisplacementTracker(start, *instr.DistanceM)
	e.setState(StateNavigating)
	e.lastDisplacementAt = time.Now()
}

// UpdateDisplacement folds in elapsed time and the latest snapshot while
// Navigating. Once the tracked distance meets the target, any follow-up
// action is spoken as a new Normal-priority utterance and the executor
// returns to Idle.
func (e *Executor) UpdateDisplacement(ctx context.Context, deltaSeconds float64, current snapshot.Snapshot) error {
	if e.state != StateNavigating || e.tracker == nil {
		return nil
	}
	e.lastDisplacementAt = time.Now()
	e.tracker.update(deltaSeconds, current)
	if !e.tracker.reached() {
		return nil
	}
	return e.completeTracking(ctx)
}

// SupplyExternalDisplacement overrides the estimate with a directly
// measured distance, e.g. from future odometry hardware.
func (e *Executor) SupplyExternalDisplacement(ctx context.Context, distanceM float64) error {
	if e.state != StateNavigating || e.tracker == nil {
		return nil
	}
	e.lastDisplacementAt = time.Now()
	e.tracker.supplyExternal(distanceM)
	if !e.tracker.reached() {
		return nil
	}
	return e.completeTracking(ctx)
}

func (e *Executor) completeTracking(ctx context.Context) error {
	var followUp *guidance.FollowUpAction
	if e.currentInstruction != nil {
		followUp = e.currentInstruction.FollowUpAction
	}
	if e.tracker != nil {
		observability.GetMetrics().DisplacementTracked.Observe(e.tracker.trackedM)
	}
	e.tracker = nil
	e.currentInstruction = nil
	e.setState(StateIdle)

	if followUp != nil && followUp.Kind != guidance.FollowUpNone {
		text := utteranceFor(*followUp)
		e.seq++
		msg := &pendingMessage{
			instruction: guidance.Instruction{Kind: guidance.KindGuidance, Message: text},
			priority:    PriorityNormal,
			seq:         e.seq,
		}
		return e.speakNow(ctx, msg, false)
	}
	return e.drainQueue(ctx)
}

// drainQueue speaks the next queued message, if any, once the executor
// returns to Idle.
func (e *Executor) drainQueue(ctx context.Context) error {
	msg, ok := e.queue.dequeue()
	if !ok {
		return nil
	}
	requiresMovement := msg.instruction.DistanceM != nil && *msg.instruction.DistanceM > 0
	return e.speakNow(ctx, msg, requiresMovement)
}

// CheckStuck logs a non-fatal timeout event if Navigating with no
// displacement update for longer than stuckTimeout.
func (e *Executor) CheckStuck() {
	if e.state != StateNavigating {
		return
	}
	if time.Since(e.lastDisplacementAt) > stuckTimeout {
		log.Printf("executor: stuck detection timeout, no displacement update in %s", stuckTimeout)
	}
}

// Pause puts the executor into Paused and pauses the speech collaborator.
func (e *Executor) Pause(ctx context.Context) error {
	e.setState(StatePaused)
	return wrapSpeechErr("executor.Pause", e.speech.Pause(ctx))
}

// Resume leaves Paused and resumes the speech collaborator.
func (e *Executor) Resume(ctx context.Context) error {
	e.setState(StateIdle)
	return wrapSpeechErr("executor.Resume", e.speech.Resume(ctx))
}

// Stop halts the speech collaborator and resets to Idle.
func (e *Executor) Stop(ctx context.Context) error {
	e.setState(StateIdle)
	e.tracker = nil
	e.currentInstruction = nil
	return wrapSpeechErr("executor.Stop", e.speech.Stop(ctx))
}

func utteranceFor(a guidance.FollowUpAction) string {
	switch a.Kind {
	case guidance.FollowUpTurnLeft:
		return "turn left now"
	case guidance.FollowUpTurnRight:
		return "turn right now"
	case guidance.FollowUpStop:
		return "stop"
	case guidance.FollowUpContinue:
		return "continue straight"
	case guidance.FollowUpRaw:
		return a.Raw
	default:
		return ""
	}
}
