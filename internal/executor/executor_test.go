package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/asgard/openeyes/internal/guidance"
	"github.com/asgard/openeyes/internal/openeyeserr"
	"github.com/asgard/openeyes/internal/snapshot"
)

type fakeSpeech struct {
	spoken      []string
	interrupted int
	paused      int
	resumed     int
	stopped     int
	speakErr    error
}

func (f *fakeSpeech) Speak(ctx context.Context, text string, priority SpeechPriority) error {
	if f.speakErr != nil {
		return f.speakErr
	}
	f.spoken = append(f.spoken, text)
	return nil
}
func (f *fakeSpeech) Interrupt(ctx context.Context) error         { f.interrupted++; return nil }
func (f *fakeSpeech) Pause(ctx context.Context) error             { f.paused++; return nil }
func (f *fakeSpeech) Resume(ctx context.Context) error            { f.resumed++; return nil }
func (f *fakeSpeech) Stop(ctx context.Context) error              { f.stopped++; return nil }
func (f *fakeSpeech) WaitForCompletion(ctx context.Context) error { return nil }

func fv(v float64) *float64 { return &v }

func TestImmediateInstructionPreemptsAndSkipsQueue(t *testing.T) {
	speech := &fakeSpeech{}
	e := New(speech)

	instr := guidance.Instruction{Kind: guidance.KindWarning, Message: "head-height obstacle", Immediate: true}
	if err := e.Process(context.Background(), instr, snapshot.Snapshot{}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if speech.interrupted != 1 {
		t.Errorf("expected exactly one interrupt, got %d", speech.interrupted)
	}
	if len(speech.spoken) != 1 || speech.spoken[0] != "head-height obstacle" {
		t.Errorf("spoken = %v", speech.spoken)
	}
	if e.State() != StateIdle {
		t.Errorf("state = %v, want Idle (no movement required)", e.State())
	}
}

func TestImmediateInstructionWithDistanceEntersNavigating(t *testing.T) {
	speech := &fakeSpeech{}
	e := New(speech)

	instr := guidance.Instruction{Kind: guidance.KindGuidance, Message: "step left now", DistanceM: fv(2.0), Immediate: true}
	if err := e.Process(context.Background(), instr, snapshot.Snapshot{Yaw: 0, Pitch: 0}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if e.State() != StateNavigating {
		t.Errorf("state = %v, want Navigating", e.State())
	}
}

func TestNonImmediateInstructionSpeaksThenIdles(t *testing.T) {
	speech := &fakeSpeech{}
	e := New(speech)

	instr := guidance.Instruction{Kind: guidance.KindGuidance, Message: "clear, continue"}
	if err := e.Process(context.Background(), instr, snapshot.Snapshot{}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(speech.spoken) != 1 {
		t.Fatalf("expected one spoken utterance, got %v", speech.spoken)
	}
	if e.State() != StateIdle {
		t.Errorf("state = %v, want Idle", e.State())
	}
}

func TestDisplacementTrackerCompletesAndSpeaksFollowUp(t *testing.T) {
	speech := &fakeSpeech{}
	e := New(speech)

	instr := guidance.Instruction{
		Kind: guidance.KindGuidance, Message: "obstacle ahead, step left now",
		DistanceM: fv(1.0), Immediate: true,
		FollowUpAction: &guidance.FollowUpAction{Kind: guidance.FollowUpContinue},
	}
	start := snapshot.Snapshot{Yaw: 0, Pitch: 0}
	if err := e.Process(context.Background(), instr, start); err != nil {
		t.Fatalf("process: %v", err)
	}
	if e.State() != StateNavigating {
		t.Fatalf("expected Navigating, got %v", e.State())
	}

	// avg_walking_speed(1.4) * 1s = 1.4m, already meets the 1.0m target.
	if err := e.UpdateDisplacement(context.Background(), 1.0, start); err != nil {
		t.Fatalf("update displacement: %v", err)
	}
	if e.State() != StateIdle {
		t.Errorf("state = %v, want Idle after follow-up spoken", e.State())
	}
	last := speech.spoken[len(speech.spoken)-1]
	if last != "continue straight" {
		t.Errorf("follow-up utterance = %q, want %q", last, "continue straight")
	}
}

func TestDisplacementAttenuatedByPitchAndYaw(t *testing.T) {
	tracker := newDisplacementTracker(snapshot.Snapshot{Yaw: 0, Pitch: 0}, 10.0)
	// steep pitch scales the nominal distance by 0.8; large yaw swing damps further.
	got := tracker.update(1.0, snapshot.Snapshot{Yaw: 50, Pitch: 20})
	want := avgWalkingSpeedMps * pitchAttenuation * cos50
	if diff := got - want; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("tracked = %v, want ~%v", got, want)
	}
}

func TestSupplyExternalDisplacementOverridesEstimate(t *testing.T) {
	speech := &fakeSpeech{}
	e := New(speech)
	instr := guidance.Instruction{Kind: guidance.KindGuidance, Message: "go", DistanceM: fv(5.0), Immediate: true}
	_ = e.Process(context.Background(), instr, snapshot.Snapshot{})
	if err := e.SupplyExternalDisplacement(context.Background(), 5.0); err != nil {
		t.Fatalf("supply external: %v", err)
	}
	if e.State() != StateIdle {
		t.Errorf("state = %v, want Idle once external distance meets target", e.State())
	}
}

func TestSpeakFailureWrapsSpeechError(t *testing.T) {
	speech := &fakeSpeech{speakErr: errors.New("device not ready")}
	e := New(speech)

	instr := guidance.Instruction{Kind: guidance.KindGuidance, Message: "clear, continue"}
	err := e.Process(context.Background(), instr, snapshot.Snapshot{})
	if err == nil {
		t.Fatalf("expected an error when the speech collaborator fails")
	}
	if !openeyeserr.Is(err, openeyeserr.KindSpeechError) {
		t.Errorf("expected KindSpeechError, got %v", err)
	}
}

func TestPauseResumeStop(t *testing.T) {
	speech := &fakeSpeech{}
	e := New(speech)
	_ = e.Pause(context.Background())
	if e.State() != StatePaused || speech.paused != 1 {
		t.Errorf("pause did not take effect: state=%v paused=%d", e.State(), speech.paused)
	}
	_ = e.Resume(context.Background())
	if e.State() != StateIdle || speech.resumed != 1 {
		t.Errorf("resume did not take effect: state=%v resumed=%d", e.State(), speech.resumed)
	}
	_ = e.Stop(context.Background())
	if e.State() != StateIdle || speech.stopped != 1 {
		t.Errorf("stop did not take effect: state=%v stopped=%d", e.State(), speech.stopped)
	}
}

func TestMessageQueueOrdersByPriorityThenFIFO(t *testing.T) {
	q := newMessageQueue()
	q.enqueue(&pendingMessage{priority: PriorityInfo, seq: 1})
	q.enqueue(&pendingMessage{priority: PriorityUrgent, seq: 2})
	q.enqueue(&pendingMessage{priority: PriorityNormal, seq: 3})
	q.enqueue(&pendingMessage{priority: PriorityNormal, seq: 4})

	first, _ := q.dequeue()
	if first.priority != PriorityUrgent {
		t.Errorf("first = %+v, want Urgent", first)
	}
	second, _ := q.dequeue()
	if second.seq != 3 {
		t.Errorf("second.seq = %d, want 3 (earlier Normal)", second.seq)
	}
}

// cos50 is cos(50 degrees) precomputed for the attenuation test above.
const cos50 = 0.6427876096865393
