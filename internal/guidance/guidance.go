// Package guidance holds the priority-ordered expert rule engine: it
// collapses a Snapshot into exactly one voice Instruction, picking the
// first matching rule in descending priority order.
package guidance

import (
	"fmt"
	"math"
	"sort"

	"github.com/asgard/openeyes/internal/platform/observability"
	"github.com/asgard/openeyes/internal/snapshot"
)

// InstructionKind classifies the tone of a voice instruction.
type InstructionKind string

const (
	KindWarning    InstructionKind = "warning"
	KindGuidance   InstructionKind = "guidance"
	KindCorrection InstructionKind = "correction"
)

// FollowUpAction is emitted once a guidance executor finishes tracking
// displacement for an instruction.
type FollowUpAction struct {
	Kind FollowUpActionKind
	Raw  string // only set when Kind == FollowUpRaw
}

type FollowUpActionKind string

const (
	FollowUpNone      FollowUpActionKind = ""
	FollowUpTurnLeft  FollowUpActionKind = "turn_left"
	FollowUpTurnRight FollowUpActionKind = "turn_right"
	FollowUpStop      FollowUpActionKind = "stop"
	FollowUpContinue  FollowUpActionKind = "continue"
	FollowUpRaw       FollowUpActionKind = "raw"
)

const wordsPerMinute = 150

// Instruction is the decision output handed to the guidance executor.
type Instruction struct {
	Kind           InstructionKind
	Message        string
	DistanceM      *float64
	Steps          *int
	FollowUpAction *FollowUpAction
	Immediate      bool
}

// EstimatedSpeechDurationMs approximates how long the speech collaborator
// will take to utter Message, at the spec's nominal 150 words/minute.
func (i Instruction) EstimatedSpeechDurationMs() int64 {
	words := wordCount(i.Message)
	return int64(math.Round(float64(words) / wordsPerMinute * 60_000))
}

func wordCount(s string) int {
	count := 0
	inWord := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' {
			inWord = false
			continue
		}
		if !inWord {
			count++
			inWord = true
		}
	}
	return count
}

// withDistance fills DistanceM and the derived Steps (round(distance/0.5)).
func withDistance(i Instruction, distanceM float64) Instruction {
	i.DistanceM = &distanceM
	steps := int(math.Round(distanceM / 0.5))
	i.Steps = &steps
	return i
}

func followUp(kind FollowUpActionKind) *FollowUpAction {
	return &FollowUpAction{Kind: kind}
}

// Rule is a priority-tagged predicate/action pair; the first matching rule
// in descending priority order wins.
type Rule interface {
	Name() string
	Priority() int
	Matches(snapshot.Snapshot) bool
	Apply(snapshot.Snapshot) Instruction
}

// Engine holds an ordered rule set and the last-emitted-instruction latch
// used for deduplication.
type Engine struct {
	rules            []Rule
	lastInstruction  *Instruction
	destinationLatch bool
	waypointLatch    bool
}

// NewEngine builds an engine from the default 12-rule set.
func NewEngine() *Engine {
	e := &Engine{}
	destRule := &destinationReachedRule{latch: &e.destinationLatch}
	waypointRule := &waypointReachedRule{latch: &e.waypointLatch}
	e.rules = []Rule{
		highObstacleRule{},
		destRule,
		waterRule{},
		immediateObstacleFrontRule{},
		obstacleOnGpsRouteRule{},
		mediumObstacleFrontRule{},
		gpsLostDuringNavigationRule{},
		trajectoryDeviationRule{},
		lateralObstacleRule{},
		waypointRule,
		gpsNavigationRule{},
		clearPathRule{},
	}
	sort.SliceStable(e.rules, func(i, j int) bool {
		return e.rules[i].Priority() > e.rules[j].Priority()
	})
	return e
}

// Rules returns the engine's rule list, highest priority first.
func (e *Engine) Rules() []Rule { return e.rules }

// Evaluate picks the first matching rule and applies it, returning the
// instruction and whether it should be emitted (false when suppressed by
// deduplication). gpsLost, supplied by the pipeline, drives
// GpsLostDuringNavigation independent of the snapshot's own fields.
func (e *Engine) Evaluate(s snapshot.Snapshot, gpsLost bool) (Instruction, bool, error) {
	ctx := ruleContext{snapshot: s, gpsLost: gpsLost}
	for _, r := range e.rules {
		matcher, ok := r.(contextualRule)
		matched := false
		if ok {
			matched = matcher.matchesContext(ctx)
		} else {
			matched = r.Matches(s)
		}
		if !matched {
			continue
		}
		var instr Instruction
		if applier, ok := r.(contextualRule); ok {
			instr = applier.applyContext(ctx)
		} else {
			instr = r.Apply(s)
		}
		observability.RecordRuleMatched(r.Name())
		emit := e.shouldEmit(instr)
		e.lastInstruction = &instr
		if emit {
			observability.RecordInstructionEmitted(string(instr.Kind))
		}
		return instr, emit, nil
	}
	return Instruction{}, false, fmt.Errorf("guidance: no rule applicable (unreachable under invariants)")
}

// shouldEmit implements the deduplication policy: emit iff no previous
// instruction, the new one is immediate, or its kind/message differs.
func (e *Engine) shouldEmit(instr Instruction) bool {
	if e.lastInstruction == nil {
		return true
	}
	if instr.Immediate {
		return true
	}
	return instr.Kind != e.lastInstruction.Kind || instr.Message != e.lastInstruction.Message
}

// ruleContext carries the snapshot plus pipeline-supplied signals that a
// pure Snapshot cannot express (GPS-loss tracking lives in the pipeline,
// per spec §4.6).
type ruleContext struct {
	snapshot snapshot.Snapshot
	gpsLost  bool
}

// contextualRule is implemented by rules that need more than the snapshot
// alone (currently just GpsLostDuringNavigation).
type contextualRule interface {
	matchesContext(ruleContext) bool
	applyContext(ruleContext) Instruction
}
