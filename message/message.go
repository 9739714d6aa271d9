// Package message defines the values the front end (package repl, or any
// other driver) hands to the engine. Every variant named in spec.md §3 is a
// concrete type implementing the Message marker interface; engine.ElapseStack
// dispatches on concrete type with a type switch, the idiomatic Go stand-in
// for a closed sum type.
package message

import "github.com/iltempo/loopian/sequence"

// Message is implemented by every value the engine's message queue accepts.
type Message interface {
	isMessage()
}

// CtrlKind selects a transport-control action.
type CtrlKind int

const (
	CtrlStart CtrlKind = iota
	CtrlStop
	CtrlResume
	CtrlPanic
	CtrlQuit
)

func (k CtrlKind) String() string {
	switch k {
	case CtrlStart:
		return "start"
	case CtrlStop:
		return "stop"
	case CtrlResume:
		return "resume"
	case CtrlPanic:
		return "panic"
	case CtrlQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Ctrl requests a transport action across the whole engine.
type Ctrl struct {
	Kind CtrlKind
}

func (Ctrl) isMessage() {}

// SyncGroup selects which parts a Sync message targets.
type SyncGroup int

const (
	// SyncOnePart: only Sync.Part is targeted.
	SyncOnePart SyncGroup = iota
	SyncLeft              // Left1 + Left2
	SyncRight             // Right1 + Right2
	SyncAll                // every user part
)

// Sync re-aligns the addressed part(s)' loops to the next measure boundary.
type Sync struct {
	Group SyncGroup
	Part  int // valid only when Group == SyncOnePart
}

func (Sync) isMessage() {}

// Rit target sentinels, carried in Rit.Target alongside literal BPM values.
const (
	TargetAtempo  int16 = -1 // return to the tempo in effect before the rit
	TargetFermata int16 = 0  // hold at the fermata (handled by TickGen)
)

// Strength ratios, in percent; a lower ratio slows harder. RitSigmoid
// (ElapseStack's curve) and RitLinearPrecise end the rit at this percentage
// of the starting tempo; RitLinear scales its slowdown rate by 100 minus
// the ratio. Per spec.md §6 (not the original Rust's 95/80/75 — see
// SPEC_FULL.md §12 for the recorded divergence).
const (
	RitPoco int32 = 98
	RitNrm  int32 = 90
	RitMlt  int32 = 80
)

// Rit arms a ritardando/accelerando curve against the current tempo.
type Rit struct {
	Strength int32 // RitPoco/RitNrm/RitMlt, or any 1-100 custom ratio
	Bars     int32 // number of bars the curve runs over
	Target   int16 // literal target BPM, or TargetAtempo/TargetFermata
}

func (Rit) isMessage() {}

// SetKey selects which scalar engine setting a Set message changes.
type SetKey int

const (
	SetBPM SetKey = iota
	SetKeyNote
	SetTurnNote
	SetCurrentMeasure
)

// Set changes a single scalar engine setting.
type Set struct {
	Key   SetKey
	Value int32
}

func (Set) isMessage() {}

// SetBeat changes the active meter.
type SetBeat struct {
	Num int32
	Den int32
}

func (SetBeat) isMessage() {}

// Phr loads a phrase (and its paired analysis, if any) into a part's
// phrase-loop variation slot.
type Phr struct {
	Part      int
	Variation int
	Data      sequence.PhraseData
}

func (Phr) isMessage() {}

// PhrX clears a phrase-loop variation slot, stopping playback of it once
// the loop using it reaches its natural end (or immediately if idle).
type PhrX struct {
	Part      int
	Variation int
}

func (PhrX) isMessage() {}

// Cmp loads a chord progression into a part's composition loop. The engine
// keeps one progression per part and does not use Variation.
type Cmp struct {
	Part      int
	Variation int
	Data      sequence.ChordData
}

func (Cmp) isMessage() {}

// CmpX clears a part's chord progression; Variation is not used.
type CmpX struct {
	Part      int
	Variation int
}

func (CmpX) isMessage() {}

// Ana loads analysis hints (NOPED/PARA_ROOT/ARTIC) paired with a phrase.
type Ana struct {
	Part      int
	Variation int
	Data      sequence.AnalysisData
}

func (Ana) isMessage() {}

// AnaX clears an analysis-hint slot.
type AnaX struct {
	Part      int
	Variation int
}

func (AnaX) isMessage() {}
