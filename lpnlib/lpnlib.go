// Package lpnlib holds the shared constants and identity types used across
// the engine: tick arithmetic, priority ordering, and the stable part
// indices the front end addresses parts by.
package lpnlib

// Tick arithmetic. A quarter note is 480 ticks; a 4/4 measure is 1920.
// Other meters scale tick_for_onemsr proportionally (see engine.TickGen).
const (
	TickForQuarter     = 480
	TickForOneMeasure  = 1920 // 4/4 default
	DefaultNoteNumber  = 60   // degree-to-pitch base offset (C4)
	DefaultTurnnote    = 72   // octave-fold threshold (C5), see SPEC_FULL.md §12
	MinNoteNumber      = 0
	MaxNoteNumber      = 127
	NoNote             = -1    // sentinel: "no note"/"rest"
	EndOfData          = -1    // sentinel: end of an event list
	Full               = 10000 // sentinel: "never again" next() tick/measure
	DefaultBPM         = 120
	MinimumTempo       = 20 // floor a rit may not cross, see engine.RitLinear
)

// Stable part indices. The front end addresses parts by these fixed slots;
// FlowPart and DamperPart are engine-internal roles, not phrase/chord
// recipients, and are excluded from MaxUserPart.
const (
	Left1 = iota
	Left2
	Right1
	Right2
	FlowPart
	DamperPart
	AllPartCount
)

// MaxUserPart is the count of parts that can receive Phr/Cmp/Ana messages
// and be synced, i.e. the parts before FlowPart.
const MaxUserPart = FlowPart

// MaxPhrase is the number of loop-variation slots (0 = base, 1..MaxPhrase-1
// = alternate variations addressable by a Phr/Ana message's Variation field).
const MaxPhrase = 10

// ElapseKind tags the concrete role of an Elapse object. Go has no trait
// objects to dispatch on, so the population is just a slice of the Elapse
// interface and ElapseKind recovers "what this actually is" for lookups
// that need to filter the population (e.g. ElapseStack.stopAll and
// destroyFinished, which treat KindPart entries apart from the rest).
type ElapseKind int

const (
	KindPart ElapseKind = iota
	KindCompositionLoop
	KindPhraseLoop
	KindDamperLoop
	KindDynamicPattern
	KindNote
	KindFlow
)

func (k ElapseKind) String() string {
	switch k {
	case KindPart:
		return "part"
	case KindCompositionLoop:
		return "composition-loop"
	case KindPhraseLoop:
		return "phrase-loop"
	case KindDamperLoop:
		return "damper-loop"
	case KindDynamicPattern:
		return "dynamic-pattern"
	case KindNote:
		return "note"
	case KindFlow:
		return "flow"
	default:
		return "unknown"
	}
}

// Priority ordering: smaller fires first among objects due at the same
// (measure, tick). Part must run before the loops it owns can spawn this
// bar's children, and Note must run before Flow so a Flow-originated
// note-off doesn't race a scheduled note-on in the same tick.
const (
	PriPart = iota
	PriCompositionLoop
	PriPhraseLoop
	PriDamperLoop
	PriDynamicPattern
	PriNote
	PriFlow
)

// ElapseId is the identity triple every Elapse object carries: Pid (the
// part index for a Part or a loop; for a Note or DynamicPattern, the Sid of
// the loop or pattern that spawned it), its own ordinal among siblings of
// the same kind (Sid), and its Kind.
type ElapseId struct {
	Pid  uint32
	Sid  uint32
	Kind ElapseKind
}
