package engine

import (
	"github.com/iltempo/loopian/lpnlib"
	"github.com/iltempo/loopian/sequence"
)

// DynamicPattern is a transient algorithmic note generator, spawned by a
// PhraseLoop when it reaches an EventCluster/EventArpeggio marker instead of
// a plain note. It reads the owning part's CompositionLoop chord afresh at
// every generated step and spawns Notes for its tones; only the
// NOPED/PARA_ROOT/ARTIC hints are derived once at construction, matching
// original_source's derive-once-at-construction rule (SPEC_FULL.md §12).
//
// Ported from original_source/src/elapse/elapse_pattern.rs. The Arpeggio
// branch (`arp_available`) is left unimplemented there (always false,
// never set); this fills that gap per spec.md §4.5's explicit requirement
// that DynamicPattern support both cluster and arpeggio rendering.
type DynamicPattern struct {
	id       lpnlib.ElapseId
	part     int
	keynote  uint8
	channel  uint8

	kind       sequence.EventKind
	ptnTick    int32
	velocity   int16
	eachDur    int32
	maxVoices  int32

	playCounter  int32
	noped        bool
	hasParaRoot  bool
	paraRootBase int16
	staccatoRate int32

	wholeTick   int32
	firstMsrNum int32
	nextMsr     int32
	nextTick    int32
	destroy     bool

	chordTables sequence.ChordTableLookup
}

// NewDynamicPattern constructs a DynamicPattern from the triggering phrase
// event and its paired analysis hints.
func NewDynamicPattern(pid, sid uint32, part int, keynote, channel uint8, msr int32, ev sequence.PhraseEvent, analysis *sequence.AnalysisData, chordTables sequence.ChordTableLookup) *DynamicPattern {
	dp := &DynamicPattern{
		id:          lpnlib.ElapseId{Pid: pid, Sid: sid, Kind: lpnlib.KindDynamicPattern},
		part:        part,
		keynote:     keynote,
		channel:     channel,
		kind:        ev.Kind,
		ptnTick:     ev.Tick,
		velocity:    ev.Velocity,
		eachDur:     ev.EachDur,
		maxVoices:   ev.Trns,
		wholeTick:   ev.Duration,
		firstMsrNum: msr,
		nextMsr:     msr,
		nextTick:    0,
		chordTables: chordTables,
		staccatoRate: 100,
	}
	if analysis != nil {
		if _, ok := analysis.InEffectAt(sequence.AnalysisNoped, ev.Tick); ok {
			dp.noped = true
		}
		if v, ok := analysis.InEffectAt(sequence.AnalysisParaRoot, ev.Tick); ok {
			dp.hasParaRoot = true
			dp.paraRootBase = v
		}
		if v, ok := analysis.InEffectAt(sequence.AnalysisArtic, ev.Tick); ok {
			dp.staccatoRate = int32(v)
		}
	}
	return dp
}

// Noped reports whether this pattern's bar suppresses damper pedaling.
func (d *DynamicPattern) Noped() bool { return d.noped }

func (d *DynamicPattern) ID() lpnlib.ElapseId { return d.id }
func (d *DynamicPattern) Priority() int       { return lpnlib.PriDynamicPattern }

func (d *DynamicPattern) Next() (int32, int32) {
	if d.destroy {
		return lpnlib.Full, 0
	}
	return d.nextMsr, d.nextTick
}

func (d *DynamicPattern) Start() {}

func (d *DynamicPattern) Stop(stack *ElapseStack) {
	d.nextTick = 0
	d.nextMsr = lpnlib.Full
	d.destroy = true
}

func (d *DynamicPattern) DestroyMe() bool { return d.destroy }

func (d *DynamicPattern) Process(crnt CrntMsrTick, stack *ElapseStack) {
	if d.destroy {
		return
	}
	if crnt.Msr > d.nextMsr || crnt.Tick >= d.wholeTick+d.ptnTick {
		d.nextMsr = lpnlib.Full
		d.destroy = true
		return
	}
	if crnt.Tick < d.nextTick {
		return
	}
	nextTick := d.generateEvent(crnt, stack)
	if nextTick == lpnlib.EndOfData {
		d.nextMsr = lpnlib.Full
		d.destroy = true
	} else {
		d.nextTick = nextTick
	}
}

func (d *DynamicPattern) generateEvent(crnt CrntMsrTick, stack *ElapseStack) int32 {
	tones := d.chordTones(stack)
	switch d.kind {
	case sequence.EventArpeggio:
		d.playArpeggio(stack, tones)
	default:
		d.playCluster(stack, tones)
	}
	d.playCounter++

	nextTick := d.nextTick + d.eachDur
	if nextTick >= crnt.TickForOneMsr || nextTick >= d.wholeTick {
		return lpnlib.EndOfData
	}
	return nextTick
}

func (d *DynamicPattern) chordTones(stack *ElapseStack) []int16 {
	root, table, ok := stack.GetChord(d.part)
	if !ok {
		return nil
	}
	if d.hasParaRoot {
		root = d.paraRootBase
	}
	intervals := d.chordTables(table)
	tones := make([]int16, len(intervals))
	for i, iv := range intervals {
		tones[i] = iv + root + int16(d.keynote)
	}
	return tones
}

func (d *DynamicPattern) playCluster(stack *ElapseStack, tones []int16) {
	for _, note := range tones {
		d.genNoteEv(stack, note)
	}
}

// playArpeggio sounds a rotating subset of the chord tones: one step emits
// maxVoices tones starting at playCounter's rotation offset into the tone
// list, so successive steps sweep through the chord.
func (d *DynamicPattern) playArpeggio(stack *ElapseStack, tones []int16) {
	if len(tones) == 0 {
		return
	}
	voices := int(d.maxVoices)
	if voices <= 0 {
		voices = 1
	}
	if voices > len(tones) {
		voices = len(tones)
	}
	offset := int(d.playCounter) % len(tones)
	for i := 0; i < voices; i++ {
		d.genNoteEv(stack, tones[(offset+i)%len(tones)])
	}
}

func (d *DynamicPattern) genNoteEv(stack *ElapseStack, note int16) {
	pitch := note
	dur := d.eachDur
	if d.staccatoRate != 100 {
		dur = (dur * d.staccatoRate) / 100
	}
	if pitch < lpnlib.MinNoteNumber {
		pitch = lpnlib.MinNoteNumber
	}
	if pitch > lpnlib.MaxNoteNumber {
		pitch = lpnlib.MaxNoteNumber
	}
	tick := d.ptnTick + d.eachDur*d.playCounter
	n := NewNote(d.id.Sid, uint32(d.playCounter), d.part, d.channel, uint8(pitch), uint8(d.velocity), d.firstMsrNum, tick, dur)
	stack.AddElapse(n)
}
