package engine

import (
	"github.com/iltempo/loopian/lpnlib"
	"github.com/iltempo/loopian/sequence"
)

// loopBase is the Next/DestroyMe/ID/Priority/Start bookkeeping shared by
// PhraseLoop, CompositionLoop and DamperLoop. original_source/elapse_loop.rs
// (the common "Loop" base the three inherit from) wasn't included in the
// filtered source pack — only its call shape is visible from elapse_part.rs
// — so this is authored directly from that call shape and from spec.md §4.4.
type loopBase struct {
	id          lpnlib.ElapseId
	priority    int
	firstMsrNum int32
	nextMsr     int32
	nextTick    int32
	destroy     bool
}

func (l *loopBase) ID() lpnlib.ElapseId { return l.id }
func (l *loopBase) Priority() int       { return l.priority }

func (l *loopBase) Next() (int32, int32) {
	if l.destroy {
		return lpnlib.Full, 0
	}
	return l.nextMsr, l.nextTick
}

func (l *loopBase) Start() {}

func (l *loopBase) DestroyMe() bool { return l.destroy }

// SetDestroy marks the loop for removal, matching the managers' explicit
// `set_destroy()` call when superseding a loop early (sync, new variation).
func (l *loopBase) SetDestroy() {
	l.destroy = true
	l.nextMsr = lpnlib.Full
	l.nextTick = 0
}

// FirstMsrNum is the measure this loop instance was spawned at, used by
// PhrLoopManager.gen_msrcnt-equivalent UI rendering.
func (l *loopBase) FirstMsrNum() int32 { return l.firstMsrNum }

// PhraseLoop walks a phrase's event list, spawning a Note per EventNote and
// a DynamicPattern per EventCluster/EventArpeggio marker. Scale-degree note
// events are transposed against the owning part's chord root and keynote,
// then octave-folded against turnnote (SPEC_FULL.md §12).
type PhraseLoop struct {
	loopBase
	part        int
	channel     uint8
	keynote     uint8
	turnnote    int16
	events      []sequence.PhraseEvent
	analysis    *sequence.AnalysisData
	playCounter int
	wholeTick   int32
	chordTables sequence.ChordTableLookup
}

// NewPhraseLoop spawns a PhraseLoop at msr. events must be sorted ascending
// by Tick (the front end's responsibility; spec.md §3).
func NewPhraseLoop(sid uint32, part int, channel, keynote uint8, msr int32, events []sequence.PhraseEvent, analysis *sequence.AnalysisData, wholeTick int32, turnnote int16, chordTables sequence.ChordTableLookup) *PhraseLoop {
	return &PhraseLoop{
		loopBase: loopBase{
			id:          lpnlib.ElapseId{Pid: uint32(part), Sid: sid, Kind: lpnlib.KindPhraseLoop},
			priority:    lpnlib.PriPhraseLoop,
			firstMsrNum: msr,
			nextMsr:     msr,
			nextTick:    0,
		},
		part:        part,
		channel:     channel,
		keynote:     keynote,
		turnnote:    turnnote,
		events:      events,
		analysis:    analysis,
		wholeTick:   wholeTick,
		chordTables: chordTables,
	}
}

func (p *PhraseLoop) Stop(stack *ElapseStack) { p.SetDestroy() }

func (p *PhraseLoop) Process(crnt CrntMsrTick, stack *ElapseStack) {
	if p.destroy {
		return
	}
	for p.playCounter < len(p.events) {
		ev := p.events[p.playCounter]
		relMsr := p.firstMsrNum + ev.Tick/crnt.TickForOneMsr
		relTick := ev.Tick % crnt.TickForOneMsr
		if relMsr > crnt.Msr || (relMsr == crnt.Msr && relTick > crnt.Tick) {
			break
		}
		p.playEvent(stack, relMsr, relTick, ev)
		p.playCounter++
	}
	if p.playCounter >= len(p.events) {
		p.SetDestroy()
		return
	}
	next := p.events[p.playCounter]
	p.nextMsr = p.firstMsrNum + next.Tick/crnt.TickForOneMsr
	p.nextTick = next.Tick % crnt.TickForOneMsr
}

func (p *PhraseLoop) playEvent(stack *ElapseStack, msr, tick int32, ev sequence.PhraseEvent) {
	switch ev.Kind {
	case sequence.EventCluster, sequence.EventArpeggio:
		dp := NewDynamicPattern(p.id.Sid, uint32(p.playCounter), p.part, p.keynote, p.channel, msr, ev, p.analysis, p.chordTables)
		stack.AddElapse(dp)
	default:
		p.playNote(stack, msr, tick, ev)
	}
}

func (p *PhraseLoop) playNote(stack *ElapseStack, msr, tick int32, ev sequence.PhraseEvent) {
	if ev.Note == lpnlib.NoNote {
		return
	}
	root, _, ok := stack.GetChord(p.part)
	if !ok {
		root = 0
	}
	pitch := ev.Note + root + int16(p.keynote)
	if pitch > p.turnnote {
		pitch -= 12
	}
	if pitch < lpnlib.MinNoteNumber {
		pitch = lpnlib.MinNoteNumber
	}
	if pitch > lpnlib.MaxNoteNumber {
		pitch = lpnlib.MaxNoteNumber
	}
	n := NewNote(p.id.Sid, uint32(p.playCounter), p.part, p.channel, uint8(pitch), uint8(ev.Velocity), msr, tick, ev.Duration)
	stack.AddElapse(n)
}

// CompositionLoop walks a chord progression, advancing the "current chord"
// the owning part's PhraseLoop/DynamicPattern read via ElapseStack.GetChord.
// Per SPEC_FULL.md §12 it self-primes: the manager calls Process once,
// synchronously, right after construction, so the chord is already current
// when the bar that spawned it begins.
type CompositionLoop struct {
	loopBase
	part        int
	keynote     uint8
	events      []sequence.ChordEvent
	wholeTick   int32
	playCounter int
	crntRoot    int16
	crntTable   int16
	haveChord   bool
}

// NewCompositionLoop spawns a CompositionLoop at msr.
func NewCompositionLoop(sid uint32, part int, keynote uint8, msr int32, events []sequence.ChordEvent, wholeTick int32) *CompositionLoop {
	return &CompositionLoop{
		loopBase: loopBase{
			id:          lpnlib.ElapseId{Pid: uint32(part), Sid: sid, Kind: lpnlib.KindCompositionLoop},
			priority:    lpnlib.PriCompositionLoop,
			firstMsrNum: msr,
			nextMsr:     msr,
			nextTick:    0,
		},
		part:      part,
		keynote:   keynote,
		events:    events,
		wholeTick: wholeTick,
	}
}

func (c *CompositionLoop) Stop(stack *ElapseStack) { c.SetDestroy() }

// GetChord returns the chord currently in effect.
func (c *CompositionLoop) GetChord() (root, table int16, ok bool) {
	return c.crntRoot, c.crntTable, c.haveChord
}

// ChordName renders the current chord for the UI indicator.
func (c *CompositionLoop) ChordName() string {
	if !c.haveChord {
		return ""
	}
	return sequence.ChordName(c.crntRoot, c.crntTable)
}

func (c *CompositionLoop) Process(crnt CrntMsrTick, stack *ElapseStack) {
	if c.destroy {
		return
	}
	for c.playCounter < len(c.events) {
		ev := c.events[c.playCounter]
		relMsr := c.firstMsrNum + ev.Tick/crnt.TickForOneMsr
		relTick := ev.Tick % crnt.TickForOneMsr
		if relMsr > crnt.Msr || (relMsr == crnt.Msr && relTick > crnt.Tick) {
			break
		}
		c.crntRoot = ev.Root
		c.crntTable = ev.Table
		c.haveChord = true
		c.playCounter++
	}
	if c.playCounter >= len(c.events) {
		c.SetDestroy()
		return
	}
	next := c.events[c.playCounter]
	c.nextMsr = c.firstMsrNum + next.Tick/crnt.TickForOneMsr
	c.nextTick = next.Tick % crnt.TickForOneMsr
}

// damperEvent is one pedal transition DamperLoop will emit this bar.
type damperEvent struct {
	tick int32
	down bool
}

// DamperLoop emits sustain-pedal CC (0xB0 0x40) transitions for one
// measure, re-created fresh each bar by DamperLoopManager (spec.md §4.6).
// original_source's DamperLoop::new takes no event list — it derives its
// own schedule — so this builds one at construction from the owning part's
// current phrase note onsets: the pedal is pressed at each onset (lifted
// first, at the same tick, if already down); at a NOPED-tagged onset it is
// lifted if down and not pressed again (SPEC_FULL.md §12).
type DamperLoop struct {
	loopBase
	part      int
	channel   uint8
	schedule  []damperEvent
	idx       int
	pedalDown bool
}

// NewDamperLoop builds a DamperLoop for the bar starting at msr, deriving its
// pedal schedule from the part's active phrase (if any).
func NewDamperLoop(sid uint32, part int, channel uint8, msr int32, phrase *PhraseLoop, tickForOneMsr int32) *DamperLoop {
	d := &DamperLoop{
		loopBase: loopBase{
			id:          lpnlib.ElapseId{Pid: uint32(part), Sid: sid, Kind: lpnlib.KindDamperLoop},
			priority:    lpnlib.PriDamperLoop,
			firstMsrNum: msr,
			nextMsr:     msr,
			nextTick:    0,
		},
		part:    part,
		channel: channel,
	}
	d.schedule = buildDamperSchedule(phrase, msr, tickForOneMsr)
	if len(d.schedule) > 0 {
		d.nextTick = d.schedule[0].tick
	} else {
		d.SetDestroy()
	}
	return d
}

func buildDamperSchedule(phrase *PhraseLoop, msr, tickForOneMsr int32) []damperEvent {
	if phrase == nil {
		return nil
	}
	var onsets []int32
	var noped []bool
	for _, ev := range phrase.events {
		if ev.Kind != sequence.EventNote || ev.Note == lpnlib.NoNote {
			continue
		}
		relMsr := phrase.firstMsrNum + ev.Tick/tickForOneMsr
		if relMsr != msr {
			continue
		}
		relTick := ev.Tick % tickForOneMsr
		isNoped := false
		if phrase.analysis != nil {
			if _, ok := phrase.analysis.InEffectAt(sequence.AnalysisNoped, ev.Tick); ok {
				isNoped = true
			}
		}
		onsets = append(onsets, relTick)
		noped = append(noped, isNoped)
	}
	var sched []damperEvent
	pending := false
	for i, tick := range onsets {
		if noped[i] {
			if pending {
				sched = append(sched, damperEvent{tick: tick, down: false})
				pending = false
			}
			continue
		}
		if pending {
			sched = append(sched, damperEvent{tick: tick, down: false})
		}
		sched = append(sched, damperEvent{tick: tick, down: true})
		pending = true
	}
	if pending {
		sched = append(sched, damperEvent{tick: tickForOneMsr - 1, down: false})
	}
	return sched
}

func (d *DamperLoop) Stop(stack *ElapseStack) {
	if d.pedalDown {
		stack.MidiOut(0xB0|d.channel, 0x40, 0x00)
	}
	d.SetDestroy()
}

func (d *DamperLoop) Process(crnt CrntMsrTick, stack *ElapseStack) {
	if d.destroy {
		return
	}
	for d.idx < len(d.schedule) && d.schedule[d.idx].tick <= crnt.Tick {
		ev := d.schedule[d.idx]
		if ev.down {
			stack.MidiOut(0xB0|d.channel, 0x40, 0x7F)
		} else {
			stack.MidiOut(0xB0|d.channel, 0x40, 0x00)
		}
		d.pedalDown = ev.down
		d.idx++
	}
	if d.idx >= len(d.schedule) {
		d.SetDestroy()
		return
	}
	d.nextTick = d.schedule[d.idx].tick
}
