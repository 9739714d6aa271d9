package engine

import (
	"github.com/iltempo/loopian/lpnlib"
	"github.com/iltempo/loopian/midi"
)

// Flow is the reactive counterpart to PhraseLoop: instead of walking a
// pre-authored event list, it turns live MIDI-in note-ons into sounding
// notes on the fly, snapping each incoming pitch to the nearest tone of the
// owning part's current chord. original_source/src/elapse/elapse_flow.rs
// was not present in the filtered source pack, so this is authored
// directly from spec.md §4.8 and from the call shape other elapse types
// share (Next always reports it "due"). ElapseStack does not add the Flow
// to its dispatch population, so Process runs only when called directly.
//
// A part carries a Flow only at lpnlib.FlowPart; it starts inactive and
// reacts only between Activate and Deactivate calls. No repl command calls
// either of them.
type Flow struct {
	id      lpnlib.ElapseId
	part    int
	channel uint8

	active  bool
	destroy bool

	held        map[uint8]uint8 // incoming pitch -> sounded (snapped) pitch
	chordTables chordTablesFunc
}

type chordTablesFunc = func(table int16) []int16

// NewFlow constructs an inactive Flow for the given part/channel.
func NewFlow(part int, channel uint8, chordTables chordTablesFunc) *Flow {
	return &Flow{
		id:          lpnlib.ElapseId{Pid: uint32(part), Sid: 0, Kind: lpnlib.KindFlow},
		part:        part,
		channel:     channel,
		held:        make(map[uint8]uint8),
		chordTables: chordTables,
	}
}

func (f *Flow) ID() lpnlib.ElapseId { return f.id }
func (f *Flow) Priority() int       { return lpnlib.PriFlow }

func (f *Flow) Next() (int32, int32) {
	if f.destroy || !f.active {
		return lpnlib.Full, 0
	}
	return 0, 0
}

func (f *Flow) Start() {}

// Stop releases every currently-held note (e.g. on transport stop) and
// deactivates.
func (f *Flow) Stop(stack *ElapseStack) {
	for _, sounded := range f.held {
		stack.MidiOut(0x80|f.channel, sounded, 0)
	}
	f.held = make(map[uint8]uint8)
	f.active = false
}

func (f *Flow) DestroyMe() bool { return f.destroy }

// Activate/Deactivate are the explicit on/off switch a performer toggles.
func (f *Flow) Activate()   { f.active = true }
func (f *Flow) Deactivate(stack *ElapseStack) {
	if stack != nil {
		f.Stop(stack)
	} else {
		f.active = false
	}
}

func (f *Flow) Process(crnt CrntMsrTick, stack *ElapseStack) {
	if !f.active {
		return
	}
	for {
		raw, ok := stack.PollMidiIn()
		if !ok {
			return
		}
		f.handle(stack, raw)
	}
}

func (f *Flow) handle(stack *ElapseStack, raw midi.RawMessage) {
	status := raw.Status & 0xF0
	switch status {
	case 0x90:
		if raw.Data2 == 0 {
			f.noteOff(stack, raw.Data1)
			return
		}
		f.noteOn(stack, raw.Data1, raw.Data2)
	case 0x80:
		f.noteOff(stack, raw.Data1)
	}
}

func (f *Flow) noteOn(stack *ElapseStack, pitch, velocity uint8) {
	sounded := f.snapToChord(stack, pitch)
	f.held[pitch] = sounded
	stack.MidiOut(0x90|f.channel, sounded, velocity)
	stack.IncKeyMap(sounded)
}

func (f *Flow) noteOff(stack *ElapseStack, pitch uint8) {
	sounded, ok := f.held[pitch]
	if !ok {
		return
	}
	delete(f.held, pitch)
	if stack.DecKeyMap(sounded) != KeyStateMore {
		stack.MidiOut(0x80|f.channel, sounded, 0)
	}
}

// snapToChord maps an incoming pitch to the nearest chord tone of the
// part's current chord, preserving octave; with no chord in effect yet it
// passes the pitch through unchanged.
func (f *Flow) snapToChord(stack *ElapseStack, pitch uint8) uint8 {
	root, table, ok := stack.GetChord(f.part)
	if !ok || f.chordTables == nil {
		return pitch
	}
	intervals := f.chordTables(table)
	if len(intervals) == 0 {
		return pitch
	}
	pitchClass := (int16(pitch) - root) % 12
	if pitchClass < 0 {
		pitchClass += 12
	}
	best := intervals[0]
	bestDist := int16(12)
	for _, iv := range intervals {
		ivClass := ((iv % 12) + 12) % 12
		dist := pitchClass - ivClass
		if dist < 0 {
			dist = -dist
		}
		if dist > 6 {
			dist = 12 - dist
		}
		if dist < bestDist {
			bestDist = dist
			best = iv
		}
	}
	bestClass := ((best % 12) + 12) % 12
	snapped := int16(pitch) - pitchClass + bestClass
	if snapped < lpnlib.MinNoteNumber {
		snapped = lpnlib.MinNoteNumber
	}
	if snapped > lpnlib.MaxNoteNumber {
		snapped = lpnlib.MaxNoteNumber
	}
	return uint8(snapped)
}
