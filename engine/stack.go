package engine

import (
	"fmt"
	"time"

	"github.com/iltempo/loopian/lpnlib"
	"github.com/iltempo/loopian/message"
	"github.com/iltempo/loopian/midi"
	"github.com/iltempo/loopian/sequence"
)

// MidiSender is the minimal surface ElapseStack needs from a MIDI output;
// *midi.Output satisfies it, and a test fake can too.
type MidiSender interface {
	Send(status, data1, data2 byte) error
}

// MidiReceiver is the minimal surface Flow needs from a MIDI input.
type MidiReceiver interface {
	Poll() (midi.RawMessage, bool)
}

// KeyState reports what DecKeyMap should do with a note-off: original_source's
// key_map reference counts how many still-sounding sources (a scheduled Note,
// a Flow-originated hold) are holding a given pitch, so a note-off from one
// source doesn't cut a pitch another source is still holding.
type KeyState int

const (
	KeyStateNothing KeyState = iota // no one was holding it; nothing to do
	KeyStateLast                    // this was the last holder; send note-off
	KeyStateMore                    // someone else still holds it; suppress
)

// ElapseStack is the engine's central dispatcher: the ordered population of
// every live Elapse, the tick cursor, MIDI I/O, the message intake queue,
// and the UI output feed. Ported from original_source/src/elapse/stack_elapse.rs.
type ElapseStack struct {
	population []Elapse
	parts      [lpnlib.AllPartCount]*Part

	tickgen *TickGen

	midiOut MidiSender
	midiIn  MidiReceiver

	keyMap [lpnlib.MaxNoteNumber + 1]int32

	msgCh chan message.Message
	uiCh  chan string

	chordTables sequence.ChordTableLookup

	lastUIFlush time.Time
	playing     bool
}

// NewElapseStack wires a fresh engine. midiIn may be nil (no input device
// attached); Flow then simply never receives anything to react to.
func NewElapseStack(midiOut MidiSender, midiIn MidiReceiver, chordTables sequence.ChordTableLookup) *ElapseStack {
	if chordTables == nil {
		chordTables = sequence.DefaultChordTables.Lookup
	}
	s := &ElapseStack{
		tickgen:     NewTickGen(NewRitSigmoid()),
		midiOut:     midiOut,
		midiIn:      midiIn,
		msgCh:       make(chan message.Message, 64),
		uiCh:        make(chan string, 64),
		chordTables: chordTables,
	}
	channels := [lpnlib.AllPartCount]uint8{0, 1, 2, 3, 4, 9} // DamperPart sends on channel 9, which no note-playing part shares in this layout
	for i := range s.parts {
		withDamper := i == lpnlib.DamperPart
		withFlow := i == lpnlib.FlowPart
		p := NewPart(i, channels[i], withDamper, withFlow, chordTables)
		s.parts[i] = p
		s.population = append(s.population, p)
	}
	return s
}

// AddElapse admits a newly spawned object (a Loop, a Note, a DynamicPattern)
// into the dispatch population. Its Start hook runs immediately.
func (s *ElapseStack) AddElapse(e Elapse) {
	e.Start()
	s.population = append(s.population, e)
}

// Part returns the part at the given stable index, or nil if out of range.
func (s *ElapseStack) Part(part int) *Part {
	if part < 0 || part >= len(s.parts) {
		return nil
	}
	return s.parts[part]
}

// GetChord reports the chord currently in effect for part, read by a
// PhraseLoop/DynamicPattern/Flow belonging to that part.
func (s *ElapseStack) GetChord(part int) (root, table int16, ok bool) {
	p := s.Part(part)
	if p == nil {
		return 0, 0, false
	}
	return p.GetChord()
}

// MidiOut composes a raw MIDI message and sends it, logging (not panicking)
// on a send failure — a disconnected output shouldn't take the scheduler
// down with it.
func (s *ElapseStack) MidiOut(status, data1, data2 byte) {
	if s.midiOut == nil {
		return
	}
	if err := s.midiOut.Send(status, data1, data2); err != nil {
		fieldLogger("ElapseStack.MidiOut").WithError(err).Warn("midi send failed")
	}
}

// PollMidiIn returns the next buffered input event, if any.
func (s *ElapseStack) PollMidiIn() (midi.RawMessage, bool) {
	if s.midiIn == nil {
		return midi.RawMessage{}, false
	}
	return s.midiIn.Poll()
}

// IncKeyMap records a new holder of pitch.
func (s *ElapseStack) IncKeyMap(pitch uint8) {
	s.keyMap[pitch]++
}

// DecKeyMap releases one holder of pitch and reports what the caller should
// do about it (see KeyState).
func (s *ElapseStack) DecKeyMap(pitch uint8) KeyState {
	c := s.keyMap[pitch]
	switch {
	case c > 1:
		s.keyMap[pitch] = c - 1
		return KeyStateMore
	case c == 1:
		s.keyMap[pitch] = 0
		return KeyStateLast
	default:
		return KeyStateNothing
	}
}

// Enqueue hands a message to the engine, processed on the next Periodic
// call. Safe to call from a different goroutine than the one driving
// Periodic (e.g. the REPL's input loop).
func (s *ElapseStack) Enqueue(msg message.Message) {
	s.msgCh <- msg
}

// UIUpdates exposes the throttled UI-status feed for a front end to drain.
func (s *ElapseStack) UIUpdates() <-chan string { return s.uiCh }

// Periodic is the engine's single tick step: drain pending messages, then
// advance the tick cursor and dispatch everything due. Call it on a steady
// short interval (a few ms) from the driving goroutine. Returns true once a
// Ctrl{Kind: CtrlQuit} message has been processed, telling the caller to
// stop calling it.
func (s *ElapseStack) Periodic(now time.Time) bool {
	if quit := s.drainMessages(now); quit {
		return true
	}
	if s.playing {
		s.tickgen.GenTick(now)
		crnt := s.tickgen.GetCrntMsrTick()
		s.dispatch(crnt)
		s.updateUI(now, crnt)
	}
	return false
}

func (s *ElapseStack) drainMessages(now time.Time) bool {
	for {
		select {
		case msg := <-s.msgCh:
			if s.handleMessage(msg, now) {
				return true
			}
		default:
			return false
		}
	}
}

func (s *ElapseStack) handleMessage(msg message.Message, now time.Time) (quit bool) {
	switch m := msg.(type) {
	case message.Ctrl:
		switch m.Kind {
		case message.CtrlStart:
			s.tickgen.Start(now, s.tickgen.GetBpm(), false)
			for _, p := range s.parts {
				if p != nil {
					p.Start()
				}
			}
			s.playing = true
		case message.CtrlStop:
			s.stopAll()
			s.playing = false
		case message.CtrlResume:
			s.tickgen.Start(now, s.tickgen.GetBpm(), true)
			s.playing = true
		case message.CtrlPanic:
			s.panicAllNotesOff()
		case message.CtrlQuit:
			s.stopAll()
			return true
		}
	case message.Sync:
		s.applySync(m)
	case message.Rit:
		targetBpm := m.Target
		switch m.Target {
		case message.TargetAtempo:
			targetBpm = int16(s.tickgen.GetBpm())
		case message.TargetFermata:
			targetBpm = 0
		}
		s.tickgen.StartRit(now, m.Strength, m.Bars, targetBpm)
	case message.Set:
		s.applySet(m)
	case message.SetBeat:
		tickForOneMsr := (lpnlib.TickForOneMeasure / m.Den) * m.Num
		s.tickgen.ChangeBeatEvent(tickForOneMsr, Meter{Num: m.Num, Den: m.Den})
	case message.Phr:
		if p := s.Part(m.Part); p != nil {
			data := m.Data.Clone()
			p.RcvPhrase(m.Variation, data.Events, data.WholeTick)
		}
	case message.PhrX:
		if p := s.Part(m.Part); p != nil {
			p.ClearPhrase(m.Variation)
		}
	case message.Cmp:
		if p := s.Part(m.Part); p != nil {
			data := m.Data.Clone()
			p.RcvComposition(data.Events, data.WholeTick)
		}
	case message.CmpX:
		if p := s.Part(m.Part); p != nil {
			p.ClearComposition()
		}
	case message.Ana:
		if p := s.Part(m.Part); p != nil {
			p.RcvAnalysis(m.Variation, m.Data.Clone())
		}
	case message.AnaX:
		if p := s.Part(m.Part); p != nil {
			p.ClearAnalysis(m.Variation)
		}
	}
	return false
}

func (s *ElapseStack) applySync(m message.Sync) {
	switch m.Group {
	case message.SyncOnePart:
		if p := s.Part(m.Part); p != nil {
			p.SetSync()
		}
	case message.SyncLeft:
		s.Part(lpnlib.Left1).SetSync()
		s.Part(lpnlib.Left2).SetSync()
	case message.SyncRight:
		s.Part(lpnlib.Right1).SetSync()
		s.Part(lpnlib.Right2).SetSync()
	case message.SyncAll:
		for i := 0; i < lpnlib.MaxUserPart; i++ {
			s.Part(i).SetSync()
		}
	}
}

func (s *ElapseStack) applySet(m message.Set) {
	switch m.Key {
	case message.SetBPM:
		s.tickgen.ChangeBpm(int16(m.Value))
	case message.SetKeyNote:
		for i := 0; i < lpnlib.MaxUserPart; i++ {
			s.parts[i].ChangeKeynote(uint8(m.Value))
		}
	case message.SetTurnNote:
		for i := 0; i < lpnlib.MaxUserPart; i++ {
			s.parts[i].SetTurnnote(int16(m.Value))
		}
	case message.SetCurrentMeasure:
		s.tickgen.SetCrntMsr(m.Value)
	}
}

// panicAllNotesOff silences every channel immediately without touching
// transport state, for the emergency "something is stuck sounding" command.
func (s *ElapseStack) panicAllNotesOff() {
	for ch := byte(0); ch < 16; ch++ {
		s.MidiOut(0xB0|ch, 0x7B, 0x00)
	}
	for i := range s.keyMap {
		s.keyMap[i] = 0
	}
}

// stopAll flushes every sounding/scheduled object (emitting note-offs and
// pedal-ups as it goes) and drops everything but the parts themselves from
// the population, leaving the engine ready for a fresh Start.
func (s *ElapseStack) stopAll() {
	for _, e := range s.population {
		if e.ID().Kind == lpnlib.KindPart {
			continue
		}
		e.Stop(s)
	}
	kept := s.population[:0]
	for _, e := range s.population {
		if e.ID().Kind == lpnlib.KindPart {
			kept = append(kept, e)
		}
	}
	s.population = kept
	for i := range s.keyMap {
		s.keyMap[i] = 0
	}
}

// dispatch runs every Elapse whose Next() is due at or before crnt, in
// (measure, tick, priority) order, including any children newly spawned
// mid-pass (a Loop spawning this bar's Notes). limit guards against a
// runaway spawn chain the way original_source's pick_out_playable asserts
// limit<100.
func (s *ElapseStack) dispatch(crnt CrntMsrTick) {
	const limit = 100
	processed := make(map[Elapse]bool, len(s.population))
	count := 0
	for {
		next := s.pickPlayable(crnt, processed)
		if next == nil {
			break
		}
		processed[next] = true
		next.Process(crnt, s)
		count++
		if count > limit {
			panic(fmt.Sprintf("engine: runaway elapse dispatch past %d objects in one tick", limit))
		}
	}
	s.destroyFinished()
}

func (s *ElapseStack) pickPlayable(crnt CrntMsrTick, processed map[Elapse]bool) Elapse {
	var best Elapse
	var bestMsr, bestTick int32
	var bestPrio int
	for _, e := range s.population {
		if processed[e] {
			continue
		}
		msr, tick := e.Next()
		if msr > crnt.Msr || (msr == crnt.Msr && tick > crnt.Tick) {
			continue
		}
		prio := e.Priority()
		if best == nil || msr < bestMsr || (msr == bestMsr && tick < bestTick) ||
			(msr == bestMsr && tick == bestTick && prio < bestPrio) {
			best, bestMsr, bestTick, bestPrio = e, msr, tick, prio
		}
	}
	return best
}

func (s *ElapseStack) destroyFinished() {
	kept := s.population[:0]
	for _, e := range s.population {
		if e.ID().Kind != lpnlib.KindPart && e.DestroyMe() {
			continue
		}
		kept = append(kept, e)
	}
	s.population = kept
}

// updateUI pushes a fresh status snapshot onto the UI feed, throttled to
// once per 50ms so a fast-polling front end doesn't spin on every tick.
func (s *ElapseStack) updateUI(now time.Time, crnt CrntMsrTick) {
	if !s.lastUIFlush.IsZero() && now.Sub(s.lastUIFlush) < 50*time.Millisecond {
		return
	}
	s.lastUIFlush = now

	state := "0."
	if s.playing {
		state = "0>"
	}
	s.pushUI(state)
	s.pushUI(fmt.Sprintf("1%d", s.tickgen.GetRealBpm()))
	meter := s.tickgen.GetMeter()
	s.pushUI(fmt.Sprintf("2%d/%d", meter.Num, meter.Den))
	msr, beat, tick, _ := s.tickgen.GetTick()
	s.pushUI(fmt.Sprintf("3%d : %d : %03d", msr, beat, tick))
	for i := 0; i < lpnlib.MaxUserPart; i++ {
		s.pushUI(fmt.Sprintf("%d%s", 4+i, s.parts[i].Indicator(crnt.Msr)))
	}
}

func (s *ElapseStack) pushUI(line string) {
	select {
	case s.uiCh <- line:
	default:
	}
}
