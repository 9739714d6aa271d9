package engine

import (
	"github.com/iltempo/loopian/lpnlib"
	"github.com/iltempo/loopian/sequence"
)

// Part owns one musical voice: its phrase loop manager, its composition
// (chord) loop manager, and — only for the part at lpnlib.DamperPart — a
// damper loop manager, and — only for lpnlib.FlowPart — a Flow. It is
// visited twice per measure (original_source/src/elapse/elapse_part.rs):
// once at tick 0, where the phrase manager and damper manager run against
// the bar that's starting, and once at tick_for_onemsr-1, where the
// composition manager runs against msr+1 so next bar's chord is already
// current before that bar's phrase notes need it. The very first visit
// after Start runs all three managers at once (start_flag), since there is
// no earlier "end of previous bar" visit to have primed the chord.
type Part struct {
	id       lpnlib.ElapseId
	partNum  int
	channel  uint8
	keynote  uint8

	pm *phrLoopManager
	cm *cmpsLoopManager
	dm *damperLoopManager
	fl *Flow

	duringPlay   bool
	startFlag    bool
	syncNextMsr  bool
	nextMsr      int32
	nextTick     int32
	destroy      bool
}

// NewPart constructs a Part. channel is the MIDI channel this part's notes
// and pedal events go out on; withDamper/withFlow wire the optional
// managers for lpnlib.DamperPart/lpnlib.FlowPart respectively.
func NewPart(partNum int, channel uint8, withDamper, withFlow bool, chordTables sequence.ChordTableLookup) *Part {
	p := &Part{
		id:       lpnlib.ElapseId{Pid: uint32(partNum), Sid: 0, Kind: lpnlib.KindPart},
		partNum:  partNum,
		channel:  channel,
		keynote:  lpnlib.DefaultNoteNumber,
		pm:       newPhrLoopManager(chordTables),
		cm:       newCmpsLoopManager(),
	}
	if withDamper {
		p.dm = newDamperLoopManager()
	}
	if withFlow {
		p.fl = NewFlow(partNum, channel, chordTables)
	}
	return p
}

func (p *Part) ID() lpnlib.ElapseId { return p.id }
func (p *Part) Priority() int       { return lpnlib.PriPart }

func (p *Part) Next() (int32, int32) {
	if p.destroy || !p.duringPlay {
		return lpnlib.Full, 0
	}
	return p.nextMsr, p.nextTick
}

// Start arms the part for playback beginning at measure 0, tick 0.
func (p *Part) Start() {
	p.duringPlay = true
	p.startFlag = true
	p.nextMsr = 0
	p.nextTick = 0
	p.pm.start()
	p.cm.start()
	if p.dm != nil {
		p.dm.start()
	}
}

func (p *Part) Stop(stack *ElapseStack) {
	p.duringPlay = false
	if p.pm.getPhr() != nil {
		p.pm.getPhr().Stop(stack)
	}
	if p.cm.getCmps() != nil {
		p.cm.getCmps().Stop(stack)
	}
}

func (p *Part) DestroyMe() bool { return p.destroy }

func (p *Part) basicPrm() partBasicPrm {
	return partBasicPrm{partNum: p.partNum, channel: p.channel, keynote: p.keynote, syncFlag: p.syncNextMsr}
}

func (p *Part) Process(crnt CrntMsrTick, stack *ElapseStack) {
	if !p.duringPlay {
		return
	}
	if p.startFlag {
		p.startFlag = false
		p.pm.process(crnt, stack, p.basicPrm())
		p.cm.process(CrntMsrTick{Msr: crnt.Msr, Tick: 0, TickForOneMsr: crnt.TickForOneMsr}, stack, p.basicPrm())
		if p.dm != nil {
			p.dm.process(crnt, stack, p.basicPrm(), p.pm.getPhr())
		}
		p.syncNextMsr = false
		p.nextTick = crnt.TickForOneMsr - 1
		return
	}

	switch crnt.Tick {
	case 0:
		p.pm.process(crnt, stack, p.basicPrm())
		if p.dm != nil {
			p.dm.process(crnt, stack, p.basicPrm(), p.pm.getPhr())
		}
		p.syncNextMsr = false
		p.nextMsr = crnt.Msr
		p.nextTick = crnt.TickForOneMsr - 1
	default:
		shifted := CrntMsrTick{Msr: crnt.Msr + 1, Tick: 0, TickForOneMsr: crnt.TickForOneMsr}
		p.cm.process(shifted, stack, p.basicPrm())
		p.nextMsr = crnt.Msr + 1
		p.nextTick = 0
	}
}

// RcvPhrase stages a phrase for a variation slot, arriving from a Phr
// message.
func (p *Part) RcvPhrase(variation int, events []sequence.PhraseEvent, wholeTick int32) {
	p.pm.rcvMsg(variation, events, wholeTick)
}

// RcvAnalysis stages analysis hints paired with a phrase variation.
func (p *Part) RcvAnalysis(variation int, analysis *sequence.AnalysisData) {
	p.pm.rcvAna(variation, analysis)
}

// RcvComposition stages a chord progression from a Cmp message.
func (p *Part) RcvComposition(events []sequence.ChordEvent, wholeTick int32) {
	p.cm.rcvMsg(events, wholeTick)
}

// ClearPhrase empties a phrase-loop variation slot (a PhrX message).
func (p *Part) ClearPhrase(variation int) { p.pm.rcvMsg(variation, nil, 0) }

// ClearAnalysis empties an analysis-hint slot (an AnaX message).
func (p *Part) ClearAnalysis(variation int) { p.pm.rcvAna(variation, nil) }

// ClearComposition empties the pending chord progression (a CmpX message).
func (p *Part) ClearComposition() { p.cm.rcvMsg(nil, 0) }

// ReserveVariation switches the phrase loop to variation variNum at the
// next bar boundary (immediately, not waiting for the current loop's
// natural end).
func (p *Part) ReserveVariation(variNum int) { p.pm.reserveVari(variNum) }

// SetSync arms syncNextMsr and stateReserve on both managers so the next
// bar-top Process forces both to (re)spawn even mid-loop.
func (p *Part) SetSync() {
	p.pm.stateReserve = true
	p.cm.stateReserve = true
	p.syncNextMsr = true
}

// ChangeKeynote updates the scale-degree-to-pitch base this part's phrase
// notes resolve against, and arms phrase stateReserve so the change takes
// effect at the next bar. It leaves any explicitly-set turnnote alone.
func (p *Part) ChangeKeynote(kn uint8) {
	p.keynote = kn
	p.pm.stateReserve = true
}

// SetTurnnote changes the octave-fold threshold this part's phrase loop
// resolves notes against (see PhraseLoop.playNote).
func (p *Part) SetTurnnote(tn int16) {
	p.pm.setTurnnote(tn)
}

// GetChord exposes the part's current chord for PhraseLoop/DynamicPattern
// to transpose scale-degree notes against.
func (p *Part) GetChord() (root, table int16, ok bool) {
	if p.cm.getCmps() == nil {
		return 0, 0, false
	}
	return p.cm.getCmps().GetChord()
}

// Indicator renders this part's one-line UI status: "<loop-position>/
// <loop-length> <chord-name>" when a phrase is active, "Flow <chord-name>"
// when only Flow is active, else "---" (SPEC_FULL.md §12 gen_part_indicator).
func (p *Part) Indicator(crntMsr int32) string {
	chord := p.cm.chordName()
	if p.pm.getPhr() != nil {
		return p.pm.genMsrcnt(crntMsr) + " " + chord
	}
	if p.fl != nil && p.fl.active {
		return "Flow " + chord
	}
	return "---"
}

// Flow exposes this part's reactive input engine, if any.
func (p *Part) Flow() *Flow { return p.fl }
