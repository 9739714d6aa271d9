package engine

import (
	"github.com/iltempo/loopian/lpnlib"
	"github.com/iltempo/loopian/sequence"
)

// partBasicPrm is the read-only slice of Part state its loop managers need
// each Process call: the part's own index, its keynote, and whether a sync
// landed on this bar. Named to match original_source's PartBasicPrm.
type partBasicPrm struct {
	partNum  int
	channel  uint8
	keynote  uint8
	syncFlag bool
}

// phrVariSlot holds one variation's pending phrase+analysis content, keyed
// by the Variation field of a Phr/Ana message.
type phrVariSlot struct {
	events    []sequence.PhraseEvent
	analysis  *sequence.AnalysisData
	wholeTick int32
}

// phrLoopManager owns the current PhraseLoop and the MAX_PHRASE pending
// variation slots, deciding at each bar boundary whether to spawn a new
// PhraseLoop: on an explicit variation request (vari_reserve), on new base
// data arriving (state_reserve) once the current loop's natural end is
// reached or a sync forces it, or simply re-spawning the same loop once it
// wraps. Ported from original_source/src/elapse/elapse_part.rs PhrLoopManager.
type phrLoopManager struct {
	firstMsrNum  int32
	maxLoopMsr   int32
	wholeTick    int32
	loopCntr     uint32
	slots        [lpnlib.MaxPhrase]phrVariSlot
	loopPhrase   *PhraseLoop
	variReserve  int
	stateReserve bool
	turnnote     int16
	chordTables  sequence.ChordTableLookup
}

func newPhrLoopManager(chordTables sequence.ChordTableLookup) *phrLoopManager {
	return &phrLoopManager{turnnote: lpnlib.DefaultTurnnote, chordTables: chordTables}
}

func (m *phrLoopManager) start() { m.firstMsrNum = 0 }

func (m *phrLoopManager) process(crnt CrntMsrTick, stack *ElapseStack, pbp partBasicPrm) {
	switch {
	case m.variReserve != 0:
		if m.loopPhrase != nil {
			m.loopPhrase.SetDestroy()
		}
		m.newLoop(crnt.Msr, crnt.TickForOneMsr, stack, pbp)
	case m.stateReserve:
		switch {
		case crnt.Msr == 0:
			m.stateReserve = false
			m.newLoop(crnt.Msr, crnt.TickForOneMsr, stack, pbp)
		case m.maxLoopMsr == 0:
			m.stateReserve = false
			m.newLoop(crnt.Msr, crnt.TickForOneMsr, stack, pbp)
		case (crnt.Msr-m.firstMsrNum)%m.maxLoopMsr == 0:
			m.stateReserve = false
			m.newLoop(crnt.Msr, crnt.TickForOneMsr, stack, pbp)
		case pbp.syncFlag:
			m.stateReserve = false
			if m.loopPhrase != nil {
				m.loopPhrase.SetDestroy()
			}
			m.newLoop(crnt.Msr, crnt.TickForOneMsr, stack, pbp)
		default:
			// current loop hasn't ended yet; state_reserve carries forward
		}
	case m.maxLoopMsr != 0 && (crnt.Msr-m.firstMsrNum)%m.maxLoopMsr == 0:
		m.newLoop(crnt.Msr, crnt.TickForOneMsr, stack, pbp)
	default:
		// mid-loop, nothing to do
	}
}

// rcvMsg stages a phrase for variation variNum; applying slot 0 (the base
// variation) arms state_reserve for the next bar boundary.
func (m *phrLoopManager) rcvMsg(variNum int, events []sequence.PhraseEvent, wholeTick int32) {
	if variNum < 0 || variNum >= lpnlib.MaxPhrase {
		return
	}
	m.slots[variNum].events = events
	m.slots[variNum].wholeTick = wholeTick
	if variNum == 0 {
		m.stateReserve = true
	}
}

func (m *phrLoopManager) rcvAna(variNum int, analysis *sequence.AnalysisData) {
	if variNum < 0 || variNum >= lpnlib.MaxPhrase {
		return
	}
	m.slots[variNum].analysis = analysis
	if variNum == 0 {
		m.stateReserve = true
	}
}

func (m *phrLoopManager) reserveVari(variNum int) { m.variReserve = variNum }

func (m *phrLoopManager) setTurnnote(tn int16) { m.turnnote = tn }

func (m *phrLoopManager) getPhr() *PhraseLoop { return m.loopPhrase }

// genMsrcnt renders "<bar-position>/<loop-length>" for the UI indicator.
func (m *phrLoopManager) genMsrcnt(crntMsr int32) string {
	if m.loopPhrase == nil {
		return "---"
	}
	numerator := crntMsr - m.loopPhrase.FirstMsrNum() + 1
	return itoa(numerator) + "/" + itoa(m.maxLoopMsr)
}

func (m *phrLoopManager) newLoop(msr, tickForOneMsr int32, stack *ElapseStack, pbp partBasicPrm) {
	m.firstMsrNum = msr
	slot := m.slots[m.variReserve]
	newLoop := false
	if len(slot.events) != 0 {
		m.genNewLoop(msr, tickForOneMsr, stack, pbp)
		newLoop = true
	}
	m.variReserve = 0
	if !newLoop {
		m.wholeTick = 0
		m.loopPhrase = nil
	}
}

func (m *phrLoopManager) genNewLoop(msr, tickForOneMsr int32, stack *ElapseStack, pbp partBasicPrm) {
	slot := m.slots[m.variReserve]
	m.wholeTick = slot.wholeTick
	if m.wholeTick == 0 {
		m.stateReserve = true
		m.loopPhrase = nil
		m.maxLoopMsr = 0
		return
	}
	plusOne := int32(0)
	if m.wholeTick%tickForOneMsr != 0 {
		plusOne = 1
	}
	m.maxLoopMsr = m.wholeTick/tickForOneMsr + plusOne

	m.loopCntr++
	lp := NewPhraseLoop(m.loopCntr, pbp.partNum, pbp.channel, pbp.keynote, msr, slot.events, slot.analysis, m.wholeTick, m.turnnote, m.chordTables)
	m.loopPhrase = lp
	stack.AddElapse(lp)
	fieldLogger("phrLoopManager.genNewLoop").WithField("part", pbp.partNum).WithField("whole_tick", m.wholeTick).Debug("new phrase loop")
}

// cmpsLoopManager is the CompositionLoop equivalent of phrLoopManager, one
// chord progression at a time (no variation slots per spec.md §4.4).
type cmpsLoopManager struct {
	firstMsrNum  int32
	maxLoopMsr   int32
	wholeTick    int32
	loopCntr     uint32
	pendingEvts  []sequence.ChordEvent
	pendingTick  int32
	loopCmps     *CompositionLoop
	stateReserve bool
}

func newCmpsLoopManager() *cmpsLoopManager { return &cmpsLoopManager{} }

func (m *cmpsLoopManager) start() { m.firstMsrNum = 0 }

func (m *cmpsLoopManager) process(crnt CrntMsrTick, stack *ElapseStack, pbp partBasicPrm) {
	switch {
	case m.stateReserve:
		switch {
		case crnt.Msr == 0:
			m.stateReserve = false
			m.newLoop(crnt, stack, pbp)
		case m.maxLoopMsr == 0:
			m.stateReserve = false
			m.newLoop(crnt, stack, pbp)
		case (crnt.Msr-m.firstMsrNum)%m.maxLoopMsr == 0:
			m.stateReserve = false
			m.newLoop(crnt, stack, pbp)
		case pbp.syncFlag:
			m.stateReserve = false
			if m.loopCmps != nil {
				m.loopCmps.SetDestroy()
			}
			m.newLoop(crnt, stack, pbp)
		default:
		}
	case m.maxLoopMsr != 0 && (crnt.Msr-m.firstMsrNum)%m.maxLoopMsr == 0:
		m.newLoop(crnt, stack, pbp)
	}
}

func (m *cmpsLoopManager) rcvMsg(events []sequence.ChordEvent, wholeTick int32) {
	m.pendingEvts = events
	m.pendingTick = wholeTick
	m.stateReserve = true
}

func (m *cmpsLoopManager) getCmps() *CompositionLoop { return m.loopCmps }

func (m *cmpsLoopManager) chordName() string {
	if m.loopCmps == nil {
		return ""
	}
	return m.loopCmps.ChordName()
}

func (m *cmpsLoopManager) newLoop(crnt CrntMsrTick, stack *ElapseStack, pbp partBasicPrm) {
	if len(m.pendingEvts) == 0 {
		m.maxLoopMsr = 0
		m.wholeTick = 0
		m.loopCntr = 0
		m.stateReserve = true
		m.loopCmps = nil
		return
	}
	m.firstMsrNum = crnt.Msr
	m.wholeTick = m.pendingTick
	plusOne := int32(0)
	if m.wholeTick%crnt.TickForOneMsr != 0 {
		plusOne = 1
	}
	m.maxLoopMsr = m.wholeTick/crnt.TickForOneMsr + plusOne
	if m.wholeTick == 0 {
		m.stateReserve = true
		m.loopCmps = nil
		return
	}
	m.loopCntr++
	cl := NewCompositionLoop(m.loopCntr, pbp.partNum, pbp.keynote, crnt.Msr, m.pendingEvts, m.wholeTick)
	cl.Process(crnt, stack) // self-prime: sound this bar's chord immediately
	m.loopCmps = cl
	stack.AddElapse(cl)
	fieldLogger("cmpsLoopManager.newLoop").WithField("part", pbp.partNum).Debug("new composition loop")
}

// damperLoopManager re-creates a DamperLoop every bar, unconditionally,
// while the part is playing.
type damperLoopManager struct {
	firstMsrNum int32
	loopCntr    uint32
	loopDmpr    *DamperLoop
}

func newDamperLoopManager() *damperLoopManager { return &damperLoopManager{} }

func (m *damperLoopManager) start() { m.firstMsrNum = 0 }

func (m *damperLoopManager) process(crnt CrntMsrTick, stack *ElapseStack, pbp partBasicPrm, phrase *PhraseLoop) {
	dl := NewDamperLoop(m.loopCntr, pbp.partNum, pbp.channel, crnt.Msr, phrase, crnt.TickForOneMsr)
	m.loopDmpr = dl
	stack.AddElapse(dl)
	m.loopCntr++
}

// itoa avoids importing strconv into this file's tight loop-manager logic
// for a single-purpose base-10 integer format (negatives get a leading '-').
func itoa(n int32) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
