package engine

import (
	"testing"
	"time"

	"github.com/iltempo/loopian/lpnlib"
	"github.com/iltempo/loopian/message"
)

type recordingElapse struct {
	id      lpnlib.ElapseId
	prio    int
	msr     int32
	tick    int32
	started bool
	destroy bool
	name    string
	log     *[]string
}

func (r *recordingElapse) ID() lpnlib.ElapseId { return r.id }
func (r *recordingElapse) Priority() int       { return r.prio }
func (r *recordingElapse) Next() (int32, int32) {
	if r.destroy {
		return lpnlib.Full, 0
	}
	return r.msr, r.tick
}
func (r *recordingElapse) Start()           { r.started = true }
func (r *recordingElapse) Stop(*ElapseStack) { r.destroy = true }
func (r *recordingElapse) DestroyMe() bool   { return r.destroy }
func (r *recordingElapse) Process(crnt CrntMsrTick, stack *ElapseStack) {
	*r.log = append(*r.log, r.name)
	r.destroy = true
}

func TestDispatchOrdersByMeasureTickPriority(t *testing.T) {
	stack := NewElapseStack(&fakeMidiSender{}, nil, nil)
	stack.population = nil // isolate from the 6 default Parts for ordering clarity

	var order []string
	sid := uint32(0)
	record := func(name string, msr, tick int32, prio int) *recordingElapse {
		sid++
		return &recordingElapse{id: lpnlib.ElapseId{Kind: lpnlib.KindNote, Sid: sid}, name: name, msr: msr, tick: tick, prio: prio, log: &order}
	}

	late := record("late", 0, 10, lpnlib.PriNote)
	earlyLowPrio := record("early-lowprio", 0, 0, lpnlib.PriNote)
	earlyHighPrio := record("early-highprio", 0, 0, lpnlib.PriPart)
	notYetDue := record("not-due", 1, 0, lpnlib.PriNote)

	stack.population = []Elapse{late, earlyLowPrio, earlyHighPrio, notYetDue}
	stack.dispatch(CrntMsrTick{Msr: 0, Tick: 10, TickForOneMsr: 1920})

	if len(order) != 3 {
		t.Fatalf("expected exactly 3 due objects processed, got %v", order)
	}
	// earlyHighPrio and earlyLowPrio are both due at (0,0); higher priority
	// (lower number) must run first. late at (0,10) must run last.
	if order[0] != "early-highprio" || order[1] != "early-lowprio" || order[2] != "late" {
		t.Errorf("dispatch order = %v, want [early-highprio early-lowprio late]", order)
	}
}

func TestDispatchPicksUpChildrenSpawnedMidPass(t *testing.T) {
	stack := NewElapseStack(&fakeMidiSender{}, nil, nil)
	stack.population = nil

	spawner := &spawningElapse{id: lpnlib.ElapseId{Kind: lpnlib.KindPhraseLoop}, prio: lpnlib.PriPhraseLoop}
	stack.population = []Elapse{spawner}
	stack.dispatch(CrntMsrTick{Msr: 0, Tick: 0, TickForOneMsr: 1920})

	foundChild := false
	for _, e := range stack.population {
		if e.ID().Kind == lpnlib.KindNote {
			foundChild = true
		}
	}
	if !foundChild {
		t.Error("expected a child spawned mid-pass to remain in the population after dispatch")
	}
}

type spawningElapse struct {
	id      lpnlib.ElapseId
	prio    int
	spawned bool
	destroy bool
}

func (s *spawningElapse) ID() lpnlib.ElapseId { return s.id }
func (s *spawningElapse) Priority() int       { return s.prio }
func (s *spawningElapse) Next() (int32, int32) {
	if s.destroy {
		return lpnlib.Full, 0
	}
	return 0, 0
}
func (s *spawningElapse) Start()           {}
func (s *spawningElapse) Stop(*ElapseStack) { s.destroy = true }
func (s *spawningElapse) DestroyMe() bool  { return s.destroy }
func (s *spawningElapse) Process(crnt CrntMsrTick, stack *ElapseStack) {
	s.destroy = true
	if !s.spawned {
		s.spawned = true
		child := NewNote(1, 1, lpnlib.Left1, 0, 60, 100, 0, 0, 240)
		stack.AddElapse(child)
	}
}

func TestDispatchRunawayGuardPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected dispatch to panic once the runaway guard is exceeded")
		}
	}()
	stack := NewElapseStack(&fakeMidiSender{}, nil, nil)
	stack.population = nil
	var forever []Elapse
	for i := 0; i < 150; i++ {
		forever = append(forever, &foreverDueElapse{id: lpnlib.ElapseId{Kind: lpnlib.KindNote, Sid: uint32(i)}})
	}
	stack.population = forever
	stack.dispatch(CrntMsrTick{Msr: 0, Tick: 0, TickForOneMsr: 1920})
}

type foreverDueElapse struct {
	id lpnlib.ElapseId
}

func (f *foreverDueElapse) ID() lpnlib.ElapseId                   { return f.id }
func (f *foreverDueElapse) Priority() int                         { return lpnlib.PriNote }
func (f *foreverDueElapse) Next() (int32, int32)                  { return 0, 0 }
func (f *foreverDueElapse) Start()                                {}
func (f *foreverDueElapse) Stop(*ElapseStack)                     {}
func (f *foreverDueElapse) DestroyMe() bool                       { return false }
func (f *foreverDueElapse) Process(crnt CrntMsrTick, stack *ElapseStack) {}

func TestHandleMessageStartArmsPlaying(t *testing.T) {
	stack := NewElapseStack(&fakeMidiSender{}, nil, nil)
	quit := stack.handleMessage(message.Ctrl{Kind: message.CtrlStart}, time.Now())
	if quit {
		t.Fatal("CtrlStart must not request quit")
	}
	if !stack.playing {
		t.Error("expected playing=true after CtrlStart")
	}
	for _, p := range stack.parts {
		if !p.duringPlay {
			t.Errorf("expected part %d to be armed for playback after CtrlStart", p.partNum)
		}
	}
}

func TestHandleMessageStopDisarmsPlaying(t *testing.T) {
	stack := NewElapseStack(&fakeMidiSender{}, nil, nil)
	stack.handleMessage(message.Ctrl{Kind: message.CtrlStart}, time.Now())
	stack.handleMessage(message.Ctrl{Kind: message.CtrlStop}, time.Now())
	if stack.playing {
		t.Error("expected playing=false after CtrlStop")
	}
}

func TestHandleMessageQuitReturnsTrue(t *testing.T) {
	stack := NewElapseStack(&fakeMidiSender{}, nil, nil)
	if !stack.handleMessage(message.Ctrl{Kind: message.CtrlQuit}, time.Now()) {
		t.Error("expected CtrlQuit to report quit=true")
	}
}

func TestHandleMessageSetBPMStocksNotApplies(t *testing.T) {
	stack := NewElapseStack(&fakeMidiSender{}, nil, nil)
	stack.handleMessage(message.Set{Key: message.SetBPM, Value: 90}, time.Now())
	if stack.tickgen.GetBpm() != lpnlib.DefaultBPM {
		t.Errorf("SetBPM must stage, not apply immediately: GetBpm() = %d, want %d", stack.tickgen.GetBpm(), lpnlib.DefaultBPM)
	}
}

func TestHandleMessageSetKeyNoteAppliesToUserPartsOnly(t *testing.T) {
	stack := NewElapseStack(&fakeMidiSender{}, nil, nil)
	stack.handleMessage(message.Set{Key: message.SetKeyNote, Value: 65}, time.Now())
	for i := 0; i < lpnlib.MaxUserPart; i++ {
		if stack.parts[i].keynote != 65 {
			t.Errorf("part %d keynote = %d, want 65", i, stack.parts[i].keynote)
		}
	}
	for i := lpnlib.MaxUserPart; i < lpnlib.AllPartCount; i++ {
		if stack.parts[i].keynote != lpnlib.DefaultNoteNumber {
			t.Errorf("non-user part %d keynote = %d, want unchanged %d", i, stack.parts[i].keynote, lpnlib.DefaultNoteNumber)
		}
	}
}

func TestHandleMessageSetBeatRecomputesTickForOneMsr(t *testing.T) {
	stack := NewElapseStack(&fakeMidiSender{}, nil, nil)
	stack.handleMessage(message.SetBeat{Num: 3, Den: 8}, time.Now())
	tfm, tfb := stack.tickgen.GetBeatTick()
	wantTfm := (lpnlib.TickForOneMeasure / 8) * 3
	if tfm != wantTfm {
		t.Errorf("tickForOneMsr = %d, want %d", tfm, wantTfm)
	}
	if tfb != lpnlib.TickForOneMeasure/8 {
		t.Errorf("tickForBeat = %d, want %d", tfb, lpnlib.TickForOneMeasure/8)
	}
}

func TestHandleMessageRitResolvesAtempoSentinel(t *testing.T) {
	stack := NewElapseStack(&fakeMidiSender{}, nil, nil)
	stack.handleMessage(message.Ctrl{Kind: message.CtrlStart}, time.Now())
	nominalBpm := stack.tickgen.GetBpm()
	stack.handleMessage(message.Rit{Strength: 80, Bars: 2, Target: message.TargetAtempo}, time.Now())
	if stack.tickgen.bpmStock != nominalBpm {
		t.Errorf("Rit with TargetAtempo should resolve to the nominal bpm %d, got %d", nominalBpm, stack.tickgen.bpmStock)
	}
}

func TestHandleMessageRitResolvesFermataSentinel(t *testing.T) {
	stack := NewElapseStack(&fakeMidiSender{}, nil, nil)
	stack.handleMessage(message.Rit{Strength: 80, Bars: 1, Target: message.TargetFermata}, time.Now())
	if stack.tickgen.bpmStock != 0 {
		t.Errorf("Rit with TargetFermata should resolve target bpm to 0, got %d", stack.tickgen.bpmStock)
	}
}

func TestApplySyncAllArmsEveryUserPart(t *testing.T) {
	stack := NewElapseStack(&fakeMidiSender{}, nil, nil)
	stack.applySync(message.Sync{Group: message.SyncAll})
	for i := 0; i < lpnlib.MaxUserPart; i++ {
		if !stack.parts[i].syncNextMsr {
			t.Errorf("expected part %d armed for sync after SyncAll", i)
		}
		if !stack.parts[i].pm.stateReserve || !stack.parts[i].cm.stateReserve {
			t.Errorf("expected part %d's managers armed with stateReserve after SyncAll", i)
		}
	}
}

func TestApplySyncLeftOnlyArmsLeftParts(t *testing.T) {
	stack := NewElapseStack(&fakeMidiSender{}, nil, nil)
	stack.applySync(message.Sync{Group: message.SyncLeft})
	if !stack.parts[lpnlib.Left1].syncNextMsr || !stack.parts[lpnlib.Left2].syncNextMsr {
		t.Error("expected both left parts armed for sync")
	}
	if !stack.parts[lpnlib.Left1].pm.stateReserve || !stack.parts[lpnlib.Left1].cm.stateReserve {
		t.Error("expected left part 1's managers armed with stateReserve")
	}
	if stack.parts[lpnlib.Right1].syncNextMsr {
		t.Error("expected right parts untouched by SyncLeft")
	}
	if stack.parts[lpnlib.Right1].pm.stateReserve {
		t.Error("expected right parts' managers untouched by SyncLeft")
	}
}

func TestUpdateUIThrottlesTo50ms(t *testing.T) {
	stack := NewElapseStack(&fakeMidiSender{}, nil, nil)
	crnt := CrntMsrTick{Msr: 0, Tick: 0, TickForOneMsr: 1920}
	uiCh := stack.UIUpdates()

	base := time.Now()
	stack.updateUI(base, crnt)
	drain(uiCh)

	stack.updateUI(base.Add(40*time.Millisecond), crnt)
	if len(drain(uiCh)) != 0 {
		t.Error("expected no UI update within 50ms of the last flush")
	}

	stack.updateUI(base.Add(60*time.Millisecond), crnt)
	if len(drain(uiCh)) == 0 {
		t.Error("expected a UI update once 50ms have elapsed since the last flush")
	}
}

func drain(ch <-chan string) []string {
	var out []string
	for {
		select {
		case s := <-ch:
			out = append(out, s)
		default:
			return out
		}
	}
}

func TestPanicAllNotesOffSendsCCOnEveryChannel(t *testing.T) {
	sender := &fakeMidiSender{}
	stack := NewElapseStack(sender, nil, nil)
	stack.IncKeyMap(60)
	stack.panicAllNotesOff()
	if len(sender.sent) != 16 {
		t.Fatalf("expected 16 all-notes-off CC messages (one per channel), got %d", len(sender.sent))
	}
	if stack.keyMap[60] != 0 {
		t.Error("expected keyMap cleared by panicAllNotesOff")
	}
}

func TestStopAllKeepsOnlyParts(t *testing.T) {
	stack := NewElapseStack(&fakeMidiSender{}, nil, nil)
	stack.AddElapse(NewNote(1, 1, lpnlib.Left1, 0, 60, 100, 0, 0, 240))
	stack.stopAll()
	for _, e := range stack.population {
		if e.ID().Kind != lpnlib.KindPart {
			t.Errorf("expected stopAll to drop every non-Part object, found %v", e.ID())
		}
	}
	if len(stack.population) != lpnlib.AllPartCount {
		t.Errorf("expected exactly %d parts left after stopAll, got %d", lpnlib.AllPartCount, len(stack.population))
	}
}

func TestIncDecKeyMapReferenceCount(t *testing.T) {
	stack := NewElapseStack(&fakeMidiSender{}, nil, nil)
	if stack.DecKeyMap(60) != KeyStateNothing {
		t.Error("expected KeyStateNothing decrementing an unheld pitch")
	}
	stack.IncKeyMap(60)
	stack.IncKeyMap(60)
	if stack.DecKeyMap(60) != KeyStateMore {
		t.Error("expected KeyStateMore with two holders before decrement")
	}
	if stack.DecKeyMap(60) != KeyStateLast {
		t.Error("expected KeyStateLast on the final release")
	}
}

func TestEnqueueAndPeriodicDrainsMessage(t *testing.T) {
	stack := NewElapseStack(&fakeMidiSender{}, nil, nil)
	stack.Enqueue(message.Ctrl{Kind: message.CtrlStart})
	quit := stack.Periodic(time.Now())
	if quit {
		t.Fatal("expected Periodic not to quit for a CtrlStart message")
	}
	if !stack.playing {
		t.Error("expected playing=true after Periodic drains a CtrlStart message")
	}
}

func TestPollMidiInNilReceiverReturnsFalse(t *testing.T) {
	stack := NewElapseStack(&fakeMidiSender{}, nil, nil)
	_, ok := stack.PollMidiIn()
	if ok {
		t.Error("expected PollMidiIn to report false with no midiIn configured")
	}
}
