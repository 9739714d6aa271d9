package engine

import (
	"testing"

	"github.com/iltempo/loopian/lpnlib"
)

type fakeMidiSender struct {
	sent [][3]byte
}

func (f *fakeMidiSender) Send(status, data1, data2 byte) error {
	f.sent = append(f.sent, [3]byte{status, data1, data2})
	return nil
}

func newTestStack(sender MidiSender) *ElapseStack {
	return NewElapseStack(sender, nil, nil)
}

func TestNoteLifecycleOnThenOff(t *testing.T) {
	sender := &fakeMidiSender{}
	stack := newTestStack(sender)

	n := NewNote(1, 1, lpnlib.Left1, 0, 60, 100, 0, 0, 240)
	stack.AddElapse(n)

	if msr, tick := n.Next(); msr != 0 || tick != 0 {
		t.Fatalf("Next() before first Process = (%d,%d), want (0,0)", msr, tick)
	}

	n.Process(CrntMsrTick{Msr: 0, Tick: 0, TickForOneMsr: lpnlib.TickForOneMeasure}, stack)
	if len(sender.sent) != 1 || sender.sent[0][0] != 0x90 {
		t.Fatalf("expected one note-on after first Process, got %v", sender.sent)
	}
	if sender.sent[0][1] != 60 || sender.sent[0][2] != 100 {
		t.Errorf("note-on pitch/velocity = %d/%d, want 60/100", sender.sent[0][1], sender.sent[0][2])
	}
	if stack.keyMap[60] != 1 {
		t.Errorf("keyMap[60] = %d, want 1 after note-on", stack.keyMap[60])
	}

	nextMsr, nextTick := n.Next()
	if nextMsr != 0 || nextTick != 240 {
		t.Errorf("Next() after note-on = (%d,%d), want (0,240)", nextMsr, nextTick)
	}

	n.Process(CrntMsrTick{Msr: 0, Tick: 240, TickForOneMsr: lpnlib.TickForOneMeasure}, stack)
	if len(sender.sent) != 2 || sender.sent[1][0] != 0x80 {
		t.Fatalf("expected note-off as second send, got %v", sender.sent)
	}
	if stack.keyMap[60] != 0 {
		t.Errorf("keyMap[60] = %d, want 0 after note-off", stack.keyMap[60])
	}
	if !n.DestroyMe() {
		t.Error("expected DestroyMe() true after note-off")
	}
	if msr, _ := n.Next(); msr != lpnlib.Full {
		t.Errorf("Next() after completion msr = %d, want lpnlib.Full", msr)
	}
}

func TestNoteDurationCrossesMeasureBoundary(t *testing.T) {
	sender := &fakeMidiSender{}
	stack := newTestStack(sender)

	tickForOneMsr := int32(1920)
	n := NewNote(1, 1, lpnlib.Left1, 0, 64, 90, 0, tickForOneMsr-100, 300)
	stack.AddElapse(n)
	n.Process(CrntMsrTick{Msr: 0, Tick: tickForOneMsr - 100, TickForOneMsr: tickForOneMsr}, stack)

	nextMsr, nextTick := n.Next()
	if nextMsr != 1 {
		t.Errorf("expected note-off to land in next measure, got msr=%d", nextMsr)
	}
	wantTick := tickForOneMsr - 100 + 300 - tickForOneMsr
	if nextTick != wantTick {
		t.Errorf("nextTick = %d, want %d", nextTick, wantTick)
	}
}

func TestNoteStopBeforeSoundingSkipsOff(t *testing.T) {
	sender := &fakeMidiSender{}
	stack := newTestStack(sender)

	n := NewNote(1, 1, lpnlib.Left1, 0, 60, 100, 0, 0, 240)
	stack.AddElapse(n)
	n.Stop(stack)

	if len(sender.sent) != 0 {
		t.Errorf("expected no MIDI sent when Stop is called before the note ever sounded, got %v", sender.sent)
	}
	if !n.DestroyMe() {
		t.Error("expected DestroyMe() true after Stop")
	}
}

func TestNoteStopWhileSoundingEmitsOff(t *testing.T) {
	sender := &fakeMidiSender{}
	stack := newTestStack(sender)

	n := NewNote(1, 1, lpnlib.Left1, 0, 60, 100, 0, 0, 240)
	stack.AddElapse(n)
	n.Process(CrntMsrTick{Msr: 0, Tick: 0, TickForOneMsr: lpnlib.TickForOneMeasure}, stack)

	n.Stop(stack)
	if len(sender.sent) != 2 || sender.sent[1][0] != 0x80 {
		t.Fatalf("expected Stop to emit note-off while sounding, got %v", sender.sent)
	}
}

func TestNoteSharedPitchSuppressesEarlyOff(t *testing.T) {
	sender := &fakeMidiSender{}
	stack := newTestStack(sender)
	stack.IncKeyMap(60) // a second holder of the same pitch, e.g. a Flow note

	n := NewNote(1, 1, lpnlib.Left1, 0, 60, 100, 0, 0, 240)
	stack.AddElapse(n)
	n.Process(CrntMsrTick{Msr: 0, Tick: 0, TickForOneMsr: lpnlib.TickForOneMeasure}, stack)
	n.Process(CrntMsrTick{Msr: 0, Tick: 240, TickForOneMsr: lpnlib.TickForOneMeasure}, stack)

	for _, msg := range sender.sent {
		if msg[0] == 0x80 {
			t.Errorf("note-off should be suppressed while another holder remains, got %v", sender.sent)
		}
	}
	if stack.keyMap[60] != 1 {
		t.Errorf("keyMap[60] = %d, want 1 (the other holder still present)", stack.keyMap[60])
	}
}
