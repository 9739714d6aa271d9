package midi

import (
	"testing"

	"gitlab.com/gomidi/midi/v2"
)

// TestListPorts tests that ListPorts returns without error
// Note: We can't assert specific ports since it depends on the system
func TestListPorts(t *testing.T) {
	ports, err := ListPorts()
	if err != nil {
		t.Errorf("ListPorts() unexpected error: %v", err)
	}

	// ports might be empty if no MIDI devices connected
	// Just verify it returns a slice (even if empty)
	if ports == nil {
		t.Error("ListPorts() returned nil instead of empty slice")
	}
}

// TestOpenInvalidPort tests opening an invalid port index
func TestOpenInvalidPort(t *testing.T) {
	// Try to open a port that definitely doesn't exist
	_, err := Open(9999)
	if err == nil {
		t.Error("Open(9999) should return error for invalid port index")
	}
}

// TestNoteOnOffBounds tests note and velocity boundaries
// We test with a mock by checking the function signatures work
func TestNoteOnOffBounds(t *testing.T) {
	// We can't actually test MIDI output without a device
	// But we can verify the function signatures are correct
	// by checking the types compile

	// This test just ensures the API is correct
	var o *Output
	if o != nil {
		// These calls would work if we had a real output
		_ = o.NoteOn(0, 60, 100)
		_ = o.NoteOff(0, 60)
		_ = o.Close()
	}
}

// TestOutputStructure verifies Output struct has required fields
func TestOutputStructure(t *testing.T) {
	// Verify Output type exists and has expected methods
	var o *Output

	// Check that methods exist (compile-time check)
	_ = func(channel, note, velocity uint8) error { return o.NoteOn(channel, note, velocity) }
	_ = func(channel, note uint8) error { return o.NoteOff(channel, note) }
	_ = func() error { return o.Close() }
}

// TestListPortsReturnType verifies ListPorts returns correct types
func TestListPortsReturnType(t *testing.T) {
	ports, err := ListPorts()

	// Verify return types
	if err != nil {
		// Error is acceptable (e.g., no MIDI driver available)
		return
	}

	// Verify we get a string slice
	for i, port := range ports {
		if port == "" {
			t.Errorf("Port %d has empty name", i)
		}
	}
}

// TestControlChangeSignature verifies ControlChange exists with the
// expected signature (compile-time check; no real output to send through).
func TestControlChangeSignature(t *testing.T) {
	var o *Output
	if o != nil {
		_ = o.ControlChange(0, 0x40, 0x7F)
	}
}

// TestSendUnsupportedStatus verifies Send rejects a status byte whose high
// nibble isn't note-on/note-off/control-change.
func TestSendUnsupportedStatus(t *testing.T) {
	o := &Output{}
	if err := o.Send(0xF0, 0, 0); err == nil {
		t.Error("Send with an unsupported status byte should return an error")
	}
}

// TestListInPorts tests that ListInPorts returns without error, mirroring
// TestListPorts for the output side.
func TestListInPorts(t *testing.T) {
	ports, err := ListInPorts()
	if err != nil {
		t.Errorf("ListInPorts() unexpected error: %v", err)
	}
	if ports == nil {
		t.Error("ListInPorts() returned nil instead of empty slice")
	}
}

// TestOpenInputInvalidPort tests opening an invalid input port index.
func TestOpenInputInvalidPort(t *testing.T) {
	_, err := OpenInput(9999)
	if err == nil {
		t.Error("OpenInput(9999) should return error for invalid port index")
	}
}

// TestInputPollEmpty verifies Poll on a freshly constructed Input (no
// dispatch callback wired, no real port) reports nothing buffered.
func TestInputPollEmpty(t *testing.T) {
	in := &Input{ch: make(chan RawMessage, 4)}
	_, ok := in.Poll()
	if ok {
		t.Error("Poll() on an empty Input should return ok=false")
	}
}

// TestInputPollDrainsBufferedMessages verifies Poll returns buffered
// messages in FIFO order and reports empty once drained.
func TestInputPollDrainsBufferedMessages(t *testing.T) {
	in := &Input{ch: make(chan RawMessage, 4)}
	in.ch <- RawMessage{Status: 0x90, Data1: 60, Data2: 100}
	in.ch <- RawMessage{Status: 0x80, Data1: 60, Data2: 0}

	first, ok := in.Poll()
	if !ok || first.Status != 0x90 {
		t.Fatalf("first Poll() = %+v, %v; want note-on first", first, ok)
	}
	second, ok := in.Poll()
	if !ok || second.Status != 0x80 {
		t.Fatalf("second Poll() = %+v, %v; want note-off second", second, ok)
	}
	if _, ok := in.Poll(); ok {
		t.Error("expected Poll() to report empty after draining both messages")
	}
}

// TestInputFlushDiscardsBuffered verifies Flush empties the buffer without
// Poll ever observing the discarded messages.
func TestInputFlushDiscardsBuffered(t *testing.T) {
	in := &Input{ch: make(chan RawMessage, 4)}
	in.ch <- RawMessage{Status: 0x90, Data1: 60, Data2: 100}
	in.ch <- RawMessage{Status: 0x90, Data1: 64, Data2: 100}

	in.Flush()
	if _, ok := in.Poll(); ok {
		t.Error("expected Poll() to report empty after Flush")
	}
}

// TestInputDispatchConvertsNoteOnOff exercises the private dispatch callback
// directly against synthesized gomidi messages, the same way engine.Flow
// will observe them via Poll.
func TestInputDispatchConvertsNoteOnOff(t *testing.T) {
	in := &Input{ch: make(chan RawMessage, 4)}

	in.dispatch(midi.NoteOn(2, 60, 100), 0)
	msg, ok := in.Poll()
	if !ok {
		t.Fatal("expected a RawMessage after dispatching a NoteOn")
	}
	if msg.Status != 0x92 || msg.Data1 != 60 || msg.Data2 != 100 {
		t.Errorf("dispatch(NoteOn) = %+v, want {0x92 60 100}", msg)
	}

	in.dispatch(midi.NoteOff(2, 60), 0)
	msg, ok = in.Poll()
	if !ok {
		t.Fatal("expected a RawMessage after dispatching a NoteOff")
	}
	if msg.Status != 0x82 || msg.Data1 != 60 {
		t.Errorf("dispatch(NoteOff) = %+v, want status 0x82 key 60", msg)
	}
}

// TestInputDispatchDropsWhenBufferFull verifies the channel is
// drop-on-full rather than blocking the dispatch callback.
func TestInputDispatchDropsWhenBufferFull(t *testing.T) {
	in := &Input{ch: make(chan RawMessage, 1)}
	in.dispatch(midi.NoteOn(0, 60, 100), 0)
	in.dispatch(midi.NoteOn(0, 61, 100), 0) // buffer full, must not block or panic

	msg, ok := in.Poll()
	if !ok || msg.Data1 != 60 {
		t.Errorf("expected only the first message to have been kept, got %+v, %v", msg, ok)
	}
}
