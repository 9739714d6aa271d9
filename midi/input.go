package midi

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// RawMessage is the (status, data1, data2) triple engine.Flow consumes from
// live MIDI input — the mirror image of Output.Send's parameters.
type RawMessage struct {
	Status byte
	Data1  byte
	Data2  byte
}

// Input listens on a MIDI input port and deposits incoming channel voice
// messages into a bounded channel. Engine code polls it non-blockingly
// (Poll) once per tick rather than blocking on it, so a burst of input
// never stalls the scheduler; once the buffer is full, further messages
// are dropped rather than backing up the driver's callback goroutine.
type Input struct {
	port drivers.In
	stop func()
	ch   chan RawMessage
}

// ListInPorts returns the available MIDI input port names.
func ListInPorts() ([]string, error) {
	ports := midi.GetInPorts()
	names := make([]string, len(ports))
	for i, port := range ports {
		names[i] = port.String()
	}
	return names, nil
}

// OpenInput opens portIndex and starts listening for channel voice
// messages in the background.
func OpenInput(portIndex int) (*Input, error) {
	port, err := midi.InPort(portIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to get MIDI input port %d: %w", portIndex, err)
	}

	in := &Input{port: port, ch: make(chan RawMessage, 256)}
	stop, err := midi.ListenTo(port, in.dispatch)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on MIDI input port %d: %w", portIndex, err)
	}
	in.stop = stop
	return in, nil
}

func (in *Input) dispatch(msg midi.Message, _ int32) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		select {
		case in.ch <- RawMessage{Status: 0x90 | ch, Data1: key, Data2: vel}:
		default:
		}
	case msg.GetNoteOff(&ch, &key, &vel):
		select {
		case in.ch <- RawMessage{Status: 0x80 | ch, Data1: key, Data2: vel}:
		default:
		}
	case msg.GetControlChange(&ch, &key, &vel):
		select {
		case in.ch <- RawMessage{Status: 0xB0 | ch, Data1: key, Data2: vel}:
		default:
		}
	}
}

// Poll returns the next buffered message without blocking.
func (in *Input) Poll() (RawMessage, bool) {
	select {
	case msg := <-in.ch:
		return msg, true
	default:
		return RawMessage{}, false
	}
}

// Flush drains any buffered input, discarding it (e.g. on transport stop).
func (in *Input) Flush() {
	for {
		select {
		case <-in.ch:
		default:
			return
		}
	}
}

// Close stops listening and closes the underlying port.
func (in *Input) Close() error {
	if in.stop != nil {
		in.stop()
	}
	return in.port.Close()
}
