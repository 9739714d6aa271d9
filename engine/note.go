package engine

import "github.com/iltempo/loopian/lpnlib"

type noteState int

const (
	noteStatePendingOn noteState = iota
	noteStatePendingOff
	noteStateDone
)

// Note is a single scheduled MIDI note: it visits the dispatch queue once to
// emit note-on, then a second time (at firstTick+duration) to emit note-off,
// per spec.md §4.3. It never reschedules itself a third time.
type Note struct {
	id       lpnlib.ElapseId
	part     int
	channel  uint8
	pitch    uint8
	velocity uint8

	firstMsr, firstTick int32
	duration            int32

	state      noteState
	nextMsr    int32
	nextTick   int32
	destroy    bool
}

// NewNote constructs a Note due to sound at (msr, tick) for duration ticks.
// part/channel route the MIDI output; sid is this note's slot among its
// owner's siblings (used only for identity/debugging, not for lookup).
func NewNote(pid, sid uint32, part int, channel, pitch, velocity uint8, msr, tick, duration int32) *Note {
	return &Note{
		id:        lpnlib.ElapseId{Pid: pid, Sid: sid, Kind: lpnlib.KindNote},
		part:      part,
		channel:   channel,
		pitch:     pitch,
		velocity:  velocity,
		firstMsr:  msr,
		firstTick: tick,
		duration:  duration,
		state:     noteStatePendingOn,
		nextMsr:   msr,
		nextTick:  tick,
	}
}

func (n *Note) ID() lpnlib.ElapseId { return n.id }
func (n *Note) Priority() int       { return lpnlib.PriNote }

func (n *Note) Next() (int32, int32) {
	if n.state == noteStateDone {
		return lpnlib.Full, 0
	}
	return n.nextMsr, n.nextTick
}

func (n *Note) Start() {}

// Stop releases this note immediately: if it has already sounded and not yet
// been released, it emits note-off now (decrementing key_map as usual)
// instead of waiting for its natural scheduled release.
func (n *Note) Stop(stack *ElapseStack) {
	if n.state == noteStatePendingOff {
		n.release(stack)
	}
	n.state = noteStateDone
	n.destroy = true
}

func (n *Note) DestroyMe() bool { return n.destroy }

func (n *Note) Process(crnt CrntMsrTick, stack *ElapseStack) {
	switch n.state {
	case noteStatePendingOn:
		stack.MidiOut(0x90|n.channel, n.pitch, n.velocity)
		stack.IncKeyMap(n.pitch)
		n.nextMsr = n.firstMsr
		n.nextTick = n.firstTick + n.duration
		for n.nextTick >= crnt.TickForOneMsr {
			n.nextTick -= crnt.TickForOneMsr
			n.nextMsr++
		}
		n.state = noteStatePendingOff
	case noteStatePendingOff:
		n.release(stack)
		n.state = noteStateDone
		n.destroy = true
	}
}

func (n *Note) release(stack *ElapseStack) {
	if stack.DecKeyMap(n.pitch) != KeyStateMore {
		stack.MidiOut(0x80|n.channel, n.pitch, 0)
	}
}
