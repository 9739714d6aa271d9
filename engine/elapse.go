package engine

import "github.com/iltempo/loopian/lpnlib"

// Elapse is the capability every schedulable object in the population
// implements: something with an identity, a priority, a next scheduled
// (measure, tick), and start/stop/process/destroy hooks. Go has no trait
// objects sharing a mutable back-reference the way original_source's
// Rc<RefCell<dyn Elapse>> does; the population here is just
// []Elapse, and an object reaches back into the stack (to spawn children,
// read another part's chord, or emit MIDI) through the *ElapseStack handed
// to Process/Stop, never through a stored back-pointer.
type Elapse interface {
	ID() lpnlib.ElapseId
	Priority() int
	// Next returns the (measure, tick) this object is next due to run at.
	// (lpnlib.Full, 0) means "never again" — DestroyMe should also be true
	// by then, since ElapseStack only consults Next while an object is
	// still in the population.
	Next() (msr, tick int32)
	Start()
	Stop(stack *ElapseStack)
	Process(crnt CrntMsrTick, stack *ElapseStack)
	DestroyMe() bool
}
