// Package trap turns a supervisor call exception into a call of a Go
// handler.  The call number is the immediate of the svc instruction, the
// arguments are the stacked argument registers and the result goes back in
// the stacked r0.
package trap

import (
	"errors"
	"fmt"
	"sync/atomic"

	"awakening/src/boot/memory"
	"awakening/src/hardware/cortexm"
	"awakening/src/lib/trust"
)

type State uint32

const (
	Idle State = iota
	Dispatching
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dispatching:
		return "dispatching"
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}

// ErrNested is a supervisor call made while one is being handled.  The design
// has no way to service it.
var ErrNested = errors.New("trap: nested supervisor call")

// Dispatcher owns the Idle/Dispatching state of one core.
type Dispatcher struct {
	table *Table
	log   *trust.Logger
	state atomic.Uint32

	counts  [256]atomic.Uint32
	invalid atomic.Uint32

	// Invalid handles numbers not in the table.  Defaults to InvalidSyscall.
	Invalid Handler
}

func NewDispatcher(t *Table, log *trust.Logger) *Dispatcher {
	if log == nil {
		log = trust.Default()
	}
	return &Dispatcher{table: t, log: log, Invalid: InvalidSyscall}
}

func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

func (d *Dispatcher) Table() *Table {
	return d.table
}

// Dispatch runs the handler for num and stores its result in slot zero of
// the frame.  It returns the result as well.
func (d *Dispatcher) Dispatch(num uint8, f *Frame) (int32, error) {
	if !d.state.CompareAndSwap(uint32(Idle), uint32(Dispatching)) {
		return 0, ErrNested
	}
	defer d.state.Store(uint32(Idle))

	e, ok := d.table.Lookup(num)
	var r int32
	if ok {
		d.counts[num].Add(1)
		r = e.Handler(e.Argc, f)
	} else {
		d.invalid.Add(1)
		d.log.Warnf("trap: unknown system call %d from pc %#08x", num, f.PC())
		invalid := d.Invalid
		if invalid == nil {
			invalid = InvalidSyscall
		}
		r = invalid(0, f)
	}
	f[SlotR0] = uint32(r)
	return r, nil
}

// Enter services the exception whose frame is stacked at sp.
func (d *Dispatcher) Enter(s memory.Space, sp uint64) error {
	if d.State() != Idle {
		return ErrNested
	}
	f, err := LoadFrame(s, sp)
	if err != nil {
		return err
	}
	num, err := Number(s, f)
	if err != nil {
		return fmt.Errorf("trap: read svc immediate: %w", err)
	}
	r, err := d.Dispatch(num, f)
	if err != nil {
		return err
	}
	return StoreResult(s, sp, r)
}

// Trap is Enter for exception context: anything that goes wrong halts the
// core, since there is nobody to return an error to.
func (d *Dispatcher) Trap(core cortexm.Core, sp uint64) {
	if err := d.Enter(core, sp); err != nil {
		core.Halt(err)
	}
}

// Stat is how often one call number was dispatched.
type Stat struct {
	Num   uint8
	Name  string
	Calls uint32
}

// Stats lists every table entry with its count, then the invalid calls as
// number 255 named "invalid" when there were any.
func (d *Dispatcher) Stats() []Stat {
	var out []Stat
	for _, e := range d.table.Entries() {
		out = append(out, Stat{Num: e.Num, Name: e.Name, Calls: d.counts[e.Num].Load()})
	}
	if n := d.invalid.Load(); n > 0 {
		out = append(out, Stat{Num: 255, Name: "invalid", Calls: n})
	}
	return out
}

func (d *Dispatcher) LogStats() {
	for _, s := range d.Stats() {
		d.log.Statsf("syscall", "%3d %-10s %d", s.Num, s.Name, s.Calls)
	}
}
