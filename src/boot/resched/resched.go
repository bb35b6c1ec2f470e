// Package resched asks for a context switch.  The switch itself happens
// later, when PendSV (the lowest priority system exception) gets to run, and
// is done by a Switcher supplied by the kernel.
package resched

import (
	"fmt"

	"awakening/src/boot/memory"
	"awakening/src/hardware/cortexm"
	"awakening/src/lib/trust"
)

// Context is a suspended execution as the switcher sees it.  This package
// only passes it along.
type Context uintptr

// Switcher picks what runs next.
type Switcher interface {
	Switch(current Context) Context
}

// SwitchFunc adapts a function to Switcher.
type SwitchFunc func(current Context) Context

func (f SwitchFunc) Switch(current Context) Context {
	return f(current)
}

// Trigger pends PendSV.
type Trigger struct {
	Core cortexm.Core
}

// Request pends the switch exception.  Requests made before it runs
// collapse into one switch, and a request cannot be taken back.
func (t Trigger) Request() error {
	if err := memory.Write32(t.Core, cortexm.ICSR, cortexm.ICSRPendSVSet); err != nil {
		return fmt.Errorf("resched: pend: %w", err)
	}
	t.Core.ISB()
	t.Core.DSB()
	return nil
}

// Entry is what the PendSV handler calls with the context it saved.
type Entry struct {
	Switcher Switcher
	Log      *trust.Logger

	switches uint64
}

// PendSV hands the current context to the switcher and returns the one to
// resume.  With no switcher the current context simply continues.
func (e *Entry) PendSV(current Context) Context {
	e.switches++
	if e.Switcher == nil {
		return current
	}
	next := e.Switcher.Switch(current)
	if e.Log != nil {
		e.Log.Debugf("resched: %#x -> %#x", uintptr(current), uintptr(next))
	}
	return next
}

// Switches counts PendSV entries.
func (e *Entry) Switches() uint64 {
	return e.switches
}
