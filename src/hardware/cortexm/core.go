// Package cortexm describes the parts of an ARMv7-M core the bring-up layer
// touches: the system control block registers, the barrier instructions, the
// ability to call code by address and the diagnostic halt.
package cortexm

import (
	"awakening/src/boot/memory"
)

// System control block, ARMv7-M ARM B3.2.
const (
	ICSR  = 0xE000ED04
	VTOR  = 0xE000ED08
	AIRCR = 0xE000ED0C

	ICSRPendSVSet   = 1 << 28
	ICSRPendSVClear = 1 << 27

	AIRCRVectKey     = 0x05FA << 16
	AIRCRSysResetReq = 1 << 2

	// VTOR ignores the low 7 bits of the table address.
	VectorTableAlign = 128
)

// SCB is the span of the system control block registers modelled here.
var SCB = memory.Span{Start: 0xE000ED00, End: 0xE000ED40}

// Barriers are the ARM memory ordering instructions.
type Barriers interface {
	DMB()
	DSB()
	ISB()
}

// Invoker calls the code at a function address as found in an init array
// or a vector table slot.
type Invoker interface {
	Call(addr uint32) error
}

// Halter stops the core with a diagnostic.  Halt never returns.
type Halter interface {
	Halt(reason error)
}

// Core is everything bring-up needs from the processor.
type Core interface {
	memory.Space
	Barriers
	Invoker
	Halter
}

// ThumbAddr clears the Thumb state bit carried in code pointers.
func ThumbAddr(fn uint32) uint32 {
	return fn &^ 1
}
