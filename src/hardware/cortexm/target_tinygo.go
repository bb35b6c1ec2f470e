//go:build tinygo && cortexm

package cortexm

import (
	"device/arm"
	"runtime/volatile"
	"unsafe"

	"awakening/src/lib/semihosting"
)

// callAddr is in asm/startup_cortexm.S: `blx r0; bx lr`.
//
//export awakening_call_addr
func callAddr(addr uintptr)

// Target is the Core of the chip the image is running on.  Every access is
// volatile; word sized aligned accesses are issued as single word operations
// so the system control block sees what the architecture requires.
type Target struct {
	// Semihost, when set, receives the halt diagnostic.
	Semihost semihosting.Caller
	// Fault is called once before halting, e.g. to light a fault LED.
	Fault func(reason error)
}

func (t *Target) ReadAt(p []byte, addr uint64) error {
	if len(p) == 4 && addr%4 == 0 {
		v := volatile.LoadUint32((*uint32)(unsafe.Pointer(uintptr(addr))))
		p[0], p[1], p[2], p[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
		return nil
	}
	for i := range p {
		p[i] = volatile.LoadUint8((*uint8)(unsafe.Pointer(uintptr(addr) + uintptr(i))))
	}
	return nil
}

func (t *Target) WriteAt(p []byte, addr uint64) error {
	if len(p) == 4 && addr%4 == 0 {
		v := uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16 | uint32(p[3])<<24
		volatile.StoreUint32((*uint32)(unsafe.Pointer(uintptr(addr))), v)
		return nil
	}
	for i := range p {
		volatile.StoreUint8((*uint8)(unsafe.Pointer(uintptr(addr)+uintptr(i))), p[i])
	}
	return nil
}

func (t *Target) DMB() { arm.Asm("dmb") }
func (t *Target) DSB() { arm.Asm("dsb") }
func (t *Target) ISB() { arm.Asm("isb") }

func (t *Target) Call(addr uint32) error {
	callAddr(uintptr(addr))
	return nil
}

func (t *Target) Halt(reason error) {
	arm.Asm("cpsid i")
	if t.Fault != nil {
		t.Fault(reason)
	}
	if t.Semihost != nil && reason != nil {
		semihosting.Write0(t.Semihost, "halt: "+reason.Error()+"\n")
		semihosting.Exit(t.Semihost, 1)
	}
	for {
		arm.Asm("wfi")
	}
}
