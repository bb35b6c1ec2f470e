//go:build tinygo && cortexm

package semihosting

import (
	"device/arm"
	"unsafe"
)

// Breakpoint is the target Caller.
type Breakpoint struct{}

func (Breakpoint) Call(op SemiHostingOp, param []byte) uint32 {
	var ptr uintptr
	if len(param) > 0 {
		ptr = uintptr(unsafe.Pointer(&param[0]))
	}
	var r uint32
	arm.AsmFull(`
		mov r0, {op}
		mov r1, {param}
		bkpt 0xab
		mov {r}, r0
	`, map[string]interface{}{"op": uint32(op), "param": ptr, "r": &r})
	return r
}
