// Package semihosting talks to an attached debugger or QEMU through the ARM
// semihosting interface.  On Cortex-M the request is `bkpt 0xab` with the
// operation in r0 and a parameter (value or pointer to a block) in r1.
//
// Only the instruction itself is target specific; building the parameter
// blocks is plain Go so the host can check them.
package semihosting

import (
	"encoding/binary"
)

type SemiHostingOp uint32

const (
	SemiHostOpWrite0 SemiHostingOp = 0x04
	SemiHostOpClock  SemiHostingOp = 0x10
	SemiHostOpExit   SemiHostingOp = 0x18
	// SemiHostOpExitExtended takes the {reason, code} block on both AArch32
	// and AArch64; plain SemiHostOpExit only does on AArch64.
	SemiHostOpExitExtended SemiHostingOp = 0x20
)

type SemihostingStopCode uint32

const (
	SemihostingStopBreakpoint          SemihostingStopCode = 0x20020
	SemihostingStopWatchpoint          SemihostingStopCode = 0x20021
	SemihostingStopStepComplete        SemihostingStopCode = 0x20022
	SemihostingStopRuntimeErrorUnknown SemihostingStopCode = 0x20023
	SemihostingStopInternalError       SemihostingStopCode = 0x20024
	SemihostingStopUserInterruption    SemihostingStopCode = 0x20025
	SemihostingStopApplicationExit     SemihostingStopCode = 0x20026
	SemihostingStopStackOverflow       SemihostingStopCode = 0x20027
	SemihostingStopDivisionByZero      SemihostingStopCode = 0x20028
	SemihostingStopOSSpecific          SemihostingStopCode = 0x20029
)

// Caller issues one semihosting request.  The target implementation executes
// the breakpoint; tests record the requests.
type Caller interface {
	Call(op SemiHostingOp, param []byte) uint32
}

// ExitBlock builds the two word parameter block of SYS_EXIT_EXTENDED.
func ExitBlock(reason SemihostingStopCode, code uint32) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:], uint32(reason))
	binary.LittleEndian.PutUint32(b[4:], code)
	return b
}

// CString is the NUL terminated form SYS_WRITE0 expects.
func CString(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

// Write0 prints s on the debugger console.
func Write0(c Caller, s string) {
	c.Call(SemiHostOpWrite0, CString(s))
}

// Exit ends the session.  A zero code reports a normal application exit,
// anything else a run time error.
func Exit(c Caller, code uint32) {
	reason := SemihostingStopApplicationExit
	if code != 0 {
		reason = SemihostingStopRuntimeErrorUnknown
	}
	c.Call(SemiHostOpExitExtended, ExitBlock(reason, code))
}

// Clock returns centiseconds since the session started.
func Clock(c Caller) uint32 {
	return c.Call(SemiHostOpClock, nil)
}

// Writer adapts a Caller to io.Writer so it can be a trust sink.
type Writer struct {
	C Caller
}

func (w Writer) Write(p []byte) (int, error) {
	w.C.Call(SemiHostOpWrite0, CString(string(p)))
	return len(p), nil
}
