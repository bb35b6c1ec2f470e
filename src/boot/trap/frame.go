package trap

import (
	"fmt"

	"awakening/src/boot/memory"
)

// Frame is the exception frame the core stacks on entry, lowest address
// first.
type Frame [8]uint32

const (
	SlotR0 = iota
	SlotR1
	SlotR2
	SlotR3
	SlotR12
	SlotLR
	SlotPC
	SlotPSR
)

const FrameSize = 8 * 4

func (f *Frame) R0() uint32  { return f[SlotR0] }
func (f *Frame) R1() uint32  { return f[SlotR1] }
func (f *Frame) R2() uint32  { return f[SlotR2] }
func (f *Frame) R3() uint32  { return f[SlotR3] }
func (f *Frame) R12() uint32 { return f[SlotR12] }
func (f *Frame) LR() uint32  { return f[SlotLR] }
func (f *Frame) PC() uint32  { return f[SlotPC] }
func (f *Frame) PSR() uint32 { return f[SlotPSR] }

// Arg is argument register i (0 to 3).
func (f *Frame) Arg(i int) uint32 {
	if i < 0 || i > SlotR3 {
		return 0
	}
	return f[i]
}

func (f *Frame) String() string {
	return fmt.Sprintf("r0=%08x r1=%08x r2=%08x r3=%08x r12=%08x lr=%08x pc=%08x xpsr=%08x",
		f[SlotR0], f[SlotR1], f[SlotR2], f[SlotR3], f[SlotR12], f[SlotLR], f[SlotPC], f[SlotPSR])
}

// LoadFrame reads the frame stacked at sp.
func LoadFrame(s memory.Space, sp uint64) (*Frame, error) {
	var buf [FrameSize]byte
	if err := s.ReadAt(buf[:], sp); err != nil {
		return nil, fmt.Errorf("trap: read frame: %w", err)
	}
	f := new(Frame)
	for i := range f {
		f[i] = memory.Order.Uint32(buf[i*4:])
	}
	return f, nil
}

// StoreResult writes v into the stacked r0, which the caller sees as the
// return value after exception return.
func StoreResult(s memory.Space, sp uint64, v int32) error {
	return memory.Write32(s, sp+SlotR0*4, uint32(v))
}

// Number decodes the immediate of the `svc #imm8` that trapped.  The stacked
// pc is the instruction after it, and the immediate is the low byte of the
// little endian Thumb encoding.  The value is not range checked.
func Number(s memory.Space, f *Frame) (uint8, error) {
	return memory.Read8(s, uint64(f.PC())-2)
}
