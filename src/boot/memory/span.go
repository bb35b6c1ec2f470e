// Package memory describes the address space the bring-up code works on.
// Everything that touches memory before the kernel runs goes through a Space,
// so the same code drives the real core (unsafe pointers) and the host
// simulator (byte slices).
package memory

import (
	"encoding/binary"
	"fmt"
)

// Span is a half open address range [Start, End) as handed out by the link
// step.  Start == End is an empty span and is always legal.
type Span struct {
	Start uint64 `yaml:"start"`
	End   uint64 `yaml:"end"`
}

func NewSpan(start, length uint64) Span {
	return Span{Start: start, End: start + length}
}

func (s Span) Len() uint64 {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

func (s Span) Empty() bool {
	return s.Len() == 0
}

// Valid reports whether the span is not inverted.
func (s Span) Valid() bool {
	return s.End >= s.Start
}

// Contains reports whether [addr, addr+n) lies inside s.
func (s Span) Contains(addr, n uint64) bool {
	if addr < s.Start || addr+n < addr {
		return false
	}
	return addr+n <= s.End
}

func (s Span) String() string {
	return fmt.Sprintf("[%#08x,%#08x)", s.Start, s.End)
}

// Order is the byte order of the target.  Cortex-M is always little endian.
var Order = binary.LittleEndian
