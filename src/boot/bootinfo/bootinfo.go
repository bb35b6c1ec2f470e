// Package bootinfo is the descriptor of the machine handed from bring-up to
// the kernel.  It is written once, before the kernel entry, and only read
// afterwards.
package bootinfo

import (
	"errors"
	"fmt"
	"strings"
)

// Magic marks a valid descriptor.  Anything else is a malformed environment.
const Magic uint32 = 0x0D34D60D // 221566477

const (
	// Version1 is the layout without processor identification.
	Version1 uint32 = 1
	// Version2 adds the implementer and variant strings.
	Version2 uint32 = 2
	// Current is what this package writes.
	Current = Version2
)

// Capacity is the fixed number of memory map slots.
const Capacity = 8

// Multiboot memory types.
const (
	RegionAvailable uint32 = 1
	RegionReserved  uint32 = 2
	RegionACPI      uint32 = 3
	RegionNVS       uint32 = 4
	RegionBadRAM    uint32 = 5
)

// Unknown is the identity a board that does not say otherwise reports.
const Unknown = "Unknown"

// MemoryRegion is layout compatible with multiboot_memory_map_t.
type MemoryRegion struct {
	Size        uint32 // byte length of this entry, always EntrySize
	BaseAddress uint64
	Length      uint64
	RegionType  uint32
}

func (m MemoryRegion) End() uint64 {
	return m.BaseAddress + m.Length
}

func (m MemoryRegion) String() string {
	return fmt.Sprintf("%#010x-%#010x type %d", m.BaseAddress, m.End(), m.RegionType)
}

// InitProgramDescriptor locates the init program embedded in the boot image.
// ImageStart is always an absolute address.
type InitProgramDescriptor struct {
	ImageStart  uint64
	ImageLength uint64
	EntryOffset uint64
}

func (d InitProgramDescriptor) Present() bool {
	return d.ImageLength != 0
}

// Entry is the absolute address of the init program's first instruction.
func (d InitProgramDescriptor) Entry() uint64 {
	return d.ImageStart + d.EntryOffset
}

type BootInfo struct {
	Magic       uint32
	Version     uint32
	Implementer string // empty when absent
	Variant     string // empty when absent
	Regions     [Capacity]MemoryRegion
	RegionCount uint64
	Init        InitProgramDescriptor
}

var ErrBadMagic = errors.New("bootinfo: bad magic")
var ErrBadVersion = errors.New("bootinfo: unsupported version")
var ErrTooManyRegions = errors.New("bootinfo: region count exceeds capacity")
var ErrRegionsFull = errors.New("bootinfo: memory map is full")
var ErrShort = errors.New("bootinfo: buffer too short")
var ErrNameTooLong = errors.New("bootinfo: identification string too long")

// New returns a zeroed descriptor stamped with the magic and current version.
func New() *BootInfo {
	return &BootInfo{
		Magic:       Magic,
		Version:     Current,
		Implementer: Unknown,
		Variant:     Unknown,
	}
}

// AddRegion appends one memory map entry.
func (b *BootInfo) AddRegion(base, length uint64, regionType uint32) error {
	if b.RegionCount >= Capacity {
		return ErrRegionsFull
	}
	b.Regions[b.RegionCount] = MemoryRegion{
		Size:        EntrySize,
		BaseAddress: base,
		Length:      length,
		RegionType:  regionType,
	}
	b.RegionCount++
	return nil
}

// Memory returns the valid part of the memory map.  Slots past RegionCount are
// never exposed.
func (b *BootInfo) Memory() []MemoryRegion {
	n := b.RegionCount
	if n > Capacity {
		n = Capacity
	}
	return b.Regions[:n]
}

// Available sums the length of all available regions.
func (b *BootInfo) Available() uint64 {
	var total uint64
	for _, r := range b.Memory() {
		if r.RegionType == RegionAvailable {
			total += r.Length
		}
	}
	return total
}

// Validate checks the structural invariants only; the contents of the memory
// map (overlap, ordering) are the board's business.
func (b *BootInfo) Validate() error {
	if b.Magic != Magic {
		return fmt.Errorf("%w: %#x", ErrBadMagic, b.Magic)
	}
	if b.Version == 0 {
		return fmt.Errorf("%w: %d", ErrBadVersion, b.Version)
	}
	if b.RegionCount > Capacity {
		return fmt.Errorf("%w: %d", ErrTooManyRegions, b.RegionCount)
	}
	return nil
}

func (b *BootInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "bootinfo v%d magic %#x", b.Version, b.Magic)
	if b.Implementer != "" || b.Variant != "" {
		fmt.Fprintf(&sb, " %s %s", b.Implementer, b.Variant)
	}
	for i, r := range b.Memory() {
		fmt.Fprintf(&sb, "\n  mmap[%d] %s", i, r)
	}
	if b.Init.Present() {
		fmt.Fprintf(&sb, "\n  init %#x+%#x entry %#x", b.Init.ImageStart, b.Init.ImageLength, b.Init.Entry())
	}
	return sb.String()
}
