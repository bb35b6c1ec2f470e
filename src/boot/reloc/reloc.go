// Package reloc moves a position independent image to where it was actually
// loaded.  All of the load/link address arithmetic of the boot layer lives
// here.
//
// Only load-address-relative fixups (R_ARM_RELATIVE) are understood.  Any
// other relocation kind is a known limitation: it is reported, never guessed
// at, and with Strict set it stops the relocation before anything is written.
package reloc

import (
	"debug/elf"
	"errors"
	"fmt"

	"awakening/src/boot/memory"
	"awakening/src/hardware/cortexm"
	"awakening/src/lib/trust"
)

// Delta is actual load address minus link time address.
type Delta int64

// Apply adds the delta to a 32 bit word, wrapping like the hardware does.
func (d Delta) Apply(word uint32) uint32 {
	return uint32(int64(word) + int64(d))
}

// ComputeDelta derives the delta from where the image is and where it was
// linked to be.
func ComputeDelta(loaded, linked uint64) Delta {
	return Delta(int64(loaded - linked))
}

// RecordSize is the size of one Elf32_Rel record.
const RecordSize = 8

const (
	KindNone     = uint8(elf.R_ARM_NONE)
	KindRelative = uint8(elf.R_ARM_RELATIVE)
)

// Record is one Elf32_Rel entry.
type Record struct {
	Offset uint32
	Info   uint32
}

func (r Record) Kind() uint8 {
	return uint8(r.Info & 0xff)
}

func (r Record) String() string {
	return fmt.Sprintf("%#08x %s", r.Offset, elf.R_ARM(r.Kind()))
}

// Plan is the part of the linker contract the engine needs.  Zero length
// spans are skipped.
type Plan struct {
	GOT         memory.Span
	GOTLoad     uint64
	Rel         memory.Span
	RelLoad     uint64
	Vectors     memory.Span
	VectorsLoad uint64
	// Writable bounds every fixup target.  A fixup outside all of them is
	// refused.
	Writable []memory.Span
}

// Report says what a pass did.
type Report struct {
	Applied      int
	Skipped      int
	Unsupported  int
	VectorsMoved bool
}

var ErrRecordAlignment = errors.New("reloc: relocation region is not a whole number of records")
var ErrVectorAlignment = errors.New("reloc: vector table is not aligned for VTOR")
var ErrNoWritable = errors.New("reloc: no writable memory configured for fixups")

// BoundsError is a fixup whose target is outside writable memory.
type BoundsError struct {
	Index  int
	Record Record
}

func (b *BoundsError) Error() string {
	return fmt.Sprintf("reloc: record %d (%s) targets memory outside writable ram", b.Index, b.Record)
}

// UnsupportedError is a relocation kind the engine does not implement.
type UnsupportedError struct {
	Index  int
	Record Record
}

func (u *UnsupportedError) Error() string {
	return fmt.Sprintf("reloc: record %d has unsupported kind %s", u.Index, elf.R_ARM(u.Record.Kind()))
}

// Engine performs one relocation pass.
type Engine struct {
	Core cortexm.Core
	Log  *trust.Logger
	// Strict refuses to start if any record has an unsupported kind.
	Strict bool
}

// Apply runs the whole pass: GOT and relocation records first, then the vector
// table.  Delta is always explicit; there is no default.
func (e *Engine) Apply(plan Plan, delta Delta) (Report, error) {
	var report Report
	if err := e.Fixups(plan, delta, &report); err != nil {
		return report, err
	}
	moved, err := e.Vectors(plan, delta)
	report.VectorsMoved = moved
	return report, err
}

// Fixups copies the GOT and the relocation records into ram and applies every
// R_ARM_RELATIVE record.
func (e *Engine) Fixups(plan Plan, delta Delta, report *Report) error {
	if err := memory.Copy(e.Core, plan.GOT, plan.GOTLoad); err != nil {
		return fmt.Errorf("reloc: copy got: %w", err)
	}
	if err := memory.Copy(e.Core, plan.Rel, plan.RelLoad); err != nil {
		return fmt.Errorf("reloc: copy relocations: %w", err)
	}
	if plan.Rel.Empty() {
		return nil
	}
	if plan.Rel.Len()%RecordSize != 0 {
		return ErrRecordAlignment
	}
	records, err := e.records(plan.Rel)
	if err != nil {
		return err
	}
	if err := e.check(plan, records); err != nil {
		return err
	}
	for i, r := range records {
		switch r.Kind() {
		case KindRelative:
			if delta == 0 {
				report.Applied++
				continue
			}
			v, err := memory.Read32(e.Core, uint64(r.Offset))
			if err != nil {
				return fmt.Errorf("reloc: record %d: %w", i, err)
			}
			if err := memory.Write32(e.Core, uint64(r.Offset), delta.Apply(v)); err != nil {
				return fmt.Errorf("reloc: record %d: %w", i, err)
			}
			report.Applied++
		case KindNone:
			report.Skipped++
		default:
			report.Unsupported++
			e.logger().Warnf("reloc: skipping record %d: %s not supported", i, r)
		}
	}
	e.logger().Debugf("reloc: delta %#x applied to %d words", int64(delta), report.Applied)
	return nil
}

func (e *Engine) records(rel memory.Span) ([]Record, error) {
	n := int(rel.Len() / RecordSize)
	records := make([]Record, n)
	var buf [RecordSize]byte
	for i := range records {
		if err := e.Core.ReadAt(buf[:], rel.Start+uint64(i*RecordSize)); err != nil {
			return nil, fmt.Errorf("reloc: read record %d: %w", i, err)
		}
		records[i] = Record{
			Offset: memory.Order.Uint32(buf[0:]),
			Info:   memory.Order.Uint32(buf[4:]),
		}
	}
	return records, nil
}

// check validates every record before the first fixup, so a bad table
// applies none of them.
func (e *Engine) check(plan Plan, records []Record) error {
	for i, r := range records {
		switch r.Kind() {
		case KindRelative:
			if len(plan.Writable) == 0 {
				return ErrNoWritable
			}
			if !inAny(plan.Writable, uint64(r.Offset), 4) {
				return &BoundsError{Index: i, Record: r}
			}
		case KindNone:
		default:
			if e.Strict {
				return &UnsupportedError{Index: i, Record: r}
			}
		}
	}
	return nil
}

// Vectors moves the interrupt vector table when the image is not where it was
// linked.  Slot zero is the initial stack pointer, an absolute value, and is
// copied unchanged.  With a zero delta nothing is touched.
func (e *Engine) Vectors(plan Plan, delta Delta) (bool, error) {
	if delta == 0 || plan.Vectors.Empty() {
		return false, nil
	}
	if plan.Vectors.Start%cortexm.VectorTableAlign != 0 {
		return false, fmt.Errorf("%w: %#x", ErrVectorAlignment, plan.Vectors.Start)
	}
	if err := memory.Copy(e.Core, plan.Vectors, plan.VectorsLoad); err != nil {
		return false, fmt.Errorf("reloc: copy vectors: %w", err)
	}
	slots := plan.Vectors.Len() / 4
	for i := uint64(1); i < slots; i++ {
		addr := plan.Vectors.Start + i*4
		v, err := memory.Read32(e.Core, addr)
		if err != nil {
			return false, err
		}
		if v == 0 {
			continue // reserved slot
		}
		if err := memory.Write32(e.Core, addr, delta.Apply(v)); err != nil {
			return false, err
		}
	}
	if err := memory.Write32(e.Core, cortexm.VTOR, uint32(plan.Vectors.Start)); err != nil {
		return false, fmt.Errorf("reloc: set vtor: %w", err)
	}
	e.Core.DSB()
	e.Core.ISB()
	e.logger().Debugf("reloc: vector table now at %#08x (%d slots)", plan.Vectors.Start, slots)
	return true, nil
}

func (e *Engine) logger() *trust.Logger {
	if e.Log == nil {
		return trust.Default()
	}
	return e.Log
}

func inAny(spans []memory.Span, addr, n uint64) bool {
	for _, s := range spans {
		if s.Contains(addr, n) {
			return true
		}
	}
	return false
}
