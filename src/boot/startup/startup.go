// Package startup takes the core from reset to the kernel entry point.  It
// prepares the memory image (bss, data, relocation), runs the global
// constructors, asks the board to describe itself and hands the resulting
// boot information to the kernel.  Nothing here returns to the reset handler:
// any failure is a diagnostic halt.
package startup

import (
	"errors"
	"fmt"

	"awakening/src/boot/bootinfo"
	"awakening/src/boot/memory"
	"awakening/src/boot/reloc"
	"awakening/src/hardware/cortexm"
	"awakening/src/lib/trust"
)

// KernelEntry is the kernel's init function.  It is not expected to return.
type KernelEntry func(bi *bootinfo.BootInfo)

var ErrKernelReturned = errors.New("startup: kernel entry returned")
var ErrNoDelta = errors.New("startup: relocation requested without a load delta")
var ErrAlreadyPrepared = errors.New("startup: image already prepared")

// Config holds the choices made when the image was built.
type Config struct {
	// Relocate enables the GOT/vector fixups.  It should match
	// PositionIndependent.
	Relocate bool
	// Delta is load minus link address.  It must be given whenever Relocate
	// is set, even when it is zero.
	Delta *reloc.Delta
	// Strict refuses relocation tables with kinds the engine cannot apply.
	Strict bool
	Log    *trust.Logger
}

// DefaultConfig relocates exactly when the image was built position
// independent.
func DefaultConfig() Config {
	return Config{Relocate: PositionIndependent}
}

// WithDelta returns a copy of c relocating by d.
func (c Config) WithDelta(d reloc.Delta) Config {
	c.Delta = &d
	return c
}

// Sequencer runs the bring-up steps once.
type Sequencer struct {
	Core   cortexm.Core
	Board  bootinfo.Board
	Layout Layout
	Config Config

	prepared bool
	report   reloc.Report
}

// Run prepares the image, enters the kernel and halts if it ever comes back.
// It does not return.
func (s *Sequencer) Run(kernel KernelEntry) {
	bi, err := s.Prepare()
	if err != nil {
		s.Core.Halt(err)
		return
	}
	s.logger().Debugf("startup: entering kernel")
	kernel(bi)
	s.Core.Halt(ErrKernelReturned)
}

// Prepare runs everything up to the kernel call, in order:
//
//	zero bss, copy data, relocate, constructors, boot information, barrier
//
// It can only be done once per reset.
func (s *Sequencer) Prepare() (*bootinfo.BootInfo, error) {
	if s.prepared {
		return nil, ErrAlreadyPrepared
	}
	s.prepared = true
	l := s.Layout

	if err := memory.Zero(s.Core, l.BSS); err != nil {
		return nil, fmt.Errorf("startup: zero bss: %w", err)
	}
	if err := memory.Copy(s.Core, l.Data, l.DataLoad); err != nil {
		return nil, fmt.Errorf("startup: copy data: %w", err)
	}
	if s.Config.Relocate {
		if err := s.relocate(); err != nil {
			return nil, err
		}
	}
	if err := s.callTable(l.InitArray); err != nil {
		return nil, fmt.Errorf("startup: constructors: %w", err)
	}
	bi, err := s.describe()
	if err != nil {
		return nil, err
	}
	s.Core.DSB()
	return bi, nil
}

// Relocation is what the relocation pass did, zero if it did not run.
func (s *Sequencer) Relocation() reloc.Report {
	return s.report
}

// RunDestructors walks the fini array.  Only a kernel that wants to shut
// down in an orderly way calls this.
func (s *Sequencer) RunDestructors() error {
	if err := s.callTable(s.Layout.FiniArray); err != nil {
		return fmt.Errorf("startup: destructors: %w", err)
	}
	return nil
}

func (s *Sequencer) relocate() error {
	if s.Config.Delta == nil {
		return ErrNoDelta
	}
	e := &reloc.Engine{Core: s.Core, Log: s.logger(), Strict: s.Config.Strict}
	report, err := e.Apply(s.Layout.Plan(), *s.Config.Delta)
	s.report = report
	if err != nil {
		return fmt.Errorf("startup: relocate: %w", err)
	}
	if report.Unsupported > 0 {
		s.logger().Warnf("startup: %d relocations left unapplied", report.Unsupported)
	}
	return nil
}

// callTable calls every function pointer in table order.  Zero and all-ones
// entries are padding the toolchain may leave behind.
func (s *Sequencer) callTable(table memory.Span) error {
	for addr := table.Start; addr+4 <= table.End; addr += 4 {
		fn, err := memory.Read32(s.Core, addr)
		if err != nil {
			return err
		}
		if fn == 0 || fn == 0xffff_ffff {
			continue
		}
		if err := s.Core.Call(fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequencer) describe() (*bootinfo.BootInfo, error) {
	bi := bootinfo.New()
	if s.Board != nil {
		if err := s.Board.Describe(bi); err != nil {
			return nil, fmt.Errorf("startup: board: %w", err)
		}
	}
	if err := bi.Validate(); err != nil {
		return nil, fmt.Errorf("startup: %w", err)
	}
	if s.Layout.BootInfoAddr != 0 {
		if err := bootinfo.Store(s.Core, s.Layout.BootInfoAddr, bi); err != nil {
			return nil, fmt.Errorf("startup: store boot info: %w", err)
		}
	}
	s.logger().Infof("startup: %s/%s, %d memory regions", bi.Implementer, bi.Variant, bi.RegionCount)
	return bi, nil
}

func (s *Sequencer) logger() *trust.Logger {
	if s.Config.Log == nil {
		return trust.Default()
	}
	return s.Config.Log
}
