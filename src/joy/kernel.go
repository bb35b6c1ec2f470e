// Package joy is the smallest kernel that exercises the boot layer: it
// checks what bring-up handed it, reports the machine and services a handful
// of system calls.
package joy

//go:generate go run ../tools/gensyscall/cmd/gensyscall . syscall_table.gen.go

import (
	"errors"
	"fmt"
	"io"

	"awakening/src/boot/bootinfo"
	"awakening/src/boot/resched"
	"awakening/src/boot/trap"
	"awakening/src/hardware/cortexm"
	"awakening/src/lib/trust"
)

var ErrMalformed = errors.New("joy: malformed boot environment")

// Kernel is the state KernelInit builds.  There is one per core.
type Kernel struct {
	Core cortexm.Core
	Log  *trust.Logger
	// Console receives what tasks print.  Nil sends it to the log.
	Console io.Writer

	Info       *bootinfo.BootInfo
	Dispatcher *trap.Dispatcher
	Resched    resched.Trigger
}

func New(core cortexm.Core, log *trust.Logger) *Kernel {
	if log == nil {
		log = trust.Default()
	}
	return &Kernel{Core: core, Log: log, Resched: resched.Trigger{Core: core}}
}

// KernelInit is the entry point bring-up calls.  A descriptor without the
// right magic means the environment is not what the kernel was built for,
// and the core halts.
func (k *Kernel) KernelInit(bi *bootinfo.BootInfo) {
	if bi == nil {
		k.Core.Halt(fmt.Errorf("%w: no boot information", ErrMalformed))
		return
	}
	if bi.Magic != bootinfo.Magic {
		k.Core.Halt(fmt.Errorf("%w: magic %#x", ErrMalformed, bi.Magic))
		return
	}
	if bi.RegionCount > bootinfo.Capacity {
		k.Core.Halt(fmt.Errorf("%w: %d regions", ErrMalformed, bi.RegionCount))
		return
	}
	k.Info = bi
	k.Log.Infof("joy: running on %s %s (boot info v%d)", bi.Implementer, bi.Variant, bi.Version)
	for i, r := range bi.Memory() {
		k.Log.Infof("joy: mmap[%d] %s", i, r)
	}
	if bi.Init.Present() {
		k.Log.Infof("joy: init image at %#x, %d bytes", bi.Init.ImageStart, bi.Init.ImageLength)
	}
	k.Dispatcher = trap.NewDispatcher(k.syscallTable(), k.Log)
}
