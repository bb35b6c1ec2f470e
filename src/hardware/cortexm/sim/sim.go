// Package sim is a host model of a Cortex-M core, detailed enough to run the
// bring-up sequence, take supervisor calls and service PendSV in tests and in
// the image tools.
package sim

import (
	"errors"
	"fmt"
	"sync"

	"awakening/src/boot/memory"
	"awakening/src/hardware/cortexm"
)

var ErrNoFunction = errors.New("sim: no function at address")

// Halted is the panic value Halt unwinds with.
type Halted struct {
	Reason error
}

func (h *Halted) Error() string {
	return fmt.Sprintf("core halted: %v", h.Reason)
}

// Core implements cortexm.Core on top of a memory.Map.  System control block
// accesses are intercepted; everything else goes to the map.
type Core struct {
	*memory.Map

	mu       sync.Mutex
	icsr     uint32
	vtor     uint32
	aircr    uint32
	barriers []string
	funcs    map[uint32]func()
	resets   int
	halted   *Halted
}

var _ cortexm.Core = (*Core)(nil)

func New(m *memory.Map) *Core {
	if m == nil {
		m = memory.NewMap()
	}
	return &Core{Map: m, funcs: make(map[uint32]func())}
}

// Func places fn at a code address so Call (and so init arrays and vector
// slots holding that address) reaches it.
func (c *Core) Func(addr uint32, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcs[cortexm.ThumbAddr(addr)] = fn
}

func (c *Core) Call(addr uint32) error {
	c.mu.Lock()
	fn, ok := c.funcs[cortexm.ThumbAddr(addr)]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w %#08x", ErrNoFunction, addr)
	}
	fn()
	return nil
}

func (c *Core) barrier(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.barriers = append(c.barriers, name)
}

func (c *Core) DMB() { c.barrier("dmb") }
func (c *Core) DSB() { c.barrier("dsb") }
func (c *Core) ISB() { c.barrier("isb") }

// Barriers returns the barrier instructions executed so far, in order.
func (c *Core) Barriers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.barriers...)
}

// Halt records the reason and unwinds the calling goroutine.  It never
// returns, like the real one.
func (c *Core) Halt(reason error) {
	h := &Halted{Reason: reason}
	c.mu.Lock()
	c.halted = h
	c.mu.Unlock()
	panic(h)
}

// HaltReason is the reason of the last halt, nil if the core never halted.
func (c *Core) HaltReason() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.halted == nil {
		return nil
	}
	return c.halted.Reason
}

// Run calls fn and converts a halt into a return value.  Other panics pass
// through.
func Run(fn func()) (halted *Halted) {
	defer func() {
		if r := recover(); r != nil {
			h, ok := r.(*Halted)
			if !ok {
				panic(r)
			}
			halted = h
		}
	}()
	fn()
	return nil
}

func (c *Core) ReadAt(p []byte, addr uint64) error {
	if len(p) == 0 || !cortexm.SCB.Contains(addr, uint64(len(p))) {
		return c.Map.ReadAt(p, addr)
	}
	if len(p) != 4 || addr%4 != 0 {
		return &memory.AccessError{Op: "read", Addr: addr, Len: len(p), Err: errors.New("system control block needs word access")}
	}
	memory.Order.PutUint32(p, c.readReg(addr))
	return nil
}

func (c *Core) WriteAt(p []byte, addr uint64) error {
	if len(p) == 0 || !cortexm.SCB.Contains(addr, uint64(len(p))) {
		return c.Map.WriteAt(p, addr)
	}
	if len(p) != 4 || addr%4 != 0 {
		return &memory.AccessError{Op: "write", Addr: addr, Len: len(p), Err: errors.New("system control block needs word access")}
	}
	c.writeReg(addr, memory.Order.Uint32(p))
	return nil
}

func (c *Core) readReg(addr uint64) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch addr {
	case cortexm.ICSR:
		return c.icsr
	case cortexm.VTOR:
		return c.vtor
	case cortexm.AIRCR:
		return c.aircr &^ (0xffff << 16)
	}
	return 0
}

func (c *Core) writeReg(addr uint64, v uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch addr {
	case cortexm.ICSR:
		if v&cortexm.ICSRPendSVSet != 0 {
			c.icsr |= cortexm.ICSRPendSVSet
		}
		if v&cortexm.ICSRPendSVClear != 0 {
			c.icsr &^= cortexm.ICSRPendSVSet
		}
	case cortexm.VTOR:
		c.vtor = v &^ (cortexm.VectorTableAlign - 1)
	case cortexm.AIRCR:
		if v&0xffff0000 != cortexm.AIRCRVectKey {
			return // writes without the key are ignored
		}
		c.aircr = v
		if v&cortexm.AIRCRSysResetReq != 0 {
			c.resets++
		}
	}
}

// VTOR is the current vector table base.
func (c *Core) VTOR() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vtor
}

// Resets counts system reset requests made through AIRCR.
func (c *Core) Resets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resets
}

// PendSVPending reports whether PendSV is waiting to run.
func (c *Core) PendSVPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.icsr&cortexm.ICSRPendSVSet != 0
}

// RunPending takes the PendSV exception if it is pending: the pending bit is
// cleared on entry, as the hardware does, then handler runs.  It reports
// whether the exception was taken.
func (c *Core) RunPending(handler func()) bool {
	c.mu.Lock()
	pending := c.icsr&cortexm.ICSRPendSVSet != 0
	c.icsr &^= cortexm.ICSRPendSVSet
	c.mu.Unlock()
	if !pending {
		return false
	}
	handler()
	return true
}
