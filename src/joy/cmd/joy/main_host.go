//go:build !tinygo

// Command joy boots the kernel on the host simulator: the board's memory
// map becomes simulated ram, bring-up runs against it and the kernel takes a
// few system calls before it is stopped.
package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"github.com/dustin/go-humanize"

	"awakening/src/board"
	_ "awakening/src/board/nucleo"
	"awakening/src/boot/bootinfo"
	"awakening/src/boot/memory"
	"awakening/src/boot/resched"
	"awakening/src/boot/startup"
	"awakening/src/boot/trap"
	"awakening/src/hardware/cortexm/sim"
	"awakening/src/joy"
	"awakening/src/lib/trust"
)

var boardName = flag.String("board", "nucleo", "registered board name or board description (.yaml)")
var layoutFile = flag.String("layout", "", "linker layout (.yaml); empty boots with no sections")
var debug = flag.Bool("d", false, "debug logging")

const flashBase, flashSize = 0x0800_0000, 2 << 20

var errStopped = errors.New("stopped by host")

func main() {
	flag.Parse()
	logger := trust.NewLogger(os.Stderr, "joy ")
	if *debug {
		logger.SetLevel(trust.DebugMask | trust.StatsMask)
	}
	b, err := board.Resolve(*boardName)
	if err != nil {
		log.Fatalf("%v", err)
	}
	layout := startup.Layout{}
	if *layoutFile != "" {
		layout, err = startup.LoadLayout(*layoutFile)
		if err != nil {
			log.Fatalf("%v", err)
		}
	}
	core, err := machine(b)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if len(layout.RAM) == 0 {
		layout.RAM = core.Writable()
	}

	k := joy.New(core, logger)
	seq := &startup.Sequencer{Core: core, Board: b, Layout: layout, Config: startup.Config{Log: logger}}
	h := sim.Run(func() {
		seq.Run(func(bi *bootinfo.BootInfo) {
			k.KernelInit(bi)
			exercise(k, core, bi)
			core.Halt(errStopped)
		})
	})
	if h == nil || !errors.Is(h.Reason, errStopped) {
		log.Fatalf("%v", h)
	}
}

// machine maps flash plus every available region of the board.
func machine(b bootinfo.Board) (*sim.Core, error) {
	bi := bootinfo.New()
	if err := b.Describe(bi); err != nil {
		return nil, err
	}
	m := memory.NewMap()
	if _, err := m.Add("flash", flashBase, flashSize, memory.ProtRead|memory.ProtExec); err != nil {
		return nil, err
	}
	for i, r := range bi.Memory() {
		if r.RegionType != bootinfo.RegionAvailable {
			continue
		}
		if _, err := m.Add(bi.Variant+"-"+string(rune('0'+i)), r.BaseAddress, r.Length, memory.ProtRead|memory.ProtWrite); err != nil {
			return nil, err
		}
	}
	log.Printf("%s %s: %s of ram", bi.Implementer, bi.Variant, humanize.IBytes(bi.Available()))
	return sim.New(m), nil
}

// stackRegion is the first region the simulator mapped as ram.
func stackRegion(bi *bootinfo.BootInfo) (bootinfo.MemoryRegion, bool) {
	for _, r := range bi.Memory() {
		if r.RegionType == bootinfo.RegionAvailable && r.Length >= trap.FrameSize {
			return r, true
		}
	}
	return bootinfo.MemoryRegion{}, false
}

// exercise issues one of each system call from a frame at the top of the
// first available region.
func exercise(k *joy.Kernel, core *sim.Core, bi *bootinfo.BootInfo) {
	ram, ok := stackRegion(bi)
	if !ok {
		log.Fatalf("%s %s: no available memory region for a stack", bi.Implementer, bi.Variant)
	}
	sp := ram.End() - trap.FrameSize
	pc := uint64(flashBase)
	entry := &resched.Entry{Log: k.Log}
	for _, call := range []struct {
		num  uint8
		args []uint32
	}{{1, []uint32{42}}, {3, nil}, {2, nil}} {
		if err := core.Load([]byte{call.num, 0xdf}, pc); err != nil {
			log.Fatalf("%v", err)
		}
		var f trap.Frame
		copy(f[:], call.args)
		f[trap.SlotPC] = uint32(pc + 2)
		pc += 2
		buf := make([]byte, trap.FrameSize)
		for i, w := range f {
			memory.Order.PutUint32(buf[i*4:], w)
		}
		if err := core.WriteAt(buf, sp); err != nil {
			log.Fatalf("%v", err)
		}
		k.Dispatcher.Trap(core, sp)
		r0, err := memory.Read32(core, sp)
		if err != nil {
			log.Fatalf("svc #%d: %v", call.num, err)
		}
		log.Printf("svc #%d -> %d", call.num, int32(r0))
		core.RunPending(func() { entry.PendSV(resched.Context(sp)) })
	}
	log.Printf("%d context switches", entry.Switches())
	k.Dispatcher.LogStats()
}
