//go:build tinygo && cortexm

package main

import (
	"device/arm"

	"awakening/src/board/nucleo"
	"awakening/src/boot/bootinfo"
	"awakening/src/boot/resched"
	"awakening/src/boot/startup"
	"awakening/src/boot/trap"
	"awakening/src/hardware/cortexm"
	"awakening/src/joy"
	"awakening/src/lib/semihosting"
	"awakening/src/lib/trust"
)

func main() {
	delta := startup.LoadDelta()
	target := &cortexm.Target{Semihost: semihosting.Breakpoint{}}
	log := trust.NewLogger(semihosting.Writer{C: semihosting.Breakpoint{}}, "")
	log.SetExit(func(code int) { semihosting.Exit(semihosting.Breakpoint{}, uint32(code)) })

	layout := startup.LinkerLayout()
	config := startup.DefaultConfig()
	config.Log = log
	if config.Relocate {
		config = config.WithDelta(delta)
	}

	k := joy.New(target, log)
	seq := &startup.Sequencer{Core: target, Board: nucleo.Board{}, Layout: layout, Config: config}
	seq.Run(func(bi *bootinfo.BootInfo) {
		k.KernelInit(bi)
		trap.Install(k.Dispatcher, target)
		resched.Install(&resched.Entry{Log: log})
		for {
			arm.Asm("wfi")
		}
	})
}
