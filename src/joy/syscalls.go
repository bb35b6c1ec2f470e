package joy

import (
	"awakening/src/boot/memory"
	"awakening/src/boot/trap"
	"awakening/src/hardware/cortexm"
)

// Error results, negated errno values like ENOSYS.
const (
	EIO   int32 = -5
	EBADF int32 = -9
)

// maxPrint bounds one print call; longer writes are cut short and the
// caller sees the shorter count.
const maxPrint = 256

// Reset asks the system control block for a reset.  On hardware it does not
// return.
//
//syscall:handler num=0 args=0
func (k *Kernel) Reset(argc uint32, f *trap.Frame) int32 {
	k.Log.Warnf("joy: reset requested from pc %#08x", f.PC())
	if err := k.writeWord(cortexm.AIRCR, cortexm.AIRCRVectKey|cortexm.AIRCRSysResetReq); err != nil {
		return EIO
	}
	k.Core.DSB()
	return 0
}

// Among logs its argument.
//
//syscall:handler num=1 args=1
func (k *Kernel) Among(argc uint32, f *trap.Frame) int32 {
	k.Log.Infof("among: %d", f.R0())
	return 0
}

//syscall:handler num=2 args=0
func (k *Kernel) Yield(argc uint32, f *trap.Frame) int32 {
	if err := k.Resched.Request(); err != nil {
		return EIO
	}
	return 0
}

// Regions returns the number of entries in the memory map.
//
//syscall:handler num=3 args=0
func (k *Kernel) Regions(argc uint32, f *trap.Frame) int32 {
	if k.Info == nil {
		return 0
	}
	return int32(len(k.Info.Memory()))
}

// Print writes r2 bytes at r1 to descriptor r0.  Stdout goes to the console
// (the log when there is none), stderr always to the log.
//
//syscall:handler num=4 args=3
func (k *Kernel) Print(argc uint32, f *trap.Frame) int32 {
	fd, addr, n := f.R0(), f.R1(), f.R2()
	if fd != 1 && fd != 2 {
		return EBADF
	}
	if n > maxPrint {
		n = maxPrint
	}
	buf := make([]byte, n)
	if err := k.Core.ReadAt(buf, uint64(addr)); err != nil {
		return EIO
	}
	if fd == 2 || k.Console == nil {
		k.Log.Infof("%s", buf)
		return int32(n)
	}
	if _, err := k.Console.Write(buf); err != nil {
		return EIO
	}
	return int32(n)
}

func (k *Kernel) writeWord(addr uint64, v uint32) error {
	return memory.Write32(k.Core, addr, v)
}
