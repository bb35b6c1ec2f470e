//go:build tinygo && cortexm

package trap

import (
	"errors"

	"awakening/src/hardware/cortexm"
)

var errNotInstalled = errors.New("trap: svc before a dispatcher was installed")

var installed *Dispatcher
var target = &cortexm.Target{}

// Install makes d the dispatcher SVC_Handler reaches.  Done once by the
// kernel before it issues its first svc.
func Install(d *Dispatcher, t *cortexm.Target) {
	if t != nil {
		target = t
	}
	installed = d
}

// svcEntry is branched to from SVC_Handler with the active stack pointer.
//
//export awakening_svc_entry
func svcEntry(sp uintptr) {
	if installed == nil {
		target.Halt(errNotInstalled)
	}
	installed.Trap(target, uint64(sp))
}
