//go:build tinygo && cortexm

package resched

var installed = &Entry{}

// Install sets the entry PendSV_Handler calls.
func Install(e *Entry) {
	installed = e
}

// pendsvEntry receives the process stack pointer after r4-r11 were pushed
// and returns the one to restore.
//
//export awakening_pendsv_entry
func pendsvEntry(psp uintptr) uintptr {
	return uintptr(installed.PendSV(Context(psp)))
}
