//go:build tinygo && cortexm

package startup

import (
	"unsafe"

	"awakening/src/boot/memory"
	"awakening/src/boot/reloc"
)

//go:extern __bss_start
var bssStart [0]byte

//go:extern __bss_end
var bssEnd [0]byte

//go:extern __data_start
var dataStart [0]byte

//go:extern __data_end
var dataEnd [0]byte

//go:extern __data
var dataLoad [0]byte

//go:extern __got_start
var gotStart [0]byte

//go:extern __got_end
var gotEnd [0]byte

//go:extern __got_load
var gotLoad [0]byte

//go:extern __rel_start
var relStart [0]byte

//go:extern __rel_end
var relEnd [0]byte

//go:extern __rel_load
var relLoad [0]byte

//go:extern __vector_start
var vectorStart [0]byte

//go:extern __vector_end
var vectorEnd [0]byte

//go:extern __vector_load
var vectorLoad [0]byte

//go:extern __init_array_start
var initArrayStart [0]byte

//go:extern __init_array_end
var initArrayEnd [0]byte

//go:extern __fini_array_start
var finiArrayStart [0]byte

//go:extern __fini_array_end
var finiArrayEnd [0]byte

//go:extern __ram_start
var ramStart [0]byte

//go:extern __ram_end
var ramEnd [0]byte

//go:extern __bootinfo
var bootInfo [0]byte

func addr(sym *[0]byte) uint64 {
	return uint64(uintptr(unsafe.Pointer(sym)))
}

func span(start, end *[0]byte) memory.Span {
	return memory.Span{Start: addr(start), End: addr(end)}
}

//export awakening_load_delta
func loadDelta() int32

// LoadDelta is where the image runs minus where it was linked, measured from
// the program counter.  Call it before Prepare: relocation rewrites the word
// it compares against.
func LoadDelta() reloc.Delta {
	return reloc.Delta(loadDelta())
}

// LinkerLayout is the Layout targets/awakening.ld defines (see LinkerSymbols).
// It only covers sections bring-up owns.  By the time main runs the TinyGo
// runtime has zeroed its own .bss, copied its own .data and started the heap,
// and none of that is touched again.
func LinkerLayout() Layout {
	return Layout{
		BSS:          span(&bssStart, &bssEnd),
		Data:         span(&dataStart, &dataEnd),
		DataLoad:     addr(&dataLoad),
		GOT:          span(&gotStart, &gotEnd),
		GOTLoad:      addr(&gotLoad),
		Rel:          span(&relStart, &relEnd),
		RelLoad:      addr(&relLoad),
		Vectors:      span(&vectorStart, &vectorEnd),
		VectorsLoad:  addr(&vectorLoad),
		InitArray:    span(&initArrayStart, &initArrayEnd),
		FiniArray:    span(&finiArrayStart, &finiArrayEnd),
		RAM:          []memory.Span{span(&ramStart, &ramEnd)},
		BootInfoAddr: addr(&bootInfo),
	}
}
