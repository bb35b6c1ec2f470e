// Package nucleo is the STM32 Nucleo-L4R5ZI: a Cortex-M4 with three banks
// of SRAM.
package nucleo

import (
	"awakening/src/board"
	"awakening/src/boot/bootinfo"
)

const (
	FlashBase = 0x0800_0000
	FlashSize = 2 << 20

	SRAM1Base = 0x2000_0000
	SRAM1Size = 0x3_0000
	SRAM2Base = 0x2003_0000
	SRAM2Size = 0x1_0000
	SRAM3Base = 0x2004_0000
	SRAM3Size = 0x6_0000
)

type Board struct{}

func (Board) Describe(b *bootinfo.BootInfo) error {
	b.Implementer = "ARM"
	b.Variant = "Cortex-M4"
	for _, r := range [...][2]uint64{
		{SRAM1Base, SRAM1Size},
		{SRAM2Base, SRAM2Size},
		{SRAM3Base, SRAM3Size},
	} {
		if err := b.AddRegion(r[0], r[1], bootinfo.RegionAvailable); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	board.Register("nucleo", Board{})
}
