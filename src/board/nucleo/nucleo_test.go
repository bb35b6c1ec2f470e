package nucleo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awakening/src/boot/bootinfo"
)

func TestDescribe(t *testing.T) {
	bi := bootinfo.New()
	require.NoError(t, Board{}.Describe(bi))
	require.NoError(t, bi.Validate())

	assert.Equal(t, "ARM", bi.Implementer)
	assert.Equal(t, "Cortex-M4", bi.Variant)
	assert.Equal(t, []bootinfo.MemoryRegion{
		{Size: bootinfo.EntrySize, BaseAddress: 0x2000_0000, Length: 0x3_0000, RegionType: bootinfo.RegionAvailable},
		{Size: bootinfo.EntrySize, BaseAddress: 0x2003_0000, Length: 0x1_0000, RegionType: bootinfo.RegionAvailable},
		{Size: bootinfo.EntrySize, BaseAddress: 0x2004_0000, Length: 0x6_0000, RegionType: bootinfo.RegionAvailable},
	}, bi.Memory())
	assert.Equal(t, uint64(640<<10), bi.Available())
}
