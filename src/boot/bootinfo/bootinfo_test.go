package bootinfo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awakening/src/boot/memory"
)

func sample(t *testing.T) *BootInfo {
	t.Helper()
	b := New()
	b.Implementer = "ARM"
	b.Variant = "Cortex-M4"
	require.NoError(t, b.AddRegion(0x2000_0000, 0x30000, RegionAvailable))
	require.NoError(t, b.AddRegion(0x2003_0000, 0x10000, RegionAvailable))
	require.NoError(t, b.AddRegion(0x2004_0000, 0x60000, RegionReserved))
	b.Init = InitProgramDescriptor{ImageStart: 0x0810_0000, ImageLength: 0x2000, EntryOffset: 0x101}
	return b
}

func TestMagicValue(t *testing.T) {
	assert.Equal(t, uint32(221566477), Magic)
}

func TestLayoutSizes(t *testing.T) {
	assert.Equal(t, 232, V1Size)
	assert.Equal(t, 264, V2Size)
	assert.Equal(t, V1Size, Size(Version1))
	assert.Equal(t, V2Size, Size(Version2))
	assert.Equal(t, V2Size, Size(7))
}

func TestRoundTripCurrent(t *testing.T) {
	b := sample(t)
	buf, err := b.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, buf, V2Size)

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	again, err := got.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, buf, again)
}

func TestRoundTripVersion1DropsIdentity(t *testing.T) {
	b := sample(t)
	buf, err := b.Encode(Version1)
	require.NoError(t, err)
	require.Len(t, buf, V1Size)

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, Version1, got.Version)
	assert.Empty(t, got.Implementer)
	assert.Empty(t, got.Variant)
	assert.Equal(t, b.Regions, got.Regions)
	assert.Equal(t, b.RegionCount, got.RegionCount)
	assert.Equal(t, b.Init, got.Init)
}

func TestWireOffsets(t *testing.T) {
	b := sample(t)
	buf, err := b.Encode(Version1)
	require.NoError(t, err)
	o := memory.Order
	assert.Equal(t, Magic, o.Uint32(buf[0:]))
	assert.Equal(t, Version1, o.Uint32(buf[4:]))
	// first entry is packed: size, addr, length, type with no padding
	assert.Equal(t, uint32(EntrySize), o.Uint32(buf[8:]))
	assert.Equal(t, uint64(0x2000_0000), o.Uint64(buf[12:]))
	assert.Equal(t, uint64(0x30000), o.Uint64(buf[20:]))
	assert.Equal(t, RegionAvailable, o.Uint32(buf[28:]))
	assert.Equal(t, uint64(3), o.Uint64(buf[200:]))
	assert.Equal(t, uint64(0x0810_0000), o.Uint64(buf[208:]))
	assert.Equal(t, uint64(0x101), o.Uint64(buf[224:]))
}

func TestUnknownVersionDegrades(t *testing.T) {
	b := sample(t)
	buf, err := b.Encode(Version2)
	require.NoError(t, err)
	memory.Order.PutUint32(buf[4:], 9)
	buf = append(buf, 0xaa, 0xbb, 0xcc, 0xdd)

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), got.Version)
	assert.Equal(t, "Cortex-M4", got.Variant)
	assert.Equal(t, b.Memory(), got.Memory())
}

func TestValidate(t *testing.T) {
	b := New()
	assert.NoError(t, b.Validate())

	b.Magic = 0xdeadbeef
	assert.True(t, errors.Is(b.Validate(), ErrBadMagic))

	b = New()
	b.RegionCount = Capacity + 1
	assert.True(t, errors.Is(b.Validate(), ErrTooManyRegions))
	_, err := b.MarshalBinary()
	assert.True(t, errors.Is(err, ErrTooManyRegions))
	assert.Len(t, b.Memory(), Capacity)

	buf, err := New().MarshalBinary()
	require.NoError(t, err)
	memory.Order.PutUint32(buf[0:], 1)
	_, err = Decode(buf)
	assert.True(t, errors.Is(err, ErrBadMagic))

	_, err = Decode(buf[:40])
	assert.True(t, errors.Is(err, ErrShort))
}

func TestAddRegionCapacity(t *testing.T) {
	b := New()
	for i := 0; i < Capacity; i++ {
		require.NoError(t, b.AddRegion(uint64(i)*0x1000, 0x1000, RegionAvailable))
	}
	assert.Equal(t, ErrRegionsFull, b.AddRegion(0x9000, 1, RegionAvailable))
	assert.Equal(t, uint64(Capacity), b.RegionCount)
	assert.Equal(t, uint64(Capacity*0x1000), b.Available())
}

func TestNameTooLong(t *testing.T) {
	b := New()
	b.Variant = "Cortex-M4 with a very long name"
	_, err := b.MarshalBinary()
	assert.True(t, errors.Is(err, ErrNameTooLong))
}

func TestStoreLoad(t *testing.T) {
	m := memory.NewMap()
	m.MustAdd("sram", 0x2000_0000, 0x400, memory.ProtRead|memory.ProtWrite)
	b := sample(t)
	require.NoError(t, Store(m, 0x2000_0100, b))
	got, err := Load(m, 0x2000_0100)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestBoardFunc(t *testing.T) {
	var board Board = BoardFunc(func(b *BootInfo) error {
		b.Implementer = "ARM"
		return b.AddRegion(0, 0x100, RegionAvailable)
	})
	b := New()
	require.NoError(t, board.Describe(b))
	assert.Equal(t, "ARM", b.Implementer)
	assert.Contains(t, b.String(), "mmap[0] 0x00000000-0x00000100 type 1")
}
