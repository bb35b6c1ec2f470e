package reloc

import (
	"bytes"
	"debug/elf"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awakening/src/boot/memory"
	"awakening/src/hardware/cortexm"
	"awakening/src/hardware/cortexm/sim"
	"awakening/src/lib/trust"
)

const (
	flashBase = 0x0800_0000
	sramBase  = 0x2000_0000

	gotLoad  = flashBase + 0x400
	relLoad  = flashBase + 0x500
	vecLoad  = flashBase + 0x000
	gotRAM   = sramBase + 0x100
	relRAM   = sramBase + 0x200
	vecRAM   = sramBase + 0x800
	vecSlots = 16
)

type fixture struct {
	core *sim.Core
	plan Plan
	got  []uint32
	vecs []uint32
}

func words(ws ...uint32) []byte {
	b := make([]byte, 4*len(ws))
	for i, w := range ws {
		memory.Order.PutUint32(b[i*4:], w)
	}
	return b
}

func rels(rs ...Record) []byte {
	b := make([]byte, RecordSize*len(rs))
	for i, r := range rs {
		memory.Order.PutUint32(b[i*8:], r.Offset)
		memory.Order.PutUint32(b[i*8+4:], r.Info)
	}
	return b
}

func newFixture(t *testing.T, records ...Record) *fixture {
	t.Helper()
	m := memory.NewMap()
	m.MustAdd("flash", flashBase, 0x1000, memory.ProtRead|memory.ProtExec)
	m.MustAdd("sram", sramBase, 0x1000, memory.ProtRead|memory.ProtWrite)
	f := &fixture{core: sim.New(m)}

	f.got = []uint32{0x0800_0101, 0x0800_0201, 0x0800_0301, 0x0800_0401}
	require.NoError(t, m.Load(words(f.got...), gotLoad))
	require.NoError(t, m.Load(rels(records...), relLoad))

	f.vecs = make([]uint32, vecSlots)
	f.vecs[0] = 0x2000_1000
	for i := 1; i < vecSlots; i++ {
		f.vecs[i] = 0x0800_0041 + uint32(i)*2
	}
	f.vecs[7] = 0 // reserved
	require.NoError(t, m.Load(words(f.vecs...), vecLoad))

	f.plan = Plan{
		GOT:         memory.NewSpan(gotRAM, uint64(4*len(f.got))),
		GOTLoad:     gotLoad,
		Rel:         memory.NewSpan(relRAM, uint64(RecordSize*len(records))),
		RelLoad:     relLoad,
		Vectors:     memory.NewSpan(vecRAM, 4*vecSlots),
		VectorsLoad: vecLoad,
		Writable:    m.Writable(),
	}
	return f
}

func (f *fixture) engine() *Engine {
	return &Engine{Core: f.core, Log: trust.NewLogger(nil, "")}
}

func (f *fixture) word(t *testing.T, addr uint64) uint32 {
	t.Helper()
	v, err := memory.Read32(f.core, addr)
	require.NoError(t, err)
	return v
}

func relative(addr uint64) Record {
	return Record{Offset: uint32(addr), Info: uint32(KindRelative)}
}

func TestDeltaZeroIsNoOp(t *testing.T) {
	f := newFixture(t, relative(gotRAM), relative(gotRAM+4))
	report, err := f.engine().Apply(f.plan, 0)
	require.NoError(t, err)

	sram := f.core.Region("sram").Data
	assert.Equal(t, words(f.got...), sram[0x100:0x110])
	assert.Equal(t, bytes.Repeat([]byte{0}, 4*vecSlots), sram[0x800:0x800+4*vecSlots])
	assert.False(t, report.VectorsMoved)
	assert.Zero(t, f.core.VTOR())
	assert.Empty(t, f.core.Barriers())
}

func TestOnlyRelativeEntriesAdjusted(t *testing.T) {
	const delta = Delta(0x4000)
	f := newFixture(t,
		relative(gotRAM),
		Record{Offset: gotRAM + 4, Info: uint32(elf.R_ARM_ABS32)},
		relative(gotRAM+8),
		Record{Offset: gotRAM + 12, Info: 5<<8 | uint32(elf.R_ARM_ABS32)},
		Record{Offset: 0, Info: uint32(KindNone)},
	)
	report, err := f.engine().Apply(f.plan, delta)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Applied)
	assert.Equal(t, 2, report.Unsupported)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, f.got[0]+0x4000, f.word(t, gotRAM))
	assert.Equal(t, f.got[1], f.word(t, gotRAM+4))
	assert.Equal(t, f.got[2]+0x4000, f.word(t, gotRAM+8))
	assert.Equal(t, f.got[3], f.word(t, gotRAM+12))
}

func TestNegativeDelta(t *testing.T) {
	f := newFixture(t, relative(gotRAM))
	_, err := f.engine().Apply(f.plan, ComputeDelta(0x0800_0000, 0x0800_0100))
	require.NoError(t, err)
	assert.Equal(t, f.got[0]-0x100, f.word(t, gotRAM))
}

func TestStrictRefusesUnsupported(t *testing.T) {
	f := newFixture(t, relative(gotRAM), Record{Offset: gotRAM + 4, Info: uint32(elf.R_ARM_ABS32)})
	e := f.engine()
	e.Strict = true
	_, err := e.Apply(f.plan, 0x100)

	var ue *UnsupportedError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, 1, ue.Index)
	// nothing was fixed up
	assert.Equal(t, f.got[0], f.word(t, gotRAM))
}

func TestFixupOutsideRAMRefused(t *testing.T) {
	f := newFixture(t, relative(gotRAM), relative(flashBase+0x10))
	_, err := f.engine().Apply(f.plan, 0x100)

	var be *BoundsError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 1, be.Index)
	assert.Equal(t, f.got[0], f.word(t, gotRAM))

	f = newFixture(t, relative(gotRAM))
	f.plan.Writable = nil
	_, err = f.engine().Apply(f.plan, 0x100)
	assert.Equal(t, ErrNoWritable, err)
}

func TestPartialRecordRejected(t *testing.T) {
	f := newFixture(t, relative(gotRAM))
	f.plan.Rel.End -= 3
	_, err := f.engine().Apply(f.plan, 0x100)
	assert.Equal(t, ErrRecordAlignment, err)
}

func TestVectorTableRelocated(t *testing.T) {
	const delta = Delta(0x2000)
	f := newFixture(t)
	report, err := f.engine().Apply(f.plan, delta)
	require.NoError(t, err)
	require.True(t, report.VectorsMoved)

	assert.Equal(t, f.vecs[0], f.word(t, vecRAM), "initial stack pointer must not move")
	for i := 1; i < vecSlots; i++ {
		want := f.vecs[i]
		if want != 0 {
			want += 0x2000
		}
		assert.Equal(t, want, f.word(t, vecRAM+uint64(i)*4), "slot %d", i)
	}
	assert.Equal(t, uint32(vecRAM), f.core.VTOR())
	assert.Equal(t, []string{"dsb", "isb"}, f.core.Barriers())
}

func TestReservedVectorSlotsStayZero(t *testing.T) {
	for _, delta := range []Delta{0x2000, -0x100} {
		f := newFixture(t)
		_, err := f.engine().Apply(f.plan, delta)
		require.NoError(t, err)
		assert.Zero(t, f.word(t, vecRAM+7*4), "delta %d", delta)
		assert.Equal(t, delta.Apply(f.vecs[8]), f.word(t, vecRAM+8*4), "delta %d", delta)
	}
}

func TestVectorTableAlignment(t *testing.T) {
	f := newFixture(t)
	f.plan.Vectors = memory.NewSpan(vecRAM+4, 4*vecSlots)
	_, err := f.engine().Apply(f.plan, 0x100)
	assert.True(t, errors.Is(err, ErrVectorAlignment))
	assert.Zero(t, f.core.VTOR())
}

func TestEmptyRegionsAreNoOps(t *testing.T) {
	core := sim.New(nil)
	e := &Engine{Core: core, Log: trust.NewLogger(nil, "")}
	report, err := e.Apply(Plan{}, 0x1234)
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
	assert.Zero(t, core.VTOR())
}

func TestDeltaArithmetic(t *testing.T) {
	assert.Equal(t, Delta(-0x100), ComputeDelta(0x1000, 0x1100))
	assert.Equal(t, uint32(0xffff_ff00), Delta(-0x100).Apply(0))
	assert.Equal(t, uint32(0x10), Delta(0x20).Apply(0xffff_fff0))
	assert.Equal(t, uint32(cortexm.VectorTableAlign), uint32(128))
}
