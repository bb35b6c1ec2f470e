package board_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"awakening/src/board"
	"awakening/src/board/nucleo"
	"awakening/src/boot/bootinfo"
)

const described = `
name: devkit
implementer: ARM
variant: Cortex-M33
regions:
  - name: sram
    base: 0x20000000
    length: 256KiB
  - name: retained
    base: 0x20040000
    length: 0x1000
    type: reserved
`

func TestParseDescription(t *testing.T) {
	d, err := board.Parse([]byte(described))
	require.NoError(t, err)

	bi := bootinfo.New()
	require.NoError(t, d.Describe(bi))
	assert.Equal(t, "Cortex-M33", bi.Variant)
	require.Equal(t, uint64(2), bi.RegionCount)
	assert.Equal(t, uint64(256<<10), bi.Regions[0].Length)
	assert.Equal(t, bootinfo.RegionAvailable, bi.Regions[0].RegionType)
	assert.Equal(t, bootinfo.RegionReserved, bi.Regions[1].RegionType)
	assert.Equal(t, uint64(0x2004_0000), bi.Regions[1].BaseAddress)
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want error
	}{
		{"type", "regions: [{base: 0, length: 4, type: flash}]", board.ErrUnknownType},
		{"too many", "regions: [" +
			"{base: 0, length: 1}, {base: 1, length: 1}, {base: 2, length: 1}, {base: 3, length: 1}," +
			"{base: 4, length: 1}, {base: 5, length: 1}, {base: 6, length: 1}, {base: 7, length: 1}," +
			"{base: 8, length: 1}]", bootinfo.ErrRegionsFull},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := board.Parse([]byte(c.yaml))
			assert.True(t, errors.Is(err, c.want), "got %v", err)
		})
	}
	_, err := board.Parse([]byte("regions: [{base: 0, length: lots}]"))
	assert.Error(t, err)
}

func TestNumericRegionType(t *testing.T) {
	d, err := board.Parse([]byte("regions: [{base: 0x100, length: 16, type: \"5\"}]"))
	require.NoError(t, err)
	bi := bootinfo.New()
	require.NoError(t, d.Describe(bi))
	assert.Equal(t, bootinfo.RegionBadRAM, bi.Regions[0].RegionType)
}

func TestCaptureRoundTrip(t *testing.T) {
	d, err := board.Capture("nucleo", nucleo.Board{})
	require.NoError(t, err)
	out, err := yaml.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(out), "length: 192KiB")

	back, err := board.Parse(out)
	require.NoError(t, err)
	want, got := bootinfo.New(), bootinfo.New()
	require.NoError(t, nucleo.Board{}.Describe(want))
	require.NoError(t, back.Describe(got))
	assert.Equal(t, want, got)
}

func TestSizeFallsBackToHex(t *testing.T) {
	out, err := yaml.Marshal(struct {
		N board.Size `yaml:"n"`
	}{0x12345})
	require.NoError(t, err)
	assert.Equal(t, "n: \"0x12345\"\n", string(out))
}

func TestResolve(t *testing.T) {
	b, err := board.Resolve("nucleo")
	require.NoError(t, err)
	assert.Equal(t, nucleo.Board{}, b)
	assert.Contains(t, board.Names(), "nucleo")

	_, err = board.Resolve("no-such-board")
	assert.True(t, errors.Is(err, board.ErrUnknownBoard))

	path := filepath.Join(t.TempDir(), "devkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("regions: [{base: 0x20000000, length: 64KiB}]\n"), 0o644))
	b, err = board.Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, "devkit", b.(*board.Description).Name)
}
