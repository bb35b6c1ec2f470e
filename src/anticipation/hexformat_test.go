package anticipation

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoodLines(t *testing.T) {
	cases := []struct {
		line string
		want HexLineType
	}{
		{":0B0010006164647265737320676170A7", DataLine},
		{":00000001FF", EndOfFile},
		{":020000021200EA", ExtendedSegmentAddress},
		{":10010000214601360121470136007EFE09D2190140", DataLine},
		{":04000005000000CD2A", StartLinearAddress},
		{":02000004FC0AF4", ExtendedLinearAddress},
		{":0b0010006164647265737320676170a7", DataLine},
	}
	for _, c := range cases {
		rec, err := ParseRecord(c.line)
		require.NoError(t, err, c.line)
		assert.Equal(t, c.want, rec.Type, c.line)
	}
}

func TestBadLines(t *testing.T) {
	cases := []struct {
		name string
		line string
		want error
	}{
		{"checksum", ":10010000214601360121470136007EFE09D2190149", ErrChecksum},
		{"missing char", ":10010000214601360121470136007EFE09D190140", ErrSyntax},
		{"length", ":0A0010006164647265737320676170A8", ErrLength},
		{"no colon", "0B0010006164647265737320676170A7", ErrSyntax},
		{"bad digit", ":0B00100061646472657373206761zzA7", ErrSyntax},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseRecord(c.line)
			assert.True(t, errors.Is(err, c.want), "got %v", err)
		})
	}
}

func TestEndToEnd(t *testing.T) {
	input := strings.Join([]string{
		":020000021200EA",
		":0B0010006164647265737320676170A7",
		":02000004FC0AF4",
		":04000005000000CD2A",
		":00000001FF",
		":this is never read",
	}, "\n")
	img := &Image{}
	require.NoError(t, Decode(strings.NewReader(input), img))
	assert.Equal(t, uint32(0x12010), img.Base)
	assert.Equal(t, []byte("address gap"), img.Data)
	assert.True(t, img.EntryPointIsSet())
	assert.Equal(t, uint32(0xCD), img.Entry)
}

func TestDecodeErrors(t *testing.T) {
	img := &Image{}
	err := Decode(strings.NewReader(":0B0010006164647265737320676170A7\n"), img)
	var le *LineError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 1, le.Line)

	err = Decode(strings.NewReader("\n:00000003FD\n"), img)
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 2, le.Line)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestDataEncoding(t *testing.T) {
	s, err := EncodeDataBytes([]byte{0x01, 0x02, 00, 00, 00, 0x03}, 0x1234)
	require.NoError(t, err)
	assert.Equal(t, ":06123400010200000003ae", strings.ToLower(s))

	_, err = EncodeDataBytes(make([]byte, 256), 0)
	assert.True(t, errors.Is(err, ErrTooLong))
}

func TestAddressEncoding(t *testing.T) {
	assert.Equal(t, ":02000004fffffc", strings.ToLower(EncodeELA(0xffff)))
	assert.Equal(t, ":02000002345672", strings.ToLower(EncodeESA(0x3456)))
	assert.Equal(t, ":04000005000000cd2a", strings.ToLower(EncodeSLA(0xcd)))
	assert.Equal(t, ":00000001FF", EncodeEOF())
}

func TestEncoderCrossesSegments(t *testing.T) {
	data := make([]byte, 0x40)
	for i := range data {
		data[i] = byte(i)
	}
	var out bytes.Buffer
	e := NewEncoder(&out)
	require.NoError(t, e.Write(0x0800_fff0, data))
	require.NoError(t, e.Close(0x0800_0101))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, EncodeELA(0x0800), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], ":10FFF000"))
	assert.Equal(t, EncodeELA(0x0801), lines[2])
	assert.True(t, strings.HasPrefix(lines[3], ":20000000"))
	assert.True(t, strings.HasPrefix(lines[4], ":10002000"))
	assert.Equal(t, EncodeSLA(0x0800_0101), lines[5])
	assert.Equal(t, EncodeEOF(), lines[6])

	img := &Image{}
	require.NoError(t, Decode(&out, img))
	assert.Equal(t, uint32(0x0800_fff0), img.Base)
	assert.Equal(t, data, img.Data)
	assert.Equal(t, uint32(0x0800_0101), img.Entry)
}

func TestImageHoles(t *testing.T) {
	img := &Image{}
	require.NoError(t, img.Write(0x100, []byte{1, 2}))
	require.NoError(t, img.Write(0xfe, []byte{9}))
	require.NoError(t, img.Write(0x104, []byte{3}))
	assert.Equal(t, uint32(0xfe), img.Base)
	assert.Equal(t, []byte{9, 0xff, 1, 2, 0xff, 0xff, 3}, img.Data)

	b, err := img.At(0x100, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, b)
	_, err = img.At(0x104, 2)
	assert.Error(t, err)
	assert.False(t, img.EntryPointIsSet())
}
