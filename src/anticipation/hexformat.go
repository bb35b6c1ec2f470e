// Package anticipation reads and writes Intel HEX, the format flash tools
// take images in.  Only the record types a 32 bit image needs are
// understood: data, end of file, extended segment and linear address, and
// start linear address.
package anticipation

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DataLineSize is how many bytes Encoder puts in a data record.
const DataLineSize = 0x20

type HexLineType int

const (
	DataLine               HexLineType = 0
	EndOfFile              HexLineType = 1
	ExtendedSegmentAddress HexLineType = 2
	StartSegmentAddress    HexLineType = 3
	ExtendedLinearAddress  HexLineType = 4
	StartLinearAddress     HexLineType = 5
)

func (hlt HexLineType) String() string {
	switch hlt {
	case DataLine:
		return "DataLine"
	case EndOfFile:
		return "EndOfFile"
	case ExtendedSegmentAddress:
		return "ExtendedSegmentAddress"
	case StartSegmentAddress:
		return "StartSegmentAddress"
	case ExtendedLinearAddress:
		return "ExtendedLinearAddress"
	case StartLinearAddress:
		return "StartLinearAddress"
	}
	return "unknown"
}

var ErrChecksum = errors.New("hex: bad checksum")
var ErrLength = errors.New("hex: record length does not match")
var ErrSyntax = errors.New("hex: malformed record")
var ErrUnsupported = errors.New("hex: unsupported record type")
var ErrTooLong = errors.New("hex: data record longer than 255 bytes")

// LineError is a decode failure on one line of input.
type LineError struct {
	Line int
	Err  error
}

func (l *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", l.Line, l.Err)
}

func (l *LineError) Unwrap() error {
	return l.Err
}

///////////////////////////////////////////////////////////////////////////////////
// DECODE
///////////////////////////////////////////////////////////////////////////////////

// Record is one decoded line.
type Record struct {
	Type   HexLineType
	Offset uint16
	Data   []byte
}

// ParseRecord checks and decodes one line, colon included.
func ParseRecord(line string) (Record, error) {
	line = strings.TrimSpace(line)
	if len(line) < 11 || line[0] != ':' || (len(line)-1)%2 != 0 {
		return Record{}, ErrSyntax
	}
	converted := make([]byte, (len(line)-1)/2)
	for i := range converted {
		hi, ok1 := nibble(line[1+2*i])
		lo, ok2 := nibble(line[2+2*i])
		if !ok1 || !ok2 {
			return Record{}, fmt.Errorf("%w: bad character near column %d", ErrSyntax, 1+2*i)
		}
		converted[i] = hi<<4 | lo
	}
	if int(converted[0])+5 != len(converted) {
		return Record{}, fmt.Errorf("%w: declared %d data bytes", ErrLength, converted[0])
	}
	var sum uint8
	for _, b := range converted {
		sum += b
	}
	if sum != 0 {
		return Record{}, ErrChecksum
	}
	return Record{
		Type:   HexLineType(converted[3]),
		Offset: uint16(converted[1])<<8 | uint16(converted[2]),
		Data:   converted[4 : len(converted)-1],
	}, nil
}

func nibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Sink receives decoded contents.
type Sink interface {
	Write(addr uint32, data []byte) error
	SetEntryPoint(addr uint32)
}

// Decode reads records until end of file, handing data to sink at its
// absolute address.
func Decode(r io.Reader, sink Sink) error {
	sc := bufio.NewScanner(r)
	base := uint32(0)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		rec, err := ParseRecord(text)
		if err != nil {
			return &LineError{Line: n, Err: err}
		}
		done, err := apply(rec, &base, sink)
		if err != nil {
			return &LineError{Line: n, Err: err}
		}
		if done {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return &LineError{Line: n, Err: fmt.Errorf("%w: no end of file record", ErrSyntax)}
}

func apply(rec Record, base *uint32, sink Sink) (bool, error) {
	switch rec.Type {
	case DataLine:
		return false, sink.Write(*base+uint32(rec.Offset), rec.Data)
	case EndOfFile:
		return true, nil
	case ExtendedSegmentAddress:
		if len(rec.Data) != 2 {
			return false, ErrLength
		}
		*base = (uint32(rec.Data[0])<<8 | uint32(rec.Data[1])) << 4
	case ExtendedLinearAddress:
		if len(rec.Data) != 2 {
			return false, ErrLength
		}
		*base = (uint32(rec.Data[0])<<8 | uint32(rec.Data[1])) << 16
	case StartLinearAddress:
		if len(rec.Data) != 4 {
			return false, ErrLength
		}
		sink.SetEntryPoint(uint32(rec.Data[0])<<24 | uint32(rec.Data[1])<<16 | uint32(rec.Data[2])<<8 | uint32(rec.Data[3]))
	default:
		return false, fmt.Errorf("%w: %s", ErrUnsupported, rec.Type)
	}
	return false, nil
}

///////////////////////////////////////////////////////////////////////////////////
// ENCODING
///////////////////////////////////////////////////////////////////////////////////

func encodeRecord(t HexLineType, offset uint16, raw []byte) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, ":%02X%04X%02X", len(raw), offset, int(t))
	for _, b := range raw {
		fmt.Fprintf(&sb, "%02X", b)
	}
	fmt.Fprintf(&sb, "%02X", createChecksum(raw, offset, t))
	return sb.String()
}

func EncodeDataBytes(raw []byte, offset uint16) (string, error) {
	if len(raw) > 255 {
		return "", fmt.Errorf("%w (%d)", ErrTooLong, len(raw))
	}
	return encodeRecord(DataLine, offset, raw), nil
}

func EncodeEOF() string {
	return encodeRecord(EndOfFile, 0, nil)
}

// EncodeELA takes the most significant 16 bits of the 32 bit base.
func EncodeELA(base uint16) string {
	return encodeRecord(ExtendedLinearAddress, 0, []byte{byte(base >> 8), byte(base)})
}

// EncodeESA takes bits 4 to 19 of a 20 bit base.
func EncodeESA(base uint16) string {
	return encodeRecord(ExtendedSegmentAddress, 0, []byte{byte(base >> 8), byte(base)})
}

func EncodeSLA(addr uint32) string {
	return encodeRecord(StartLinearAddress, 0, []byte{byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr)})
}

// offset only matters for data records; the others always have 0
func createChecksum(raw []byte, offset uint16, hlt HexLineType) uint8 {
	sum := len(raw)
	sum += int(offset & 0xff)
	sum += int(offset>>8) & 0xff
	sum += int(hlt)
	for _, v := range raw {
		sum += int(v)
	}
	sum = ^sum
	sum += 1
	sum = sum & 0xff
	return uint8(sum)
}

// Encoder writes a whole image: data records with an extended linear
// address record whenever the upper half of the address changes.
type Encoder struct {
	w       *bufio.Writer
	upper   uint32
	started bool
	err     error
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

func (e *Encoder) line(s string) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.WriteString(s + "\n")
}

// Write emits data to be placed at addr.
func (e *Encoder) Write(addr uint32, data []byte) error {
	for len(data) > 0 && e.err == nil {
		upper := addr >> 16
		if !e.started || upper != e.upper {
			e.line(EncodeELA(uint16(upper)))
			e.upper, e.started = upper, true
		}
		n := DataLineSize
		if room := 0x1_0000 - int(addr&0xffff); room < n {
			n = room
		}
		if n > len(data) {
			n = len(data)
		}
		rec, err := EncodeDataBytes(data[:n], uint16(addr))
		if err != nil {
			return err
		}
		e.line(rec)
		addr += uint32(n)
		data = data[n:]
	}
	return e.err
}

// Close writes the entry point, when there is one, and the end of file
// record.
func (e *Encoder) Close(entry uint32) error {
	if entry != 0 {
		e.line(EncodeSLA(entry))
	}
	e.line(EncodeEOF())
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}
