package memory

import (
	"errors"
	"fmt"
)

// Space is byte addressable memory.  Implementations must treat a zero length
// access as a no-op that succeeds.
type Space interface {
	ReadAt(p []byte, addr uint64) error
	WriteAt(p []byte, addr uint64) error
}

var ErrUnmapped = errors.New("address not mapped")
var ErrReadOnly = errors.New("write to read only memory")
var ErrInvertedSpan = errors.New("span end is below its start")

// AccessError is returned when an access falls outside of every region or
// hits a region without the needed permission.
type AccessError struct {
	Op   string
	Addr uint64
	Len  int
	Err  error
}

func (a *AccessError) Error() string {
	return fmt.Sprintf("%s %d bytes at %#08x: %v", a.Op, a.Len, a.Addr, a.Err)
}

func (a *AccessError) Unwrap() error {
	return a.Err
}

func Read32(s Space, addr uint64) (uint32, error) {
	var b [4]byte
	if err := s.ReadAt(b[:], addr); err != nil {
		return 0, err
	}
	return Order.Uint32(b[:]), nil
}

func Write32(s Space, addr uint64, v uint32) error {
	var b [4]byte
	Order.PutUint32(b[:], v)
	return s.WriteAt(b[:], addr)
}

func Read8(s Space, addr uint64) (byte, error) {
	var b [1]byte
	if err := s.ReadAt(b[:], addr); err != nil {
		return 0, err
	}
	return b[0], nil
}

// chunk bounds the scratch buffer used by Zero and Copy so neither needs
// memory proportional to the span.
const chunk = 256

// Zero writes zero bytes over the whole span.  An empty span writes nothing.
func Zero(s Space, span Span) error {
	if !span.Valid() {
		return ErrInvertedSpan
	}
	var zeros [chunk]byte
	for addr := span.Start; addr < span.End; {
		n := span.End - addr
		if n > chunk {
			n = chunk
		}
		if err := s.WriteAt(zeros[:n], addr); err != nil {
			return err
		}
		addr += n
	}
	return nil
}

// Copy copies dst.Len() bytes starting at src into dst.  The ranges must not
// overlap; load images live in flash and never overlap their RAM copy.
func Copy(s Space, dst Span, src uint64) error {
	if !dst.Valid() {
		return ErrInvertedSpan
	}
	var buf [chunk]byte
	for off := uint64(0); off < dst.Len(); {
		n := dst.Len() - off
		if n > chunk {
			n = chunk
		}
		if err := s.ReadAt(buf[:n], src+off); err != nil {
			return err
		}
		if err := s.WriteAt(buf[:n], dst.Start+off); err != nil {
			return err
		}
		off += n
	}
	return nil
}
