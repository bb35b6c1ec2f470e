// Package pack turns a kernel executable, and optionally an init program,
// into one flashable image with the boot information filled in.
package pack

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/dustin/go-humanize"

	"awakening/src/anticipation"
	"awakening/src/boot/bootinfo"
	"awakening/src/lib/trust"
)

// BootInfoSection is where the kernel reserves room for the descriptor.
const BootInfoSection = ".bootinfo"

var ErrBelowBase = errors.New("pack: segment below image base")
var ErrSectionTooSmall = errors.New("pack: boot info section too small")
var ErrTooLarge = errors.New("pack: image does not fit in 32 bits")

// Part is a piece of the image with its checksum.
type Part struct {
	Name string
	Addr uint64
	Size uint64
	CRC  uint32
}

func (p Part) String() string {
	return fmt.Sprintf("%-12s %#010x %10s crc32 %08x", p.Name, p.Addr, humanize.IBytes(p.Size), p.CRC)
}

// Image is the packed result.  Data starts at Base.
type Image struct {
	Base  uint64
	Data  []byte
	Entry uint64
	Parts []Part

	Info *bootinfo.BootInfo
	// Blob is Info encoded; Patched says whether it went into the kernel's
	// boot info section or has to be delivered some other way.
	Blob    []byte
	Patched bool
}

// Builder holds what is the same for every image of one board.
type Builder struct {
	Base  uint64
	Board bootinfo.Board
	Log   *trust.Logger
}

func (b *Builder) logger() *trust.Logger {
	if b.Log == nil {
		return trust.Default()
	}
	return b.Log
}

// Build places the kernel's segments by physical address, appends init (if
// not nil) at its own alignment and writes the boot information.
func (b *Builder) Build(kernel, init *Program) (*Image, error) {
	img := &Image{Base: b.Base, Entry: kernel.Entry}
	for i, s := range kernel.Segments {
		if len(s.Data) == 0 {
			continue
		}
		if s.Paddr < b.Base {
			return nil, fmt.Errorf("%w: %#x < %#x", ErrBelowBase, s.Paddr, b.Base)
		}
		img.place(fmt.Sprintf("kernel.%d", i), s.Paddr, s.Data)
	}

	bi := bootinfo.New()
	if b.Board != nil {
		if err := b.Board.Describe(bi); err != nil {
			return nil, fmt.Errorf("pack: board: %w", err)
		}
	}
	if init != nil {
		lo, data := init.Flatten()
		align := init.MaxAlign()
		off := (uint64(len(img.Data)) + align - 1) &^ (align - 1)
		at := b.Base + off
		img.place("init", at, data)
		bi.Init = bootinfo.InitProgramDescriptor{
			ImageStart:  at,
			ImageLength: uint64(len(data)),
			EntryOffset: init.Entry - lo,
		}
		b.logger().Infof("pack: init at %#x (aligned %d), entry %#x", at, align, bi.Init.Entry())
	}
	if err := bi.Validate(); err != nil {
		return nil, err
	}
	blob, err := bi.MarshalBinary()
	if err != nil {
		return nil, err
	}
	img.Info, img.Blob = bi, blob

	if sec, ok := kernel.Section(BootInfoSection); ok {
		if sec.Size < uint64(len(blob)) {
			return nil, fmt.Errorf("%w: %d bytes, need %d", ErrSectionTooSmall, sec.Size, len(blob))
		}
		if sec.Load < b.Base || sec.Load+uint64(len(blob)) > b.Base+uint64(len(img.Data)) {
			return nil, fmt.Errorf("%w: %s is not loaded from flash", ErrBelowBase, BootInfoSection)
		}
		copy(img.Data[sec.Load-b.Base:], blob)
		img.Patched = true
	} else {
		b.logger().Warnf("pack: kernel has no %s section, boot info not patched", BootInfoSection)
	}
	// checksums last so they cover the patched bytes
	for i := range img.Parts {
		p := &img.Parts[i]
		p.CRC = crc32.ChecksumIEEE(img.Data[p.Addr-b.Base : p.Addr-b.Base+p.Size])
	}
	if b.Base+uint64(len(img.Data)) > 1<<32 {
		return nil, ErrTooLarge
	}
	return img, nil
}

func (img *Image) place(name string, addr uint64, data []byte) {
	off := addr - img.Base
	if end := off + uint64(len(data)); end > uint64(len(img.Data)) {
		grown := make([]byte, end)
		for i := len(img.Data); i < len(grown); i++ {
			grown[i] = 0xff
		}
		copy(grown, img.Data)
		img.Data = grown
	}
	copy(img.Data[off:], data)
	img.Parts = append(img.Parts, Part{Name: name, Addr: addr, Size: uint64(len(data))})
}

// WriteRaw writes the image bytes as they go into flash at Base.
func (img *Image) WriteRaw(w io.Writer) error {
	_, err := w.Write(img.Data)
	return err
}

// WriteHex writes the image as Intel HEX with the kernel entry as start
// address.
func (img *Image) WriteHex(w io.Writer) error {
	e := anticipation.NewEncoder(w)
	if err := e.Write(uint32(img.Base), img.Data); err != nil {
		return err
	}
	return e.Close(uint32(img.Entry))
}
