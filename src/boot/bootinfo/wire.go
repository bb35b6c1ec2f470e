package bootinfo

import (
	"bytes"
	"fmt"

	"awakening/src/boot/memory"
)

// EntrySize is the packed size of a MemoryRegion on the wire.
const EntrySize = 24

// NameSize is the space reserved for each identification string, including
// its terminating NUL.
const NameSize = 16

// Wire offsets.  Version 1 is what the image packer historically emitted;
// version 2 inserts the identification strings after the header.
const (
	offMagic   = 0
	offVersion = 4

	v1Regions = 8
	v1Count   = v1Regions + Capacity*EntrySize
	v1Init    = v1Count + 8
	V1Size    = v1Init + 24

	v2Implementer = 8
	v2Variant     = v2Implementer + NameSize
	v2Regions     = v2Variant + NameSize
	v2Count       = v2Regions + Capacity*EntrySize
	v2Init        = v2Count + 8
	V2Size        = v2Init + 24
)

// Size returns the wire size of the given layout version.  Unknown later
// versions are read with the newest layout this package knows.
func Size(version uint32) int {
	if version == Version1 {
		return V1Size
	}
	return V2Size
}

// MarshalBinary encodes b with the layout selected by b.Version.
func (b *BootInfo) MarshalBinary() ([]byte, error) {
	return b.Encode(b.Version)
}

// Encode writes b using the layout of version.  The Version field written is
// the one given, so a descriptor can be downgraded for an older consumer.
func (b *BootInfo) Encode(version uint32) ([]byte, error) {
	if version == 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, version)
	}
	if b.RegionCount > Capacity {
		return nil, fmt.Errorf("%w: %d", ErrTooManyRegions, b.RegionCount)
	}
	buf := make([]byte, Size(version))
	o := memory.Order
	o.PutUint32(buf[offMagic:], b.Magic)
	o.PutUint32(buf[offVersion:], version)

	regions, count, init := v1Regions, v1Count, v1Init
	if version != Version1 {
		if err := putName(buf[v2Implementer:v2Implementer+NameSize], b.Implementer); err != nil {
			return nil, err
		}
		if err := putName(buf[v2Variant:v2Variant+NameSize], b.Variant); err != nil {
			return nil, err
		}
		regions, count, init = v2Regions, v2Count, v2Init
	}
	for i, r := range b.Regions {
		e := buf[regions+i*EntrySize:]
		o.PutUint32(e[0:], r.Size)
		o.PutUint64(e[4:], r.BaseAddress)
		o.PutUint64(e[12:], r.Length)
		o.PutUint32(e[20:], r.RegionType)
	}
	o.PutUint64(buf[count:], b.RegionCount)
	o.PutUint64(buf[init:], b.Init.ImageStart)
	o.PutUint64(buf[init+8:], b.Init.ImageLength)
	o.PutUint64(buf[init+16:], b.Init.EntryOffset)
	return buf, nil
}

// UnmarshalBinary decodes a descriptor of any version.  Only the header is
// validated here; fields a version does not carry are left zero.
func (b *BootInfo) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return ErrShort
	}
	o := memory.Order
	magic := o.Uint32(data[offMagic:])
	version := o.Uint32(data[offVersion:])
	if version == 0 {
		return fmt.Errorf("%w: %d", ErrBadVersion, version)
	}
	if len(data) < Size(version) {
		return fmt.Errorf("%w: have %d bytes, version %d needs %d", ErrShort, len(data), version, Size(version))
	}
	*b = BootInfo{Magic: magic, Version: version}

	regions, count, init := v1Regions, v1Count, v1Init
	if version != Version1 {
		b.Implementer = getName(data[v2Implementer : v2Implementer+NameSize])
		b.Variant = getName(data[v2Variant : v2Variant+NameSize])
		regions, count, init = v2Regions, v2Count, v2Init
	}
	for i := range b.Regions {
		e := data[regions+i*EntrySize:]
		b.Regions[i] = MemoryRegion{
			Size:        o.Uint32(e[0:]),
			BaseAddress: o.Uint64(e[4:]),
			Length:      o.Uint64(e[12:]),
			RegionType:  o.Uint32(e[20:]),
		}
	}
	b.RegionCount = o.Uint64(data[count:])
	b.Init = InitProgramDescriptor{
		ImageStart:  o.Uint64(data[init:]),
		ImageLength: o.Uint64(data[init+8:]),
		EntryOffset: o.Uint64(data[init+16:]),
	}
	return nil
}

// Decode parses and validates a descriptor.
func Decode(data []byte) (*BootInfo, error) {
	b := &BootInfo{}
	if err := b.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Store writes b at addr in its own version's layout.
func Store(s memory.Space, addr uint64, b *BootInfo) error {
	buf, err := b.MarshalBinary()
	if err != nil {
		return err
	}
	return s.WriteAt(buf, addr)
}

// Load reads and validates the descriptor placed at addr.
func Load(s memory.Space, addr uint64) (*BootInfo, error) {
	var hdr [8]byte
	if err := s.ReadAt(hdr[:], addr); err != nil {
		return nil, err
	}
	buf := make([]byte, Size(memory.Order.Uint32(hdr[offVersion:])))
	if err := s.ReadAt(buf, addr); err != nil {
		return nil, err
	}
	return Decode(buf)
}

func putName(dst []byte, s string) error {
	if len(s) >= len(dst) {
		return fmt.Errorf("%w: %q (max %d)", ErrNameTooLong, s, len(dst)-1)
	}
	copy(dst, s)
	return nil
}

func getName(src []byte) string {
	if i := bytes.IndexByte(src, 0); i >= 0 {
		src = src[:i]
	}
	return string(src)
}
