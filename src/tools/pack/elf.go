package pack

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

var ErrNotELF = errors.New("pack: file is not elf format")
var ErrNotARM32 = errors.New("pack: not a 32 bit ARM executable")
var ErrNoLoadable = errors.New("pack: no loadable segment")

// Segment is one PT_LOAD program header with its file contents.  Memsz past
// len(Data) is zero fill and takes no room in the image.
type Segment struct {
	Vaddr uint64
	Paddr uint64
	Memsz uint64
	Align uint64
	Data  []byte
}

// Section is an allocated section, with the address it is loaded from.
type Section struct {
	Name string
	Addr uint64
	Load uint64
	Size uint64
}

// Program is what the packer needs from an executable.
type Program struct {
	Name     string
	Entry    uint64
	Segments []Segment
	Sections []Section
}

func OpenELF(path string) (*Program, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	p, err := ReadELF(fp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.Name = path
	return p, nil
}

// ReadELF reads the loadable parts of a 32 bit ARM executable.
func ReadELF(r io.ReaderAt) (*Program, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		var fe *elf.FormatError
		if errors.As(err, &fe) {
			return nil, ErrNotELF
		}
		return nil, err
	}
	defer f.Close()
	if f.Class != elf.ELFCLASS32 || f.Machine != elf.EM_ARM {
		return nil, fmt.Errorf("%w (%s, %s)", ErrNotARM32, f.Class, f.Machine)
	}
	p := &Program{Entry: f.Entry}
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil && err != io.EOF {
			return nil, fmt.Errorf("pack: segment at %#x: %w", prog.Paddr, err)
		}
		p.Segments = append(p.Segments, Segment{
			Vaddr: prog.Vaddr,
			Paddr: prog.Paddr,
			Memsz: prog.Memsz,
			Align: prog.Align,
			Data:  data,
		})
	}
	if len(p.Segments) == 0 {
		return nil, ErrNoLoadable
	}
	sort.Slice(p.Segments, func(i, j int) bool { return p.Segments[i].Paddr < p.Segments[j].Paddr })
	for _, s := range f.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Size == 0 {
			continue
		}
		sec := Section{Name: s.Name, Addr: s.Addr, Size: s.Size, Load: s.Addr}
		for _, seg := range p.Segments {
			if s.Addr >= seg.Vaddr && s.Addr < seg.Vaddr+seg.Memsz {
				sec.Load = seg.Paddr + (s.Addr - seg.Vaddr)
				break
			}
		}
		p.Sections = append(p.Sections, sec)
	}
	return p, nil
}

// Section looks an allocated section up by name.
func (p *Program) Section(name string) (Section, bool) {
	for _, s := range p.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// Bounds is the lowest and one past the highest physical address with file
// contents.
func (p *Program) Bounds() (lo, hi uint64) {
	lo = ^uint64(0)
	for _, s := range p.Segments {
		if s.Paddr < lo {
			lo = s.Paddr
		}
		if end := s.Paddr + uint64(len(s.Data)); end > hi {
			hi = end
		}
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// MaxAlign is the strictest segment alignment, at least 4.
func (p *Program) MaxAlign() uint64 {
	a := uint64(4)
	for _, s := range p.Segments {
		if s.Align > a {
			a = s.Align
		}
	}
	return a
}

// Flatten lays the segments out by physical address, starting at the lowest.
func (p *Program) Flatten() (uint64, []byte) {
	lo, hi := p.Bounds()
	out := make([]byte, hi-lo)
	for _, s := range p.Segments {
		copy(out[s.Paddr-lo:], s.Data)
	}
	return lo, out
}
