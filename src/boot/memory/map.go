package memory

import (
	"fmt"
	"sort"
)

type Prot int

const (
	ProtNone Prot = 0
	ProtRead Prot = 1 << (iota - 1)
	ProtWrite
	ProtExec

	ProtAll = ProtRead | ProtWrite | ProtExec
)

func (p Prot) String() string {
	b := []byte("---")
	if p&ProtRead != 0 {
		b[0] = 'r'
	}
	if p&ProtWrite != 0 {
		b[1] = 'w'
	}
	if p&ProtExec != 0 {
		b[2] = 'x'
	}
	return string(b)
}

// Region is one contiguous piece of backing store.
type Region struct {
	Name string
	Base uint64
	Prot Prot
	Data []byte
}

func (r *Region) Span() Span {
	return NewSpan(r.Base, uint64(len(r.Data)))
}

// Map is a Space made of non-overlapping regions.  It is what the host
// simulator and the image tools use in place of real flash and SRAM.
type Map struct {
	regions []*Region
}

func NewMap() *Map {
	return &Map{}
}

// Add maps size bytes at base.  Overlapping an existing region is an error.
func (m *Map) Add(name string, base, size uint64, prot Prot) (*Region, error) {
	r := &Region{Name: name, Base: base, Prot: prot, Data: make([]byte, size)}
	span := r.Span()
	for _, other := range m.regions {
		o := other.Span()
		if span.Start < o.End && o.Start < span.End {
			return nil, fmt.Errorf("region %s %v overlaps %s %v", name, span, other.Name, o)
		}
	}
	m.regions = append(m.regions, r)
	sort.Slice(m.regions, func(i, j int) bool { return m.regions[i].Base < m.regions[j].Base })
	return r, nil
}

// MustAdd is Add for fixed layouts set up by tests and tools.
func (m *Map) MustAdd(name string, base, size uint64, prot Prot) *Region {
	r, err := m.Add(name, base, size, prot)
	if err != nil {
		panic(err)
	}
	return r
}

func (m *Map) Regions() []*Region {
	return m.regions
}

func (m *Map) Region(name string) *Region {
	for _, r := range m.regions {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Writable returns the spans of all regions that permit writes.
func (m *Map) Writable() []Span {
	var result []Span
	for _, r := range m.regions {
		if r.Prot&ProtWrite != 0 {
			result = append(result, r.Span())
		}
	}
	return result
}

func (m *Map) find(addr uint64, n int) *Region {
	for _, r := range m.regions {
		if r.Span().Contains(addr, uint64(n)) {
			return r
		}
	}
	return nil
}

func (m *Map) ReadAt(p []byte, addr uint64) error {
	if len(p) == 0 {
		return nil
	}
	r := m.find(addr, len(p))
	if r == nil {
		return &AccessError{Op: "read", Addr: addr, Len: len(p), Err: ErrUnmapped}
	}
	copy(p, r.Data[addr-r.Base:])
	return nil
}

func (m *Map) WriteAt(p []byte, addr uint64) error {
	if len(p) == 0 {
		return nil
	}
	r := m.find(addr, len(p))
	if r == nil {
		return &AccessError{Op: "write", Addr: addr, Len: len(p), Err: ErrUnmapped}
	}
	if r.Prot&ProtWrite == 0 {
		return &AccessError{Op: "write", Addr: addr, Len: len(p), Err: ErrReadOnly}
	}
	copy(r.Data[addr-r.Base:], p)
	return nil
}

// Load places p at addr regardless of protection.  It models the programmer
// writing flash, not the running core.
func (m *Map) Load(p []byte, addr uint64) error {
	r := m.find(addr, len(p))
	if r == nil {
		return &AccessError{Op: "load", Addr: addr, Len: len(p), Err: ErrUnmapped}
	}
	copy(r.Data[addr-r.Base:], p)
	return nil
}
