package anticipation

import "fmt"

// Image is a Sink that collects everything into one contiguous buffer.
// Holes between records read as erased flash (0xff).
type Image struct {
	Base  uint32
	Data  []byte
	Entry uint32

	entrySet bool
}

func (m *Image) Write(addr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if m.Data == nil {
		m.Base = addr
	}
	if addr < m.Base {
		grow := m.Base - addr
		m.Data = append(erased(int(grow)), m.Data...)
		m.Base = addr
	}
	off := int(addr - m.Base)
	if end := off + len(data); end > len(m.Data) {
		m.Data = append(m.Data, erased(end-len(m.Data))...)
	}
	copy(m.Data[off:], data)
	return nil
}

func (m *Image) SetEntryPoint(addr uint32) {
	m.Entry = addr
	m.entrySet = true
}

func (m *Image) EntryPointIsSet() bool {
	return m.entrySet
}

// At returns n bytes at addr, which must lie inside the image.
func (m *Image) At(addr uint32, n int) ([]byte, error) {
	if addr < m.Base || int(addr-m.Base)+n > len(m.Data) {
		return nil, fmt.Errorf("hex: %#08x+%d outside image %#08x+%d", addr, n, m.Base, len(m.Data))
	}
	off := int(addr - m.Base)
	return m.Data[off : off+n], nil
}

func erased(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 0xff
	}
	return b
}
