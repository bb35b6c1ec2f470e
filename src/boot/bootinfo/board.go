package bootinfo

// Board is the one inbound contract board specific code implements.  Describe
// receives a descriptor that is zeroed apart from magic, version and the
// "Unknown" identity, and fills in the identity and memory map.
type Board interface {
	Describe(b *BootInfo) error
}

// BoardFunc adapts a plain function to Board.
type BoardFunc func(b *BootInfo) error

func (f BoardFunc) Describe(b *BootInfo) error {
	return f(b)
}
