package startup

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"awakening/src/boot/memory"
	"awakening/src/boot/reloc"
)

// Layout is the linker contract: where each section lives in ram and where
// its initial contents are in the image.  A zero span means the section is
// absent.
type Layout struct {
	BSS memory.Span `yaml:"bss"`

	Data     memory.Span `yaml:"data"`
	DataLoad uint64      `yaml:"data_load"`

	GOT     memory.Span `yaml:"got"`
	GOTLoad uint64      `yaml:"got_load"`

	Rel     memory.Span `yaml:"rel"`
	RelLoad uint64      `yaml:"rel_load"`

	Vectors     memory.Span `yaml:"vectors"`
	VectorsLoad uint64      `yaml:"vectors_load"`

	InitArray memory.Span `yaml:"init_array"`
	FiniArray memory.Span `yaml:"fini_array"`

	// RAM bounds every relocation fixup.
	RAM []memory.Span `yaml:"ram"`

	// BootInfoAddr is where the encoded descriptor is left for the kernel.
	// Zero means it is only handed over in memory.
	BootInfoAddr uint64 `yaml:"bootinfo"`
}

// LinkerSymbols are the symbols the target linker script defines for
// LinkerLayout, in Layout field order.  They bound sections bring-up owns;
// the runtime's own .bss and .data are not among them.
var LinkerSymbols = []string{
	"__bss_start", "__bss_end",
	"__data_start", "__data_end", "__data",
	"__got_start", "__got_end", "__got_load",
	"__rel_start", "__rel_end", "__rel_load",
	"__vector_start", "__vector_end", "__vector_load",
	"__init_array_start", "__init_array_end",
	"__fini_array_start", "__fini_array_end",
	"__ram_start", "__ram_end",
	"__bootinfo",
}

// ParseLayout reads a layout written in YAML.  Addresses may be written in
// hex.
func ParseLayout(data []byte) (Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return l, fmt.Errorf("startup: parse layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return l, err
	}
	return l, nil
}

func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, err
	}
	return ParseLayout(data)
}

// Validate rejects inverted spans and tables that are not whole words.
func (l Layout) Validate() error {
	named := []struct {
		name string
		span memory.Span
	}{
		{"bss", l.BSS}, {"data", l.Data}, {"got", l.GOT}, {"rel", l.Rel},
		{"vectors", l.Vectors}, {"init_array", l.InitArray}, {"fini_array", l.FiniArray},
	}
	for _, n := range named {
		if !n.span.Valid() {
			return fmt.Errorf("startup: %s %s: %w", n.name, n.span, memory.ErrInvertedSpan)
		}
	}
	for _, n := range named[4:] {
		if n.span.Len()%4 != 0 {
			return fmt.Errorf("startup: %s %s is not a whole number of words", n.name, n.span)
		}
	}
	for _, r := range l.RAM {
		if !r.Valid() {
			return fmt.Errorf("startup: ram %s: %w", r, memory.ErrInvertedSpan)
		}
	}
	return nil
}

// Plan is the part of the layout the relocation engine works from.
func (l Layout) Plan() reloc.Plan {
	return reloc.Plan{
		GOT:         l.GOT,
		GOTLoad:     l.GOTLoad,
		Rel:         l.Rel,
		RelLoad:     l.RelLoad,
		Vectors:     l.Vectors,
		VectorsLoad: l.VectorsLoad,
		Writable:    l.RAM,
	}
}
