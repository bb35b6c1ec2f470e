// Package board keeps the boards an image can be built for.  A board is
// anything that can fill in a BootInfo: compiled in boards register
// themselves by name, others are described in YAML.
package board

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"awakening/src/boot/bootinfo"
)

var ErrUnknownBoard = errors.New("board: unknown board")
var ErrUnknownType = errors.New("board: unknown region type")

var (
	mu       sync.Mutex
	registry = map[string]bootinfo.Board{}
)

// Register makes b available under name.  Registering a name twice replaces
// the first.
func Register(name string, b bootinfo.Board) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = b
}

func Lookup(name string) (bootinfo.Board, error) {
	mu.Lock()
	defer mu.Unlock()
	b, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownBoard, name)
	}
	return b, nil
}

// Names lists the registered boards, sorted.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve treats a name ending in .yaml or .yml as a description file and
// anything else as a registered board.
func Resolve(nameOrPath string) (bootinfo.Board, error) {
	switch filepath.Ext(nameOrPath) {
	case ".yaml", ".yml":
		d, err := Load(nameOrPath)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return Lookup(nameOrPath)
}

// Size is a byte count that can be written as a number (hex allowed) or a
// human size such as "192KiB".
type Size uint64

func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	text := strings.TrimSpace(value.Value)
	if n, err := strconv.ParseUint(text, 0, 64); err == nil {
		*s = Size(n)
		return nil
	}
	n, err := humanize.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("board: line %d: bad size %q: %w", value.Line, text, err)
	}
	*s = Size(n)
	return nil
}

// MarshalYAML writes the human form when it reads back exactly.
func (s Size) MarshalYAML() (interface{}, error) {
	human := humanize.IBytes(uint64(s))
	if n, err := humanize.ParseBytes(human); err == nil && n == uint64(s) {
		return strings.ReplaceAll(human, " ", ""), nil
	}
	return fmt.Sprintf("%#x", uint64(s)), nil
}

var regionTypes = map[string]uint32{
	"available": bootinfo.RegionAvailable,
	"reserved":  bootinfo.RegionReserved,
	"acpi":      bootinfo.RegionACPI,
	"nvs":       bootinfo.RegionNVS,
	"bad":       bootinfo.RegionBadRAM,
}

type Region struct {
	Name   string `yaml:"name,omitempty"`
	Base   uint64 `yaml:"base"`
	Length Size   `yaml:"length"`
	// Type is one of available, reserved, acpi, nvs, bad or a number.
	// Empty means available.
	Type string `yaml:"type,omitempty"`
}

func (r Region) regionType() (uint32, error) {
	if r.Type == "" {
		return bootinfo.RegionAvailable, nil
	}
	t, ok := regionTypes[strings.ToLower(r.Type)]
	if !ok {
		if n, err := strconv.ParseUint(r.Type, 0, 32); err == nil {
			return uint32(n), nil
		}
		return 0, fmt.Errorf("%w %q", ErrUnknownType, r.Type)
	}
	return t, nil
}

// Description is a board written down instead of compiled in.
type Description struct {
	Name        string   `yaml:"name"`
	Implementer string   `yaml:"implementer,omitempty"`
	Variant     string   `yaml:"variant,omitempty"`
	Regions     []Region `yaml:"regions"`
}

func (d *Description) Describe(b *bootinfo.BootInfo) error {
	if d.Implementer != "" {
		b.Implementer = d.Implementer
	}
	if d.Variant != "" {
		b.Variant = d.Variant
	}
	for _, r := range d.Regions {
		t, err := r.regionType()
		if err != nil {
			return err
		}
		if err := b.AddRegion(r.Base, uint64(r.Length), t); err != nil {
			return fmt.Errorf("board %s: region %s: %w", d.Name, r.Name, err)
		}
	}
	return nil
}

// Parse reads a description and checks it describes a valid BootInfo.
func Parse(data []byte) (*Description, error) {
	d := &Description{}
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	if err := d.Describe(bootinfo.New()); err != nil {
		return nil, err
	}
	return d, nil
}

func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if d.Name == "" {
		d.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return d, nil
}

// Capture records what b writes into a Description, so a compiled in board
// can be written out as YAML.
func Capture(name string, b bootinfo.Board) (*Description, error) {
	bi := bootinfo.New()
	if err := b.Describe(bi); err != nil {
		return nil, err
	}
	d := &Description{Name: name, Implementer: bi.Implementer, Variant: bi.Variant}
	for _, r := range bi.Memory() {
		d.Regions = append(d.Regions, Region{Base: r.BaseAddress, Length: Size(r.Length), Type: typeName(r.RegionType)})
	}
	return d, nil
}

func typeName(t uint32) string {
	for name, v := range regionTypes {
		if v == t {
			return name
		}
	}
	return strconv.FormatUint(uint64(t), 10)
}
