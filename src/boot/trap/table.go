package trap

import (
	"errors"
	"fmt"
	"sort"
)

// ENOSYS is what an unknown call number returns in r0.
const ENOSYS int32 = -38

// Handler runs one system call.  argc is the argument count the call was
// declared with; the arguments themselves are in the frame.
type Handler func(argc uint32, args *Frame) int32

type Entry struct {
	Num     uint8
	Name    string
	Argc    uint32
	Handler Handler
}

var ErrDuplicate = errors.New("trap: duplicate system call number")
var ErrGap = errors.New("trap: system call numbers are not dense")
var ErrNilHandler = errors.New("trap: system call without handler")

// Table maps call numbers to handlers.  Numbers run from zero with no
// gaps, so lookup is an index.
type Table struct {
	entries []Entry
}

// NewTable checks the entries and builds the table.  Order of the arguments
// does not matter.
func NewTable(entries ...Entry) (*Table, error) {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Num < sorted[j].Num })
	for i, e := range sorted {
		if e.Handler == nil {
			return nil, fmt.Errorf("%w: %d (%s)", ErrNilHandler, e.Num, e.Name)
		}
		if i > 0 && sorted[i-1].Num == e.Num {
			return nil, fmt.Errorf("%w: %d (%s and %s)", ErrDuplicate, e.Num, sorted[i-1].Name, e.Name)
		}
		if int(e.Num) != i {
			return nil, fmt.Errorf("%w: expected %d, found %d (%s)", ErrGap, i, e.Num, e.Name)
		}
	}
	return &Table{entries: sorted}, nil
}

// MustTable is NewTable for tables generated at build time, where a bad
// table is a build error.
func MustTable(entries ...Entry) *Table {
	t, err := NewTable(entries...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) Lookup(num uint8) (Entry, bool) {
	if t == nil || int(num) >= len(t.entries) {
		return Entry{}, false
	}
	return t.entries[num], true
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	return append([]Entry(nil), t.entries...)
}

// InvalidSyscall is what unknown numbers are routed to.
func InvalidSyscall(argc uint32, args *Frame) int32 {
	return ENOSYS
}
