package gensyscall

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awakening/src/boot/trap"
)

func writeSource(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestKernelTableIsCurrent(t *testing.T) {
	sources, err := Sources("../../joy")
	require.NoError(t, err)
	pkg, handlers, err := Parse(sources)
	require.NoError(t, err)
	assert.Equal(t, "joy", pkg)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, pkg, handlers))
	want, err := os.ReadFile("../../joy/syscall_table.gen.go")
	require.NoError(t, err)
	assert.Equal(t, string(want), buf.String(), "run go generate in src/joy")
}

func TestPlainFunctions(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "calls.go", `package calls

import "awakening/src/boot/trap"

//syscall:handler num=1 args=2
func Write(argc uint32, f *trap.Frame) int32 { return 0 }

// Exit stops.
//
//syscall:handler num=0
func Exit(argc uint32, f *trap.Frame) int32 { return 0 }

func helper() {}
`)
	pkg, handlers, err := Parse([]string{src})
	require.NoError(t, err)
	assert.Equal(t, "calls", pkg)
	require.Len(t, handlers, 2)
	assert.Equal(t, "Exit", handlers[0].Func)
	assert.Equal(t, "exit", handlers[0].Name())
	assert.Equal(t, "Exit", handlers[0].Expr())
	assert.Equal(t, uint32(2), handlers[1].Argc)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, pkg, handlers))
	assert.Contains(t, buf.String(), "func syscallTable() *trap.Table {")
	assert.Contains(t, buf.String(), `trap.Entry{Num: 1, Name: "write", Argc: 2, Handler: Write},`)
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name string
		body string
		want error
	}{
		{"duplicate", `package p
//syscall:handler num=0
func A(uint32, *trap.Frame) int32 { return 0 }
//syscall:handler num=0
func B(uint32, *trap.Frame) int32 { return 0 }
`, trap.ErrDuplicate},
		{"gap", `package p
//syscall:handler num=0
func A(uint32, *trap.Frame) int32 { return 0 }
//syscall:handler num=2
func B(uint32, *trap.Frame) int32 { return 0 }
`, trap.ErrGap},
		{"unknown key", `package p
//syscall:handler num=0 name=a
func A(uint32, *trap.Frame) int32 { return 0 }
`, nil},
		{"too many args", `package p
//syscall:handler num=0 args=5
func A(uint32, *trap.Frame) int32 { return 0 }
`, nil},
		{"no num", `package p
//syscall:handler args=1
func A(uint32, *trap.Frame) int32 { return 0 }
`, nil},
		{"mixed receivers", `package p
type K struct{}
type L struct{}
//syscall:handler num=0
func (k *K) A(uint32, *trap.Frame) int32 { return 0 }
//syscall:handler num=1
func (l L) B(uint32, *trap.Frame) int32 { return 0 }
`, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			src := writeSource(t, t.TempDir(), "p.go", c.body)
			_, _, err := Parse([]string{src})
			require.Error(t, err)
			if c.want != nil {
				assert.True(t, errors.Is(err, c.want), "got %v", err)
			}
		})
	}
}

func TestSourcesAndStale(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.go", "package p\n")
	writeSource(t, dir, "a_test.go", "package p\n")
	out := writeSource(t, dir, "table"+GeneratedSuffix, "package p\n")

	sources, err := Sources(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{a}, sources)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(a, old, old))
	stale, err := Stale(out, sources)
	require.NoError(t, err)
	assert.False(t, stale)

	require.NoError(t, os.Chtimes(a, time.Now().Add(time.Hour), time.Now().Add(time.Hour)))
	stale, err = Stale(out, sources)
	require.NoError(t, err)
	assert.True(t, stale)

	stale, err = Stale(filepath.Join(dir, "missing.gen.go"), sources)
	require.NoError(t, err)
	assert.True(t, stale)
}
