// Package trust is the leveled logger used from the first instruction after
// bring-up through the kernel. It never allocates a sink of its own: the
// caller hands it an io.Writer, which on a board is the debug console and on
// the host is stderr.
package trust

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

type MaskLevel int

const (
	Nothing   MaskLevel = 0x0
	ErrorMask MaskLevel = 0x1
	WarnMask  MaskLevel = 0x2
	InfoMask  MaskLevel = 0x4
	DebugMask MaskLevel = 0x8
	StatsMask MaskLevel = 0x10
	fatalMask MaskLevel = 0x80
)

const defaultMask = fatalMask | StatsMask | ErrorMask | WarnMask | InfoMask

// Logger writes masked, prefixed lines to a sink. The zero value is not
// usable, use NewLogger.
type Logger struct {
	mu     sync.Mutex
	level  MaskLevel
	prefix string
	out    io.Writer
	exit   func(code int)
}

// NewLogger returns a Logger writing to out with the default mask (everything
// but debug). A nil out discards all output.
func NewLogger(out io.Writer, prefix string) *Logger {
	if out == nil {
		out = io.Discard
	}
	return &Logger{
		level:  defaultMask,
		prefix: prefix,
		out:    out,
		exit:   os.Exit,
	}
}

// SetExit replaces the function Fatalf calls after printing. On a board this
// is the diagnostic halt.
func (l *Logger) SetExit(fn func(code int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exit = fn
}

// SetOutput changes the sink.
func (l *Logger) SetOutput(out io.Writer) {
	if out == nil {
		out = io.Discard
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = out
}

// SetLevel lets you set an error mask directly. You can pass in something like
// ErrorMask | DebugMask to control exactly what gets printed.  Levels are
// cumulative: asking for InfoMask also enables warnings and errors.  It returns
// the previous mask.
func (l *Logger) SetLevel(mask MaskLevel) MaskLevel {
	result := Nothing
	switch {
	case mask&DebugMask > 0:
		result |= DebugMask
		fallthrough
	case mask&InfoMask > 0:
		result |= InfoMask
		fallthrough
	case mask&WarnMask > 0:
		result |= WarnMask
		fallthrough
	case mask&ErrorMask > 0:
		result |= ErrorMask
	}
	result |= mask & StatsMask
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.level & 0x1f
	l.level = result | fatalMask
	return r
}

func (l *Logger) Level() MaskLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level & 0x1f
}

var levelNames = []struct {
	mask MaskLevel
	name string
}{
	{ErrorMask, "error"},
	{WarnMask, "warn"},
	{InfoMask, "info"},
	{DebugMask, "debug"},
	{StatsMask, "stats"},
}

// LevelToString names the enabled levels, e.g. "error warn info stats".
func (l *Logger) LevelToString() string {
	level := l.Level()
	var names []string
	for _, n := range levelNames {
		if level&n.mask != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, " ")
}

func (l *Logger) logf(m MaskLevel, format string, params ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level&m == 0 {
		return
	}
	tag := ""
	switch {
	case m&fatalMask > 0:
		tag = "FATAL:"
	case m&ErrorMask > 0:
		tag = "ERROR:"
	case m&WarnMask > 0:
		tag = " WARN:"
	case m&InfoMask > 0:
		tag = " INFO:"
	case m&DebugMask > 0:
		tag = "DEBUG:"
	case m&StatsMask > 0:
		s, ok := params[0].(string)
		if !ok {
			s = "unknown"
		}
		tag = fmt.Sprintf("STATS[%s]:", s)
		params = params[1:]
	}
	if len(format) == 0 || format[len(format)-1] != '\n' {
		format += "\n"
	}
	fmt.Fprintf(l.out, "%s%s", l.prefix, tag)
	fmt.Fprintf(l.out, format, params...)
}

// Fatalf logs regardless of the mask and then calls the exit function with
// exitCode.
func (l *Logger) Fatalf(exitCode int, format string, params ...interface{}) {
	l.logf(fatalMask, format, params...)
	l.mu.Lock()
	exit := l.exit
	l.mu.Unlock()
	exit(exitCode)
}

func (l *Logger) Errorf(format string, params ...interface{}) {
	l.logf(ErrorMask, format, params...)
}

func (l *Logger) Warnf(format string, params ...interface{}) {
	l.logf(WarnMask, format, params...)
}

func (l *Logger) Infof(format string, params ...interface{}) {
	l.logf(InfoMask, format, params...)
}

func (l *Logger) Debugf(format string, params ...interface{}) {
	l.logf(DebugMask, format, params...)
}

// Statsf reports counters under category, e.g. "syscall", so a reader can
// grep one kind of statistic out of the console.
func (l *Logger) Statsf(category string, format string, params ...interface{}) {
	l.logf(StatsMask, format, append([]interface{}{category}, params...)...)
}
