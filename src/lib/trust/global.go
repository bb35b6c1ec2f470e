package trust

import (
	"io"
	"os"
)

// std is what the package level functions use.  Boot code that runs before a
// console exists should call SetOutput(nil) (or leave the board to do it).
var std = NewLogger(os.Stderr, "")

// Default returns the package level logger.
func Default() *Logger {
	return std
}

func SetOutput(out io.Writer) {
	std.SetOutput(out)
}

func SetLevel(mask MaskLevel) MaskLevel {
	return std.SetLevel(mask)
}

func Level() MaskLevel {
	return std.Level()
}

func LevelToString() string {
	return std.LevelToString()
}

func Fatalf(exitCode int, format string, params ...interface{}) {
	std.Fatalf(exitCode, format, params...)
}

func Errorf(format string, params ...interface{}) {
	std.Errorf(format, params...)
}

func Warnf(format string, params ...interface{}) {
	std.Warnf(format, params...)
}

func Infof(format string, params ...interface{}) {
	std.Infof(format, params...)
}

func Debugf(format string, params ...interface{}) {
	std.Debugf(format, params...)
}

func Statsf(category string, format string, params ...interface{}) {
	std.Statsf(category, format, params...)
}
