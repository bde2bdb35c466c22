// Package logger provides a small, centralized logging facility with
// configurable verbosity.
//
// Verbosity levels (in increasing order):
//
//	Error < Warn < Info < Debug < Trace
//
// Example usage:
//
//	logger.SetLevel(logger.Debug)
//	logger.Infof("evaluating %d quotes", len(quotes))
//	logger.Debugf("row %s unsolvable: %v", symbol, err)
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level represents a logging verbosity level.
// Higher values mean more verbose logging.
type Level int32

const (
	Error Level = iota // Error logs only failures.
	Warn               // Warn logs recoverable anomalies such as skipped rows.
	Info               // Info logs high-level progress.
	Debug              // Debug logs per-quote diagnostics.
	Trace              // Trace logs very fine-grained details.
)

var levelNames = map[string]Level{
	"error": Error,
	"warn":  Warn,
	"info":  Info,
	"debug": Debug,
	"trace": Trace,
}

// current is read from solver worker goroutines, so it is atomic.
var current atomic.Int32

var std = log.New(os.Stderr, "", log.LstdFlags|log.Lshortfile)

func init() {
	current.Store(int32(Info))
}

// SetLevel sets the global verbosity.
func SetLevel(l Level) {
	current.Store(int32(l))
}

// SetVerbosity sets the verbosity from a numeric CLI flag (0=error ... 4=trace).
func SetVerbosity(v int) {
	SetLevel(Level(v))
}

// CurrentLevel returns the active verbosity.
func CurrentLevel() Level {
	return Level(current.Load())
}

// SetOutput redirects log output, e.g. to a buffer in tests.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// ParseLevel maps "error", "warn", "info", "debug" or "trace" to a Level.
func ParseLevel(s string) (Level, error) {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l, nil
	}
	return Info, fmt.Errorf("unknown log level %q", s)
}

func (l Level) String() string {
	for name, lvl := range levelNames {
		if lvl == l {
			return name
		}
	}
	return fmt.Sprintf("level(%d)", int32(l))
}

// Enabled reports whether messages at l are currently written.
func Enabled(l Level) bool {
	return CurrentLevel() >= l
}

func logf(l Level, prefix, format string, args ...any) {
	if Enabled(l) {
		// depth 3: logf -> Xxxf -> caller
		_ = std.Output(3, prefix+fmt.Sprintf(format, args...))
	}
}

// Errorf logs an error-level message.
func Errorf(format string, args ...any) {
	logf(Error, "[ERROR] ", format, args...)
}

// Warnf logs a warning.
func Warnf(format string, args ...any) {
	logf(Warn, "[WARN]  ", format, args...)
}

// Infof logs an informational message.
func Infof(format string, args ...any) {
	logf(Info, "[INFO]  ", format, args...)
}

// Debugf logs debugging information.
func Debugf(format string, args ...any) {
	logf(Debug, "[DEBUG] ", format, args...)
}

// Tracef logs very detailed execution traces.
// Use this sparingly due to high volume.
func Tracef(format string, args ...any) {
	logf(Trace, "[TRACE] ", format, args...)
}
