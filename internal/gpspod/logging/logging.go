// Package logging provides the three-tier (ops/diag/trace) logger shared
// by the gpspod core packages.
package logging

import (
	"io"
	"log"
)

// Level selects which of a Logger's three streams a message is written to.
type Level int

const (
	// Ops carries actionable warnings and errors: retried commands,
	// partial decodes, device errors. Enabled by default.
	Ops Level = iota
	// Diag carries day-to-day diagnostics: command timings, cache hits.
	Diag
	// Trace carries high-frequency protocol telemetry: every packet.
	Trace
)

// Logger multiplexes a named component's messages across three streams.
// Any stream left nil via New is silently dropped.
type Logger struct {
	ops   *log.Logger
	diag  *log.Logger
	trace *log.Logger
}

// New builds a Logger for the given component name. Pass nil for any
// writer to disable that stream.
func New(name string, ops, diag, trace io.Writer) *Logger {
	prefix := "[" + name + "] "
	return &Logger{
		ops:   newStd(prefix, ops),
		diag:  newStd(prefix, diag),
		trace: newStd(prefix, trace),
	}
}

// Default returns a Logger with only the ops stream enabled, writing to
// the standard logger's destination.
func Default(name string) *Logger {
	return New(name, log.Writer(), nil, nil)
}

func newStd(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream.
func (l *Logger) Opsf(format string, args ...interface{}) {
	if l != nil && l.ops != nil {
		l.ops.Printf(format, args...)
	}
}

// Diagf logs to the diag stream.
func (l *Logger) Diagf(format string, args ...interface{}) {
	if l != nil && l.diag != nil {
		l.diag.Printf(format, args...)
	}
}

// Tracef logs to the trace stream.
func (l *Logger) Tracef(format string, args ...interface{}) {
	if l != nil && l.trace != nil {
		l.trace.Printf(format, args...)
	}
}
