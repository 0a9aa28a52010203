// Package diag is the verbosity-gated diagnostic logger the front end
// and its children use for operational trace output (not the audit
// trail — see internal/audit for that).
package diag

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is the verbosity tier a message is logged at. A logger only
// emits a message when its configured level is >= the message's Level.
type Level int

const (
	// Quiet suppresses everything but Error.
	Quiet Level = iota
	// Normal is the default: Info and Error, no Debug.
	Normal
	// Verbose emits Debug as well.
	Verbose
)

// Logger writes leveled diagnostic lines to an underlying writer. It is
// safe for concurrent use; each component constructs its own with New or
// NewStderr.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	level Level
}

// New returns a Logger writing to out at the given level.
func New(out io.Writer, level Level) *Logger {
	return &Logger{out: out, level: level}
}

// NewStderr returns a Logger writing to os.Stderr, the front end's
// default destination for diagnostics (stdout is reserved for command
// output and AI replies).
func NewStderr(level Level) *Logger {
	return New(os.Stderr, level)
}

// SetLevel changes the logger's verbosity at runtime; the new level
// applies from the next message logged. The /verbose control command and
// the backend's `VERBOSE:` handling do not call it.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Level returns the logger's current verbosity.
func (l *Logger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Debugf logs at Verbose.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf(Verbose, "DEBUG", format, args...)
}

// Infof logs at Normal.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf(Normal, "INFO", format, args...)
}

// Errorf logs at Quiet — always emitted regardless of configured level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logf(Quiet, "ERROR", format, args...)
}

func (l *Logger) logf(msgLevel Level, tag, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level < msgLevel {
		return
	}
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(l.out, "[%s] %s %s\n", ts, tag, fmt.Sprintf(format, args...))
}
