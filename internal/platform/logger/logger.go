// Package logger provides leveled logging for the badge runtime.
// Every sensor, trigger and quest decision should be traceable through this.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
)

// Logger provides leveled logging with a component tag.
type Logger struct {
	debugLogger *log.Logger
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	debug       *atomic.Bool
	component   string
}

// NewLogger creates a new logger instance writing to stdout/stderr.
func NewLogger() *Logger {
	return newLogger(os.Stdout, os.Stderr, "BADGE")
}

// NewWithWriter sends every level to w. Used by tests and tools.
func NewWithWriter(w io.Writer) *Logger {
	return newLogger(w, w, "BADGE")
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWithWriter(io.Discard)
}

func newLogger(out, errOut io.Writer, tag string) *Logger {
	flags := log.Ldate | log.Ltime | log.Lmicroseconds
	return &Logger{
		debugLogger: log.New(out, "["+tag+"-DEBUG] ", flags),
		infoLogger:  log.New(out, "["+tag+"-INFO] ", flags),
		warnLogger:  log.New(out, "["+tag+"-WARN] ", flags),
		errorLogger: log.New(errOut, "["+tag+"-ERROR] ", flags),
		debug:       new(atomic.Bool),
	}
}

// With returns a logger sharing the same outputs and debug switch but tagged
// with a component name, e.g. "SENSOR" or "QUEST". The tag goes after the
// timestamp, right before the message.
func (l *Logger) With(component string) *Logger {
	child := *l
	child.component = component
	return &child
}

func (l *Logger) format(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if l.component == "" {
		return msg
	}
	return l.component + ": " + msg
}

// SetDebug toggles debug output for this logger and every logger derived via With.
func (l *Logger) SetDebug(enabled bool) {
	l.debug.Store(enabled)
}

// DebugEnabled reports whether debug output is on.
func (l *Logger) DebugEnabled() bool {
	return l.debug.Load()
}

// Debug logs verbose diagnostics, only when debug output is enabled.
func (l *Logger) Debug(format string, args ...any) {
	if !l.debug.Load() {
		return
	}
	l.debugLogger.Output(2, l.format(format, args...))
}

// Info logs informational messages.
func (l *Logger) Info(format string, args ...any) {
	l.infoLogger.Output(2, l.format(format, args...))
}

// Warn logs warning messages.
func (l *Logger) Warn(format string, args ...any) {
	l.warnLogger.Output(2, l.format(format, args...))
}

// Error logs error messages.
func (l *Logger) Error(format string, args ...any) {
	l.errorLogger.Output(2, l.format(format, args...))
}

// Event logs a gameplay event with its actor.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.infoLogger.Output(2, l.format("[EVENT:%s] Actor:%s | %s", eventType, actorID, details))
}
