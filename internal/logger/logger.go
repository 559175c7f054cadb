// ABOUTME: Leveled logging over the standard log package with verbosity control
// ABOUTME: Named loggers prefix every line with the component that wrote it

package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
)

// verbose is read from pipeline workers while the binary may still toggle it.
var verbose atomic.Bool

// SetVerbose enables or disables verbose (DEBUG) logging
func SetVerbose(v bool) {
	verbose.Store(v)
}

// IsVerbose returns current verbose setting
func IsVerbose() bool {
	return verbose.Load()
}

// SetOutput sets the output destination for logs. nil restores stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	log.SetOutput(w)
}

func logf(level, prefix, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if prefix != "" {
		log.Printf("[%s] [%s] %s", level, prefix, msg)
		return
	}
	log.Printf("[%s] %s", level, msg)
}

// Debug logs at DEBUG level (only shown when verbose)
func Debug(format string, args ...any) {
	if IsVerbose() {
		logf("DEBUG", "", format, args...)
	}
}

// Info logs at INFO level (always shown)
func Info(format string, args ...any) {
	logf("INFO", "", format, args...)
}

// Warn logs at WARN level (always shown)
func Warn(format string, args ...any) {
	logf("WARN", "", format, args...)
}

// Error logs at ERROR level (always shown)
func Error(format string, args ...any) {
	logf("ERROR", "", format, args...)
}

// Logger writes through the package-level output with a fixed component tag.
type Logger struct {
	component string
}

// Named returns a logger whose lines carry [component] after the level.
func Named(component string) *Logger {
	return &Logger{component: component}
}

// Named derives a child logger, joining components with a slash.
func (l *Logger) Named(component string) *Logger {
	if l.component == "" {
		return Named(component)
	}
	return Named(l.component + "/" + component)
}

func (l *Logger) Debug(format string, args ...any) {
	if IsVerbose() {
		logf("DEBUG", l.component, format, args...)
	}
}

func (l *Logger) Info(format string, args ...any)  { logf("INFO", l.component, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { logf("WARN", l.component, format, args...) }
func (l *Logger) Error(format string, args ...any) { logf("ERROR", l.component, format, args...) }
