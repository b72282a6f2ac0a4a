// SPDX-License-Identifier: MIT
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// --- Global Logger State ---

// currentLevel holds the current global log level atomically.
var currentLevel atomic.Uint32

// logger is the standard logger instance used internally, date and time
// with microseconds so per-cycle timing is visible in the output.
var logger = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects all log output. Intended for tests and for the
// terminal display, which owns stderr while it is running. A nil writer
// restores stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	logger.SetOutput(w)
}

func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

func emit(level LogLevel, prefix, msg string) {
	if !shouldLog(level) {
		return
	}
	logger.Printf("[%s] %s%s", level, prefix, msg)
}

// --- Public Logging Functions ---

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...any) { emit(LevelDebug, "", fmt.Sprintf(format, v...)) }

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...any) { emit(LevelInfo, "", fmt.Sprintf(format, v...)) }

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...any) { emit(LevelWarn, "", fmt.Sprintf(format, v...)) }

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...any) { emit(LevelError, "", fmt.Sprintf(format, v...)) }

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...any) {
	logger.Fatalf("[%s] %s", LevelFatal, fmt.Sprintf(format, v...))
}

// Info logs an info message if the level is appropriate.
func Info(v ...any) { emit(LevelInfo, "", fmt.Sprint(v...)) }

// Fatal logs a fatal message and exits the application.
func Fatal(v ...any) {
	logger.Fatalf("[%s] %s", LevelFatal, fmt.Sprint(v...))
}

// Logger prefixes every line with the name of the component that produced
// it, e.g. "Loop: overflow on cycle 12".
type Logger struct {
	prefix string
}

// For returns a Logger scoped to component.
func For(component string) Logger {
	return Logger{prefix: component + ": "}
}

func (l Logger) Debugf(format string, v ...any) {
	emit(LevelDebug, l.prefix, fmt.Sprintf(format, v...))
}

func (l Logger) Infof(format string, v ...any) {
	emit(LevelInfo, l.prefix, fmt.Sprintf(format, v...))
}

func (l Logger) Warnf(format string, v ...any) {
	emit(LevelWarn, l.prefix, fmt.Sprintf(format, v...))
}

func (l Logger) Errorf(format string, v ...any) {
	emit(LevelError, l.prefix, fmt.Sprintf(format, v...))
}
