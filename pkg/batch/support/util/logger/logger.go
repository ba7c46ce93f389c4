// Package logger provides the process-wide leveled logger used by the collector.
// It wraps the standard `log` package; messages below the configured level are dropped.
package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
)

// LogLevel is a type representing the logging level.
type LogLevel int32

const (
	// LevelDebug logs request-level detail (pacing delays, identity rotation, SQL).
	LevelDebug LogLevel = iota
	// LevelInfo logs session and batch progress.
	LevelInfo
	// LevelWarn logs retries, soft limits and recoverable anomalies.
	LevelWarn
	// LevelError logs failed items and infrastructure errors.
	LevelError
	// LevelFatal logs only messages that terminate the process.
	LevelFatal
	// LevelSilent suppresses everything except Fatalf.
	LevelSilent
)

var logLevel atomic.Int32

func init() {
	logLevel.Store(int32(LevelInfo))
}

// ParseLevel converts a level name ("DEBUG", "INFO", "WARN", "ERROR", "FATAL", "SILENT")
// into a LogLevel. The second return value is false for unknown names.
func ParseLevel(level string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG", "TRACE":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	case "SILENT":
		return LevelSilent, true
	}
	return LevelInfo, false
}

// SetLogLevel sets the global log level.
// An unknown value falls back to INFO and a notice is printed.
func SetLogLevel(level string) {
	lvl, ok := ParseLevel(level)
	if !ok {
		fmt.Printf("Unknown log level '%s' specified. Defaulting to INFO level.\n", level)
	}
	logLevel.Store(int32(lvl))
}

// GetLogLevel returns the current global log level.
func GetLogLevel() LogLevel {
	return LogLevel(logLevel.Load())
}

// SetOutput redirects log output, e.g. to a file or a test buffer.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func enabled(level LogLevel) bool {
	return GetLogLevel() <= level
}

// Debugf formats and outputs a DEBUG level log message.
func Debugf(format string, v ...interface{}) {
	if enabled(LevelDebug) {
		log.Printf("[DEBUG] "+format, v...)
	}
}

// Infof formats and outputs an INFO level log message.
func Infof(format string, v ...interface{}) {
	if enabled(LevelInfo) {
		log.Printf("[INFO] "+format, v...)
	}
}

// Warnf formats and outputs a WARN level log message.
func Warnf(format string, v ...interface{}) {
	if enabled(LevelWarn) {
		log.Printf("[WARN] "+format, v...)
	}
}

// Errorf formats and outputs an ERROR level log message.
func Errorf(format string, v ...interface{}) {
	if enabled(LevelError) {
		log.Printf("[ERROR] "+format, v...)
	}
}

// Fatalf logs the message and terminates the program with os.Exit(1).
func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}

// Component prefixes every message with a bracketed component name,
// e.g. "[INFO] [BatchScheduler] batch 2/3 finished".
type Component string

// For returns a Component logger for the given name.
func For(name string) Component {
	return Component(name)
}

func (c Component) prefix(format string) string {
	return "[" + string(c) + "] " + format
}

// Debugf logs at DEBUG with the component prefix.
func (c Component) Debugf(format string, v ...interface{}) { Debugf(c.prefix(format), v...) }

// Infof logs at INFO with the component prefix.
func (c Component) Infof(format string, v ...interface{}) { Infof(c.prefix(format), v...) }

// Warnf logs at WARN with the component prefix.
func (c Component) Warnf(format string, v ...interface{}) { Warnf(c.prefix(format), v...) }

// Errorf logs at ERROR with the component prefix.
func (c Component) Errorf(format string, v ...interface{}) { Errorf(c.prefix(format), v...) }
