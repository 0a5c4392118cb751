package app

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Logger interface for app layer.
// Messages are constant strings; context goes into alternating key/value pairs.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
	With(keyvals ...interface{}) Logger
}

// Level is a logging threshold
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel converts a config string to a Level. Unknown values map to warn.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "error":
		return LevelError
	default:
		return LevelWarn
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelError:
		return "error"
	default:
		return "warn"
	}
}

// defaultLogger writes plain lines to an io.Writer
type defaultLogger struct {
	output io.Writer
	level  Level
	fields []interface{}
}

// NewWriterLogger returns a Logger writing "LEVEL: msg k=v" lines to w
func NewWriterLogger(w io.Writer, level Level) Logger {
	return &defaultLogger{output: w, level: level}
}

func (l *defaultLogger) Debug(msg string, keyvals ...interface{}) {
	l.log(LevelDebug, "DEBUG", msg, keyvals)
}

func (l *defaultLogger) Info(msg string, keyvals ...interface{}) {
	l.log(LevelInfo, "INFO", msg, keyvals)
}

func (l *defaultLogger) Warn(msg string, keyvals ...interface{}) {
	l.log(LevelWarn, "WARN", msg, keyvals)
}

func (l *defaultLogger) Error(msg string, keyvals ...interface{}) {
	l.log(LevelError, "ERROR", msg, keyvals)
}

func (l *defaultLogger) With(keyvals ...interface{}) Logger {
	fields := make([]interface{}, 0, len(l.fields)+len(keyvals))
	fields = append(fields, l.fields...)
	fields = append(fields, keyvals...)
	return &defaultLogger{output: l.output, level: l.level, fields: fields}
}

func (l *defaultLogger) log(level Level, prefix, msg string, keyvals []interface{}) {
	if level < l.level {
		return
	}

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(": ")
	b.WriteString(msg)
	writeKeyvals(&b, l.fields)
	writeKeyvals(&b, keyvals)
	b.WriteByte('\n')
	fmt.Fprint(l.output, b.String())
}

func writeKeyvals(b *strings.Builder, keyvals []interface{}) {
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 < len(keyvals) {
			fmt.Fprintf(b, " %v=%v", keyvals[i], keyvals[i+1])
		} else {
			fmt.Fprintf(b, " %v=<missing>", keyvals[i])
		}
	}
}

// nopLogger discards everything
type nopLogger struct{}

// NopLogger returns a Logger that discards all output
func NopLogger() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (n nopLogger) With(...interface{}) Logger { return n }

var (
	loggerMu sync.RWMutex
	// globalLogger is the logger instance used by app layer
	globalLogger Logger = &defaultLogger{output: os.Stderr, level: LevelWarn}
)

// SetLogger sets the global logger for app layer
func SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	loggerMu.Lock()
	globalLogger = logger
	loggerMu.Unlock()
}

// GetLogger returns the current logger
func GetLogger() Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return globalLogger
}
