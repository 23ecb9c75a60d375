// Package logging provides the structured, level-gated stderr logger used
// throughout the core, generalizing the teacher's log.Logger-over-stderr
// design to carry fields (task id, step id, sequence) alongside a message
// instead of a bare printf string.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
)

// Field is one key/value pair attached to a log line.
type Field struct {
	Key   string
	Value interface{}
}

func F(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Logger is a level-gated logger over a single underlying writer, matching
// the teacher's one-writer-two-loggers shape but keyed by field set rather
// than printf args.
type Logger struct {
	mu           sync.Mutex
	debugEnabled bool
	out          *log.Logger
}

// Global logger instance, initialized by Initialize; every package-level
// function is a no-op before that call, mirroring the teacher's nil-guarded
// globalLogger.
var globalLogger *Logger

// Initialize sets up the global logger with debug mode setting. All logging
// goes to stderr to avoid polluting stdout, the same stdio-safety concern
// the teacher's MCP servers have.
func Initialize(debugMode bool) {
	var output io.Writer = os.Stderr
	globalLogger = &Logger{
		debugEnabled: debugMode,
		out:          log.New(output, "", log.LstdFlags),
	}
}

// New builds a standalone Logger writing to w, for tests and callers that
// don't want the package-level global.
func New(w io.Writer, debugMode bool) *Logger {
	return &Logger{debugEnabled: debugMode, out: log.New(w, "", log.LstdFlags)}
}

func (l *Logger) log(level, msg string, fields []Field) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Print(format(level, msg, fields))
}

func (l *Logger) Info(msg string, fields ...Field)  { l.log("INFO", msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.log("ERROR", msg, fields) }

func (l *Logger) Debug(msg string, fields ...Field) {
	if l == nil || !l.debugEnabled {
		return
	}
	l.log("DEBUG", msg, fields)
}

func (l *Logger) IsDebugEnabled() bool { return l != nil && l.debugEnabled }

// format renders level, message, and fields sorted by key so log lines are
// diffable in tests and greppable in production, e.g.:
//
//	INFO step activated step_id=review task_id=task_01
func format(level, msg string, fields []Field) string {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	if len(fields) == 0 {
		return b.String()
	}
	sorted := make([]Field, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	for _, f := range sorted {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	return b.String()
}

// Info logs an informational message on the global logger (always shown).
func Info(msg string, fields ...Field) { globalLogger.Info(msg, fields...) }

// Debug logs a debug message on the global logger (shown only when debug
// mode is enabled).
func Debug(msg string, fields ...Field) { globalLogger.Debug(msg, fields...) }

// Error logs an error message on the global logger (always shown).
func Error(msg string, fields ...Field) { globalLogger.Error(msg, fields...) }

// IsDebugEnabled reports whether the global logger has debug mode enabled.
func IsDebugEnabled() bool { return globalLogger.IsDebugEnabled() }
