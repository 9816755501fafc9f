// Package logging provides structured logging for blendlink.
// Log output goes to stderr so stdout stays reserved for the result envelope.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel string

const (
	// DebugLevel for debug messages
	DebugLevel LogLevel = "debug"
	// InfoLevel for informational messages
	InfoLevel LogLevel = "info"
	// WarnLevel for warning messages
	WarnLevel LogLevel = "warn"
	// ErrorLevel for error messages
	ErrorLevel LogLevel = "error"
)

var severity = map[LogLevel]int{
	DebugLevel: 0,
	InfoLevel:  1,
	WarnLevel:  2,
	ErrorLevel: 3,
}

// ParseLevel maps a level name to a LogLevel, defaulting to info
func ParseLevel(s string) LogLevel {
	switch LogLevel(s) {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return LogLevel(s)
	default:
		return InfoLevel
	}
}

// Format represents the output format for logs
type Format string

const (
	// JSONFormat outputs logs as JSON
	JSONFormat Format = "json"
	// HumanFormat outputs logs in human-readable format
	HumanFormat Format = "human"
)

// Config holds logger configuration
type Config struct {
	Format Format
	Level  LogLevel
	Output io.Writer // Optional, defaults to stderr
}

// Logger provides structured logging
type Logger struct {
	format Format
	level  LogLevel
	out    io.Writer
}

// NewLogger creates a new logger with the given configuration
func NewLogger(config Config) *Logger {
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	return &Logger{
		format: config.Format,
		level:  config.Level,
		out:    out,
	}
}

// Nop returns a logger that discards everything, for tests and quiet paths
func Nop() *Logger {
	return NewLogger(Config{Level: ErrorLevel, Output: io.Discard})
}

// record is one emitted log line
type record struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (l *Logger) enabled(level LogLevel) bool {
	return severity[level] >= severity[l.level]
}

func (l *Logger) emit(level LogLevel, message string, fields map[string]interface{}) {
	if !l.enabled(level) {
		return
	}

	rec := record{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     string(level),
		Message:   message,
		Fields:    fields,
	}

	if l.format == JSONFormat {
		l.writeJSON(rec)
	} else {
		l.writeHuman(rec)
	}
}

func (l *Logger) writeJSON(rec record) {
	data, err := json.Marshal(rec)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to marshal log record: %v\n", err)
		return
	}
	_, _ = fmt.Fprintln(l.out, string(data))
}

// writeHuman renders "<ts> [level] message | k=v, k=v" with the field keys
// sorted so repeated runs diff cleanly.
func (l *Logger) writeHuman(rec record) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", rec.Timestamp, rec.Level, rec.Message)

	if len(rec.Fields) > 0 {
		keys := make([]string, 0, len(rec.Fields))
		for k := range rec.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(" | ")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, rec.Fields[k])
		}
	}

	_, _ = fmt.Fprintln(l.out, b.String())
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.emit(DebugLevel, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.emit(InfoLevel, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.emit(WarnLevel, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.emit(ErrorLevel, message, fields)
}
