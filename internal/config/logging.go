package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mrz1836/mns/internal/fileutil"
)

// LogLevel represents logging verbosity levels.
type LogLevel int

// Log level constants.
const (
	LogLevelOff LogLevel = iota
	LogLevelError
	LogLevelDebug
)

//nolint:gochecknoglobals // read-only lookup table
var logLevelNames = map[LogLevel]string{
	LogLevelOff:   "off",
	LogLevelError: "error",
	LogLevelDebug: "debug",
}

// ParseLogLevel parses a log level string. "none" is an alias for off and
// anything unknown falls back to error.
func ParseLogLevel(s string) LogLevel {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "none" {
		return LogLevelOff
	}
	for level, n := range logLevelNames {
		if n == name {
			return level
		}
	}
	return LogLevelError
}

func (l LogLevel) String() string {
	if name, ok := logLevelNames[l]; ok {
		return name
	}
	return logLevelNames[LogLevelError]
}

// logTimeFormat is RFC 3339 in UTC with milliseconds.
const logTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// logSink is the file shared by a logger and all loggers derived from it.
type logSink struct {
	mu    sync.Mutex
	level LogLevel
	file  *os.File
	path  string
}

func (s *logSink) write(level LogLevel, fields, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil || s.level == LogLevelOff || level > s.level {
		return
	}
	_, _ = fmt.Fprintf(s.file, "%s [%s]%s %s\n",
		time.Now().UTC().Format(logTimeFormat), strings.ToUpper(level.String()), fields, msg)
}

// Logger appends levelled lines to a file. Loggers derived with With share
// the file and level of their parent and prefix each line with their fields.
type Logger struct {
	sink   *logSink
	fields string
}

// NewLogger creates a new logger. Nothing is opened when level is off or
// filePath is empty.
func NewLogger(level LogLevel, filePath string) (*Logger, error) {
	sink := &logSink{level: level, path: filePath}
	if level == LogLevelOff || filePath == "" {
		return &Logger{sink: sink}, nil
	}

	filePath, err := fileutil.ExpandHome(filePath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o750); err != nil {
		return nil, err
	}

	// #nosec G304 -- log file path is from validated config
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	sink.file = f
	sink.path = filePath
	return &Logger{sink: sink}, nil
}

// NullLogger returns a logger that discards all output.
func NullLogger() *Logger {
	return &Logger{sink: &logSink{level: LogLevelOff}}
}

// With returns a logger writing to the same file whose lines carry
// key=value after the level.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{sink: l.sink, fields: l.fields + " " + key + "=" + value}
}

// Close closes the log file for this logger and every logger derived from it.
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.sink.file == nil {
		return nil
	}
	err := l.sink.file.Close()
	l.sink.file = nil
	return err
}

// Path returns the resolved log file path.
func (l *Logger) Path() string {
	return l.sink.path
}

// SetLevel changes the log level.
func (l *Logger) SetLevel(level LogLevel) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.level
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) {
	l.sink.write(LogLevelDebug, l.fields, fmt.Sprintf(format, args...))
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) {
	l.sink.write(LogLevelError, l.fields, fmt.Sprintf(format, args...))
}
