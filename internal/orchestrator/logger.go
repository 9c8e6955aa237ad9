package orchestrator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// logSink is the destination shared by a logger and its session children.
type logSink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	closed bool
}

// DebugLogger writes timestamped debug lines to a file. Session loggers
// derived with ForSession share the file and tag every line with the
// session id. The zero value and nil discard everything.
type DebugLogger struct {
	sink      *logSink
	sessionID string
}

// NewDebugLogger creates a logger appending to logPath, creating parent
// directories as needed. An empty path returns a no-op logger.
func NewDebugLogger(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return &DebugLogger{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &DebugLogger{sink: &logSink{w: f, closer: f}}
	l.Log("=== conclave debug log opened %s ===", time.Now().Format(time.RFC3339))
	return l, nil
}

// NewWriterLogger creates a logger writing to w. Close does not close w.
func NewWriterLogger(w io.Writer) *DebugLogger {
	return &DebugLogger{sink: &logSink{w: w}}
}

// NewDebugLoggerForProject logs to .conclave/logs/orchestrator-debug.log
// under projectPath, or nowhere if that file cannot be opened.
func NewDebugLoggerForProject(projectPath string) *DebugLogger {
	logPath := filepath.Join(projectPath, ".conclave", "logs", "orchestrator-debug.log")
	l, err := NewDebugLogger(logPath)
	if err != nil {
		return &DebugLogger{}
	}
	return l
}

// NopLogger returns a logger that discards everything.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// ForSession returns a logger sharing l's destination whose lines carry id.
func (l *DebugLogger) ForSession(id string) *DebugLogger {
	if l == nil {
		return &DebugLogger{sessionID: id}
	}
	return &DebugLogger{sink: l.sink, sessionID: id}
}

func (l *DebugLogger) enabled() bool {
	return l != nil && l.sink != nil
}

// Log writes one line. Lines after Close are dropped.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if !l.enabled() {
		return
	}
	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format("15:04:05.000")

	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if l.sessionID != "" {
		fmt.Fprintf(s.w, "[%s] {%s} %s\n", ts, l.sessionID, msg)
	} else {
		fmt.Fprintf(s.w, "[%s] %s\n", ts, msg)
	}
	if f, ok := s.w.(*os.File); ok {
		f.Sync()
	}
}

// Close releases the log file. Session loggers share it, so closing any of
// them ends logging for all. Safe on nil and no-op loggers.
func (l *DebugLogger) Close() error {
	if !l.enabled() {
		return nil
	}
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
