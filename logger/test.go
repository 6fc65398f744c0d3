package logger

import (
	"fmt"
	"sync"
)

type TestLogEntry struct {
	Severity string
	Message  string
	Metadata map[string]interface{}
}

// TestLogger records every log call so tests can assert on what was logged.
// Safe for concurrent use.
type TestLogger struct {
	mu       sync.Mutex
	logs     *[]TestLogEntry
	metadata map[string]interface{}
	parent   *TestLogger
}

var _ Logger = (*TestLogger)(nil)

// NewTestLogger returns a new Logger instance useful for testing
func NewTestLogger() *TestLogger {
	logs := make([]TestLogEntry, 0)
	return &TestLogger{logs: &logs}
}

func (c *TestLogger) root() *TestLogger {
	if c.parent != nil {
		return c.parent.root()
	}
	return c
}

func (c *TestLogger) With(metadata map[string]interface{}) Logger {
	kv := make(map[string]interface{}, len(c.metadata)+len(metadata))
	for k, v := range c.metadata {
		kv[k] = v
	}
	for k, v := range metadata {
		kv[k] = v
	}
	return &TestLogger{logs: c.logs, metadata: kv, parent: c.root()}
}

func (c *TestLogger) WithPrefix(prefix string) Logger {
	return c
}

func (c *TestLogger) IsLevelEnabled(LogLevel) bool {
	return true
}

func (c *TestLogger) log(severity string, msg string, args ...interface{}) {
	root := c.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	*c.logs = append(*c.logs, TestLogEntry{severity, format(msg, args...), c.metadata})
}

func format(msg string, args ...interface{}) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

func (c *TestLogger) Trace(msg string, args ...interface{}) {
	c.log("TRACE", msg, args...)
}

func (c *TestLogger) Debug(msg string, args ...interface{}) {
	c.log("DEBUG", msg, args...)
}

func (c *TestLogger) Info(msg string, args ...interface{}) {
	c.log("INFO", msg, args...)
}

func (c *TestLogger) Warn(msg string, args ...interface{}) {
	c.log("WARNING", msg, args...)
}

func (c *TestLogger) Error(msg string, args ...interface{}) {
	c.log("ERROR", msg, args...)
}

// Entries returns a copy of everything logged so far, across all derived
// loggers.
func (c *TestLogger) Entries() []TestLogEntry {
	root := c.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	out := make([]TestLogEntry, len(*c.logs))
	copy(out, *c.logs)
	return out
}
