package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

type jsonLogger struct {
	mu       *sync.Mutex
	out      io.Writer
	level    LogLevel
	prefixes []string
	metadata map[string]interface{}
}

var _ Logger = (*jsonLogger)(nil)

// NewJSON returns a Logger that writes one JSON object per line to out.
func NewJSON(out io.Writer, level LogLevel) Logger {
	return &jsonLogger{
		mu:       &sync.Mutex{},
		out:      out,
		level:    level,
		metadata: map[string]interface{}{},
	}
}

func (j *jsonLogger) clone() *jsonLogger {
	prefixes := make([]string, len(j.prefixes))
	copy(prefixes, j.prefixes)
	metadata := make(map[string]interface{}, len(j.metadata))
	for k, v := range j.metadata {
		metadata[k] = v
	}
	return &jsonLogger{
		mu:       j.mu,
		out:      j.out,
		level:    j.level,
		prefixes: prefixes,
		metadata: metadata,
	}
}

func (j *jsonLogger) With(metadata map[string]interface{}) Logger {
	clone := j.clone()
	for k, v := range metadata {
		clone.metadata[k] = v
	}
	return clone
}

func (j *jsonLogger) WithPrefix(prefix string) Logger {
	clone := j.clone()
	clone.prefixes = append(clone.prefixes, prefix)
	return clone
}

func (j *jsonLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= j.level
}

func (j *jsonLogger) log(level LogLevel, msg string, args ...interface{}) {
	if !j.IsLevelEnabled(level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	for i := len(j.prefixes) - 1; i >= 0; i-- {
		msg = j.prefixes[i] + " " + msg
	}
	entry := make(map[string]interface{}, len(j.metadata)+3)
	for k, v := range j.metadata {
		entry[k] = v
	}
	entry["ts"] = time.Now().Format(time.RFC3339Nano)
	entry["severity"] = level.String()
	entry["message"] = msg
	buf, err := json.Marshal(entry)
	if err != nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.out.Write(append(buf, '\n'))
}

func (j *jsonLogger) Trace(msg string, args ...interface{}) {
	j.log(LevelTrace, msg, args...)
}

func (j *jsonLogger) Debug(msg string, args ...interface{}) {
	j.log(LevelDebug, msg, args...)
}

func (j *jsonLogger) Info(msg string, args ...interface{}) {
	j.log(LevelInfo, msg, args...)
}

func (j *jsonLogger) Warn(msg string, args ...interface{}) {
	j.log(LevelWarn, msg, args...)
}

func (j *jsonLogger) Error(msg string, args ...interface{}) {
	j.log(LevelError, msg, args...)
}
