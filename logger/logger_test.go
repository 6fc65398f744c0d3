package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelString(t *testing.T) {
	assert.Equal(t, "TRACE", LevelTrace.String())
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv("CACHEKIT_LOG_LEVEL", "trace")
	assert.Equal(t, LevelTrace, GetLevelFromEnv())
	t.Setenv("CACHEKIT_LOG_LEVEL", "ERROR")
	assert.Equal(t, LevelError, GetLevelFromEnv())
	t.Setenv("CACHEKIT_LOG_LEVEL", "bogus")
	assert.Equal(t, LevelInfo, GetLevelFromEnv())
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, LevelDebug)
	log = log.With(map[string]interface{}{"namespace": "users"})
	log.Trace("dropped") // below level
	log.Warn("timeout after %dms", 50)

	var entry map[string]interface{}
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["severity"])
	assert.Equal(t, "timeout after 50ms", entry["message"])
	assert.Equal(t, "users", entry["namespace"])
}

func TestJSONLoggerPrefix(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, LevelInfo).WithPrefix("[cache]")
	log.Info("ready")

	var entry map[string]interface{}
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "[cache] ready", entry["message"])
}

func TestTestLoggerCapture(t *testing.T) {
	log := NewTestLogger()
	child := log.With(map[string]interface{}{"namespace": "orders"})
	child.Error("fallback failed for key %s", "k1")
	log.Info("plain")

	entries := log.Entries()
	assert.Len(t, entries, 2)
	assert.Equal(t, "ERROR", entries[0].Severity)
	assert.Equal(t, "fallback failed for key k1", entries[0].Message)
	assert.Equal(t, "orders", entries[0].Metadata["namespace"])
	assert.Equal(t, "INFO", entries[1].Severity)
}
