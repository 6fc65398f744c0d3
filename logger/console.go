package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const isWindows = runtime.GOOS == "windows"

var noColor = os.Getenv("TERM") == "dumb" ||
	(!isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()))

func color(val string) string {
	if isWindows || noColor {
		return ""
	}
	return val
}

const (
	reset      = "\033[0m"
	red        = "\033[31m"
	green      = "\033[32m"
	gray       = "\033[1;90m"
	blueBold   = "\033[34;1m"
	redBold    = "\033[31;1m"
	yellowBold = "\033[33;1m"
	cyanBold   = "\033[36;1m"
)

var levelColors = map[LogLevel]string{
	LevelTrace: cyanBold,
	LevelDebug: blueBold,
	LevelInfo:  green,
	LevelWarn:  yellowBold,
	LevelError: redBold,
}

type consoleLogger struct {
	mu       *sync.Mutex
	out      io.Writer
	level    LogLevel
	prefixes []string
	metadata map[string]interface{}
}

var _ Logger = (*consoleLogger)(nil)

// NewConsole returns a Logger that writes human-readable lines to stderr,
// colorized when attached to a terminal.
func NewConsole(level LogLevel) Logger {
	return &consoleLogger{
		mu:       &sync.Mutex{},
		out:      os.Stderr,
		level:    level,
		metadata: map[string]interface{}{},
	}
}

func (c *consoleLogger) clone() *consoleLogger {
	prefixes := make([]string, len(c.prefixes))
	copy(prefixes, c.prefixes)
	metadata := make(map[string]interface{}, len(c.metadata))
	for k, v := range c.metadata {
		metadata[k] = v
	}
	return &consoleLogger{
		mu:       c.mu,
		out:      c.out,
		level:    c.level,
		prefixes: prefixes,
		metadata: metadata,
	}
}

func (c *consoleLogger) With(metadata map[string]interface{}) Logger {
	clone := c.clone()
	for k, v := range metadata {
		clone.metadata[k] = v
	}
	return clone
}

func (c *consoleLogger) WithPrefix(prefix string) Logger {
	clone := c.clone()
	if !slices.Contains(clone.prefixes, prefix) {
		clone.prefixes = append(clone.prefixes, prefix)
	}
	return clone
}

func (c *consoleLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= c.level
}

func (c *consoleLogger) log(level LogLevel, msg string, args ...interface{}) {
	if !c.IsLevelEnabled(level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	var buf strings.Builder
	buf.WriteString(color(gray))
	buf.WriteString(time.Now().Format("2006-01-02 15:04:05.000"))
	buf.WriteString(color(reset))
	buf.WriteString(" ")
	buf.WriteString(color(levelColors[level]))
	buf.WriteString(fmt.Sprintf("%-5s", level.String()))
	buf.WriteString(color(reset))
	buf.WriteString(" ")
	for _, prefix := range c.prefixes {
		buf.WriteString(prefix)
		buf.WriteString(" ")
	}
	buf.WriteString(msg)
	if len(c.metadata) > 0 {
		keys := make([]string, 0, len(c.metadata))
		for k := range c.metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteString(color(gray))
		for _, k := range keys {
			buf.WriteString(fmt.Sprintf(" %s=%v", k, c.metadata[k]))
		}
		buf.WriteString(color(reset))
	}
	buf.WriteString("\n")
	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.out, buf.String())
}

func (c *consoleLogger) Trace(msg string, args ...interface{}) {
	c.log(LevelTrace, msg, args...)
}

func (c *consoleLogger) Debug(msg string, args ...interface{}) {
	c.log(LevelDebug, msg, args...)
}

func (c *consoleLogger) Info(msg string, args ...interface{}) {
	c.log(LevelInfo, msg, args...)
}

func (c *consoleLogger) Warn(msg string, args ...interface{}) {
	c.log(LevelWarn, msg, args...)
}

func (c *consoleLogger) Error(msg string, args ...interface{}) {
	c.log(LevelError, msg, args...)
}
