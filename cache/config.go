package cache

import (
	"strconv"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
)

// EvictionPolicy tags how a backend chooses eviction victims when full.
// It is informational for backends that manage their own eviction (Redis);
// the in-memory backend applies it directly.
type EvictionPolicy string

const (
	PolicyLRU  EvictionPolicy = "LRU"
	PolicyLFU  EvictionPolicy = "LFU"
	PolicyFIFO EvictionPolicy = "FIFO"
	PolicyTTL  EvictionPolicy = "TTL"
)

// Configuration carries the per-namespace cache settings the manager uses
// to build a namespace's decorator chain. It is treated as immutable once
// handed to the manager; use Copy to obtain a defensive copy.
type Configuration struct {
	// TTL is the default time-to-live for values in this namespace.
	TTL time.Duration

	// EvictionPolicy tags the desired eviction behavior.
	EvictionPolicy EvictionPolicy

	// Compression enables transparent gzip compression of stored values.
	Compression bool

	// Encryption enables transparent AES-GCM encryption of stored values.
	// The key comes from the "encryption.key" setting (hex, 16/24/32 bytes).
	Encryption bool

	// StampedeProtection collapses concurrent reads of the same key into a
	// single backend call.
	StampedeProtection bool

	// CircuitBreaker enables the circuit breaker decorator for this
	// namespace.
	CircuitBreaker bool

	// Settings is an open map of backend- and decorator-specific settings.
	// Recognized keys: "timeout", "breaker.window", "breaker.min-calls",
	// "breaker.failure-rate", "breaker.open-wait", "breaker.half-open-calls",
	// "breaker.half-open-successes", "encryption.key".
	Settings map[string]string
}

// DefaultConfiguration returns the configuration used for namespaces
// requested without one.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		TTL:            DefaultTTL,
		EvictionPolicy: PolicyLRU,
		CircuitBreaker: true,
		Settings:       map[string]string{},
	}
}

// Copy returns a deep copy, so callers can hand out configurations without
// sharing the settings map.
func (c *Configuration) Copy() *Configuration {
	clone := *c
	clone.Settings = make(map[string]string, len(c.Settings))
	for k, v := range c.Settings {
		clone.Settings[k] = v
	}
	return &clone
}

// Setting returns the raw value of a named setting.
func (c *Configuration) Setting(name string) (string, bool) {
	v, ok := c.Settings[name]
	return v, ok
}

// DurationSetting parses a duration-valued setting. Values use the extended
// duration syntax ("90s", "1.5m", "2h45m", "1d" and friends).
func (c *Configuration) DurationSetting(name string) (time.Duration, bool) {
	v, ok := c.Settings[name]
	if !ok {
		return 0, false
	}
	d, err := str2duration.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

// IntSetting parses an integer-valued setting.
func (c *Configuration) IntSetting(name string) (int, bool) {
	v, ok := c.Settings[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FloatSetting parses a float-valued setting.
func (c *Configuration) FloatSetting(name string) (float64, bool) {
	v, ok := c.Settings[name]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
