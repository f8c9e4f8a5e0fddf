// Package config provides LibPolyCall's ambient configuration: quota/pool/
// stream/ACL defaults shared by the subsystems. Grounded on the teacher's
// coreengine/config/core_config.go — the
// Default.../FromMap/ToMap/Get/Set/Reset singleton idiom is kept verbatim in
// shape; the fields themselves are replaced with this domain's settings
// (LLM-orchestration timeouts and feature flags have no equivalent here).
package config

import (
	"sync"

	"github.com/obinexus/polycall-sub011/component"
	"github.com/obinexus/polycall-sub011/pool"
	"github.com/obinexus/polycall-sub011/stream"
)

// Config holds the ambient settings every LibPolyCall subsystem reads at
// construction time. It carries no infrastructure addresses (no listen
// ports, no peer URLs) — those belong to the byte-stream transport the
// caller supplies, which is out of this module's scope.
type Config struct {
	// ServiceName identifies this instance in traces and logs.
	ServiceName string `json:"service_name"`

	// DefaultQuota is the component resource limiter's starting quota for
	// components that don't specify their own (C10).
	DefaultQuota component.Quota `json:"default_quota"`

	// Pool bounds the connection pool's size and acquire behavior (C11).
	Pool pool.Config `json:"pool"`

	// Stream bounds a duplex stream's buffering and backpressure threshold (C6).
	Stream stream.Config `json:"stream"`

	// ACLDefaultDeny controls the security engine's fallback when no ACL
	// entry matches a call (C9). Zero-trust default is true.
	ACLDefaultDeny bool `json:"acl_default_deny"`

	// AuditCapacity is the audit ring size carried in this config (C9).
	// security.New does not take it; the engine's ring holds 1024 records.
	AuditCapacity int `json:"audit_capacity"`

	// SessionStaleAfterSeconds marks an orchestrator session eligible for
	// cleanup after this many seconds of inactivity (C12).
	SessionStaleAfterSeconds int `json:"session_stale_after_seconds"`

	// LogLevel names a minimum log severity ("debug", "info", "warn",
	// "error"). errs.StdLogger does not filter on it.
	LogLevel string `json:"log_level"`
}

// Default returns a Config with reasonable defaults for all subsystems.
func Default() *Config {
	return &Config{
		ServiceName:              "polycalld",
		DefaultQuota:             component.DefaultQuota(),
		Pool:                     pool.Config{Min: 1, Max: 8, Strategy: pool.StrategyFIFO},
		Stream:                   stream.Config{Capacity: 256, BufferThresholdPercent: 80},
		ACLDefaultDeny:           true,
		AuditCapacity:            1024,
		SessionStaleAfterSeconds: 300,
		LogLevel:                 "info",
	}
}

// FromMap builds a Config from a generic map, starting from Default and
// overriding only the keys present. Unknown keys are ignored; JSON-decoded
// numbers arrive as float64, so both int and float64 are accepted.
func FromMap(m map[string]any) *Config {
	c := Default()

	if v, ok := m["service_name"].(string); ok {
		c.ServiceName = v
	}
	if v, ok := intFrom(m, "audit_capacity"); ok {
		c.AuditCapacity = v
	}
	if v, ok := intFrom(m, "session_stale_after_seconds"); ok {
		c.SessionStaleAfterSeconds = v
	}
	if v, ok := m["acl_default_deny"].(bool); ok {
		c.ACLDefaultDeny = v
	}
	if v, ok := m["log_level"].(string); ok {
		c.LogLevel = v
	}
	if v, ok := intFrom(m, "pool_min"); ok {
		c.Pool.Min = v
	}
	if v, ok := intFrom(m, "pool_max"); ok {
		c.Pool.Max = v
	}
	if v, ok := intFrom(m, "default_quota_max_memory_bytes"); ok {
		c.DefaultQuota.MaxMemoryBytes = uint64(v)
	}
	if v, ok := intFrom(m, "default_quota_max_calls"); ok {
		c.DefaultQuota.MaxCalls = uint64(v)
	}
	if v, ok := intFrom(m, "stream_capacity"); ok {
		c.Stream.Capacity = v
	}

	return c
}

func intFrom(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// ToMap converts c to a generic map, the inverse of FromMap for the fields
// FromMap understands.
func (c *Config) ToMap() map[string]any {
	return map[string]any{
		"service_name":                   c.ServiceName,
		"audit_capacity":                 c.AuditCapacity,
		"session_stale_after_seconds":    c.SessionStaleAfterSeconds,
		"acl_default_deny":               c.ACLDefaultDeny,
		"log_level":                      c.LogLevel,
		"pool_min":                       c.Pool.Min,
		"pool_max":                       c.Pool.Max,
		"default_quota_max_memory_bytes": c.DefaultQuota.MaxMemoryBytes,
		"default_quota_max_calls":        c.DefaultQuota.MaxCalls,
		"stream_capacity":                c.Stream.Capacity,
	}
}

// =============================================================================
// GLOBAL CONFIG (set by the process entrypoint)
// =============================================================================

var (
	global   *Config
	globalMu sync.RWMutex
)

// Get returns the process-wide configuration instance, or Default() if none
// has been injected yet.
func Get() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if global == nil {
		return Default()
	}
	return global
}

// Set installs the process-wide configuration instance. Called once by
// cmd/polycalld's startup path after parsing whatever source of truth the
// caller uses (environment, flags, file — all out of this module's scope).
func Set(c *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = c
}

// Reset clears the process-wide configuration instance (test convenience).
// After Reset, Get returns defaults again.
func Reset() {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = nil
}
