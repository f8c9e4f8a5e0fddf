// Package security implements LibPolyCall's zero-trust permission engine
// (C9): ACL evaluation by function glob/caller language/caller context,
// isolation-level ordinal checks, and a fixed-capacity audit ring that
// overwrites its oldest record once full. Grounded on
// the teacher's Before/After middleware-chain idiom (an ACL check is a
// "Before" hook that can short-circuit dispatch) and its mutex-protected
// registration-map shape.
package security

import (
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/obinexus/polycall-sub011/errs"
	"github.com/obinexus/polycall-sub011/observability"
)

// IsolationLevel orders execution contexts from least to most isolated, per
// spec.md §7's component isolation model.
type IsolationLevel int

const (
	IsolationNone IsolationLevel = iota
	IsolationShared
	IsolationFunction
	IsolationModule
	IsolationProcess
	IsolationContainer
)

// Caller describes the identity a permission check is evaluated against.
type Caller struct {
	Language string // e.g. "python", "node", "go"
	Context  string // e.g. a module or session identifier
}

// Entry is one ACL rule: a function-name glob paired with the caller
// attributes and permission bits it grants.
type Entry struct {
	FunctionGlob   string
	Language       string // "" matches any language
	Context        string // "" matches any context
	Permission     uint64 // capability bitset required/granted
	MinIsolation   IsolationLevel
}

// AuditRecord is one entry in the fixed-capacity audit ring buffer.
type AuditRecord struct {
	ID        string
	Timestamp time.Time
	Function  string
	Caller    Caller
	Allowed   bool
	Reason    string
}

// Engine evaluates permission checks against a registered ACL and records
// every decision, allowed or denied, into a bounded audit ring.
type Engine struct {
	mu         sync.RWMutex
	entries    []Entry
	defaultDeny bool
	audit      []AuditRecord
	auditCap   int
	auditNext  int
	logger     errs.Logger
}

const defaultAuditCapacity = 1024

// New constructs an Engine. defaultDeny controls the outcome when no ACL
// entry matches a check (spec.md §7: zero-trust ⇒ default true).
func New(defaultDeny bool, logger errs.Logger) *Engine {
	return &Engine{
		defaultDeny: defaultDeny,
		auditCap:    defaultAuditCapacity,
		audit:       make([]AuditRecord, 0, defaultAuditCapacity),
		logger:      errs.OrNoop(logger),
	}
}

// Grant registers an ACL entry. Entries are evaluated in registration order;
// the first match decides the outcome.
func (e *Engine) Grant(entry Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
}

// Check evaluates whether caller may invoke function at isolation, requiring
// permission bits `want` to be a subset of the matching entry's Permission.
// No match falls back to the engine's default-deny policy.
func (e *Engine) Check(function string, caller Caller, isolation IsolationLevel, want uint64) error {
	e.mu.RLock()
	entries := make([]Entry, len(e.entries))
	copy(entries, e.entries)
	e.mu.RUnlock()

	for _, entry := range entries {
		if !globMatch(entry.FunctionGlob, function) {
			continue
		}
		if entry.Language != "" && entry.Language != caller.Language {
			continue
		}
		if entry.Context != "" && entry.Context != caller.Context {
			continue
		}
		if isolation < entry.MinIsolation {
			e.record(function, caller, false, "isolation level below required minimum")
			return errs.New(errs.PermissionDenied, "security", errs.SeverityError,
				"function %q requires isolation >= %d, got %d", function, entry.MinIsolation, isolation)
		}
		if want&entry.Permission != want {
			e.record(function, caller, false, "permission bits not granted")
			return errs.New(errs.PermissionDenied, "security", errs.SeverityError,
				"function %q: requested permission %#x exceeds granted %#x", function, want, entry.Permission)
		}
		e.record(function, caller, true, "matched ACL entry")
		return nil
	}

	if e.defaultDeny {
		e.record(function, caller, false, "no matching ACL entry, default-deny")
		return errs.New(errs.PermissionDenied, "security", errs.SeverityError,
			"no ACL entry grants %q to %s/%s", function, caller.Language, caller.Context)
	}
	e.record(function, caller, true, "no matching ACL entry, default-allow")
	return nil
}

func (e *Engine) record(function string, caller Caller, allowed bool, reason string) {
	observability.RecordPermissionCheck(allowed)
	rec := AuditRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Function:  function,
		Caller:    caller,
		Allowed:   allowed,
		Reason:    reason,
	}
	if !allowed {
		e.logger.Warn("permission_denied", "function", function, "language", caller.Language, "reason", reason)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.audit) < e.auditCap {
		e.audit = append(e.audit, rec)
		return
	}
	e.audit[e.auditNext] = rec
	e.auditNext = (e.auditNext + 1) % e.auditCap
}

// Audit returns a copy of the current audit ring contents in insertion order
// (oldest surviving record first).
func (e *Engine) Audit() []AuditRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.audit) < e.auditCap {
		out := make([]AuditRecord, len(e.audit))
		copy(out, e.audit)
		return out
	}
	out := make([]AuditRecord, 0, e.auditCap)
	out = append(out, e.audit[e.auditNext:]...)
	out = append(out, e.audit[:e.auditNext]...)
	return out
}

// globMatch reports whether name matches pattern, supporting '*' and '?' via
// path.Match (function names are slash-free, so filepath semantics are fine).
func globMatch(pattern, name string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}
