// Package component implements LibPolyCall's micro-component runtime (C10):
// isolated execution contexts with memory/CPU/IO quotas, threshold
// callbacks, and policy-enforced isolation levels. Grounded on the teacher's
// ProcessControlBlock/ResourceTracker idiom (coreengine/kernel/{types,resources}.go),
// generalized from OS-process scheduling quotas to component resource quotas.
package component

import (
	"time"

	"github.com/obinexus/polycall-sub011/security"
)

// Quota bounds the resources a single component instance may consume over
// its lifetime, mirroring the memory/CPU/IO triad spec.md §7 requires.
type Quota struct {
	MaxMemoryBytes uint64
	MaxCPUMillis   uint64
	MaxIOBytes     uint64
	MaxCalls       uint64

	// Enforce rejects a RecordUsage call that would push usage past quota
	// with QuotaExceeded. When false, usage and violation counts are still
	// recorded but the call succeeds ("track only" mode).
	Enforce bool
	// Track governs whether RecordUsage tracks usage against this quota at
	// all. When false, RecordUsage is a no-op for the component.
	Track bool
}

// DefaultQuota returns a conservative quota suitable for an unconfigured component.
func DefaultQuota() Quota {
	return Quota{
		MaxMemoryBytes: 64 * 1024 * 1024,
		MaxCPUMillis:   5_000,
		MaxIOBytes:     16 * 1024 * 1024,
		MaxCalls:       10_000,
		Enforce:        true,
		Track:          true,
	}
}

// Usage is the resource consumption accrued by a component instance so far.
type Usage struct {
	MemoryBytes uint64
	CPUMillis   uint64
	IOBytes     uint64
	Calls       uint64
}

// add returns u with delta added to each field, used to compute a candidate
// usage before committing it past a quota check.
func (u Usage) add(delta Usage) Usage {
	return Usage{
		MemoryBytes: u.MemoryBytes + delta.MemoryBytes,
		CPUMillis:   u.CPUMillis + delta.CPUMillis,
		IOBytes:     u.IOBytes + delta.IOBytes,
		Calls:       u.Calls + delta.Calls,
	}
}

// max returns the element-wise maximum of u and other, used to maintain a
// running peak usage.
func (u Usage) max(other Usage) Usage {
	m := u
	if other.MemoryBytes > m.MemoryBytes {
		m.MemoryBytes = other.MemoryBytes
	}
	if other.CPUMillis > m.CPUMillis {
		m.CPUMillis = other.CPUMillis
	}
	if other.IOBytes > m.IOBytes {
		m.IOBytes = other.IOBytes
	}
	if other.Calls > m.Calls {
		m.Calls = other.Calls
	}
	return m
}

// Resource names usage/quota are reported against, shared with the
// threshold-callback and metrics label space.
const (
	ResourceMemory = "memory"
	ResourceCPU    = "cpu"
	ResourceIO     = "io"
)

// fraction reports usage/quota for the named resource; callers compare
// against thresholds expressed as percentages of quota.
func (u Usage) fraction(q Quota, resource string) float64 {
	switch resource {
	case ResourceMemory:
		if q.MaxMemoryBytes == 0 {
			return 0
		}
		return float64(u.MemoryBytes) / float64(q.MaxMemoryBytes)
	case ResourceCPU:
		if q.MaxCPUMillis == 0 {
			return 0
		}
		return float64(u.CPUMillis) / float64(q.MaxCPUMillis)
	case ResourceIO:
		if q.MaxIOBytes == 0 {
			return 0
		}
		return float64(u.IOBytes) / float64(q.MaxIOBytes)
	default:
		return 0
	}
}

// ExceedsQuota reports whether any resource has crossed its quota. A zero
// maximum places no limit on that resource.
func (u Usage) ExceedsQuota(q Quota) bool {
	return (q.MaxMemoryBytes != 0 && u.MemoryBytes > q.MaxMemoryBytes) ||
		(q.MaxCPUMillis != 0 && u.CPUMillis > q.MaxCPUMillis) ||
		(q.MaxIOBytes != 0 && u.IOBytes > q.MaxIOBytes) ||
		(q.MaxCalls != 0 && u.Calls > q.MaxCalls)
}

// ThresholdCallback is invoked when a component's usage of a resource crosses
// a registered percentage threshold (1-100), per spec.md §7's threshold
// callback requirement.
type ThresholdCallback func(componentID string, resource string, percent int)

// Descriptor identifies a registered component type and the isolation level
// it executes at.
type Descriptor struct {
	ID        string
	Name      string
	Isolation security.IsolationLevel
	Quota     Quota
}

// Instance is one running execution context for a Descriptor.
type Instance struct {
	ComponentID string
	Descriptor  Descriptor
	Usage       Usage
	StartedAt   time.Time
	StoppedAt   time.Time
}

// IsRunning reports whether the instance has not yet been stopped.
func (i *Instance) IsRunning() bool {
	return i.StoppedAt.IsZero()
}
