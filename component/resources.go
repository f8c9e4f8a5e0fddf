package component

import (
	"sync"
	"time"

	"github.com/obinexus/polycall-sub011/errs"
	"github.com/obinexus/polycall-sub011/observability"
)

// componentResources tracks quota/usage and registered thresholds for a
// single component instance.
type componentResources struct {
	ComponentID    string
	Quota          Quota
	Usage          Usage
	Peak           Usage
	AllocCount     uint64
	FreeCount      uint64
	ViolationCount uint64
	AllocatedAt    time.Time
	LastUpdatedAt  time.Time
	thresholds     map[string][]int // resource -> sorted percent thresholds not yet crossed
	crossed        map[string]map[int]bool
}

func newComponentResources(id string, quota Quota) *componentResources {
	now := time.Now().UTC()
	return &componentResources{
		ComponentID:   id,
		Quota:         quota,
		AllocatedAt:   now,
		LastUpdatedAt: now,
		thresholds:    make(map[string][]int),
		crossed:       make(map[string]map[int]bool),
	}
}

// SystemUsage is the system-wide aggregate across all tracked components.
type SystemUsage struct {
	TotalComponents  int
	ActiveComponents int
	SystemMemory     uint64
	SystemCPUMillis  uint64
	SystemIOBytes    uint64
	TotalAllocations uint64
	TotalFrees       uint64
	TotalViolations  uint64
}

// Stats is a point-in-time snapshot of one component's usage, peak usage,
// quota, and allocation/free/violation counters, mirroring spec.md §3's
// resource-limiter data model.
type Stats struct {
	Usage          Usage
	Peak           Usage
	Quota          Quota
	AllocCount     uint64
	FreeCount      uint64
	ViolationCount uint64
}

// Budget is the remaining headroom for a component before it hits quota.
type Budget struct {
	MemoryBytes uint64
	CPUMillis   uint64
	IOBytes     uint64
	Calls       uint64
}

// Limiter tracks resource usage per component — the cgroups-equivalent of
// LibPolyCall's component runtime. Grounded on the teacher's ResourceTracker
// (coreengine/kernel/resources.go): mutex-protected per-key map, system-wide
// counters, threshold warnings — generalized from per-pid LLM/tool quotas to
// per-component memory/CPU/IO quotas, and extended with explicit percentage
// threshold callbacks instead of a single hardcoded 80% log line.
type Limiter struct {
	mu           sync.RWMutex
	defaultQuota Quota
	logger       errs.Logger
	resources    map[string]*componentResources
	callbacks    map[string][]ThresholdCallback // resource -> callbacks

	totalComponents  int
	activeComponents int
	systemMemory     uint64
	systemCPUMillis  uint64
	systemIOBytes    uint64
	systemAllocCount uint64
	systemFreeCount  uint64
	systemViolations uint64
}

// NewLimiter constructs a Limiter with the given default quota for
// auto-created components.
func NewLimiter(defaultQuota Quota, logger errs.Logger) *Limiter {
	return &Limiter{
		defaultQuota: defaultQuota,
		logger:       errs.OrNoop(logger),
		resources:    make(map[string]*componentResources),
		callbacks:    make(map[string][]ThresholdCallback),
	}
}

// OnThreshold registers a callback fired the first time a component's usage
// of resource reaches percent of quota (once per component id for the
// limiter's lifetime). Percent must be in [1, 100]; the callback receives the
// registered percent.
func (l *Limiter) OnThreshold(resource string, percent int, cb ThresholdCallback) {
	var firedMu sync.Mutex
	fired := make(map[string]bool)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks[resource] = append(l.callbacks[resource], func(componentID, res string, current int) {
		if current < percent {
			return
		}
		firedMu.Lock()
		already := fired[componentID]
		fired[componentID] = true
		firedMu.Unlock()
		if !already {
			cb(componentID, res, percent)
		}
	})
}

// Allocate registers a component with an explicit quota. Returns
// AlreadyInitialized if the component is already tracked.
func (l *Limiter) Allocate(componentID string, quota Quota) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.resources[componentID]; exists {
		return errs.New(errs.AlreadyInitialized, "component", errs.SeverityError,
			"component %q already allocated", componentID)
	}

	l.resources[componentID] = newComponentResources(componentID, quota)
	l.totalComponents++
	l.activeComponents++
	l.logger.Debug("resources_allocated", "component", componentID,
		"max_memory", quota.MaxMemoryBytes, "max_cpu_millis", quota.MaxCPUMillis)
	return nil
}

// Release stops tracking a component, freeing its accounted usage from the
// system-wide totals.
func (l *Limiter) Release(componentID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pr, exists := l.resources[componentID]
	if !exists {
		return
	}
	l.systemMemory -= pr.Usage.MemoryBytes
	l.systemCPUMillis -= pr.Usage.CPUMillis
	l.systemIOBytes -= pr.Usage.IOBytes
	l.systemFreeCount++
	delete(l.resources, componentID)
	l.activeComponents--
	l.logger.Debug("resources_released", "component", componentID)
}

// RecordUsage accrues resource consumption for componentID, auto-allocating
// it with the limiter's default quota if not already tracked. The quota
// check is atomic: if quota.Enforce and the candidate usage would exceed
// quota, componentID's usage is left unchanged and QuotaExceeded is
// returned — a rejected call never mutates current/peak usage. Otherwise the
// candidate is committed, peak usage is raised if applicable, and any
// newly-crossed percentage thresholds are reported.
func (l *Limiter) RecordUsage(componentID string, memoryDelta, cpuMillisDelta, ioDelta, callsDelta uint64) error {
	l.mu.Lock()
	pr, exists := l.resources[componentID]
	if !exists {
		pr = newComponentResources(componentID, l.defaultQuota)
		l.resources[componentID] = pr
		l.totalComponents++
		l.activeComponents++
	}

	if !pr.Quota.Track {
		l.mu.Unlock()
		return nil
	}

	candidate := pr.Usage.add(Usage{
		MemoryBytes: memoryDelta,
		CPUMillis:   cpuMillisDelta,
		IOBytes:     ioDelta,
		Calls:       callsDelta,
	})
	exceeded := candidate.ExceedsQuota(pr.Quota)

	if exceeded {
		pr.ViolationCount++
		l.systemViolations++
	}

	if exceeded && pr.Quota.Enforce {
		l.mu.Unlock()
		observability.RecordQuotaViolation(componentID, "combined")
		return errs.New(errs.QuotaExceeded, "component", errs.SeverityError,
			"component %q exceeded its resource quota", componentID)
	}

	// Commit: either within quota, or a track-only (non-enforcing) quota.
	pr.Usage = candidate
	pr.Peak = pr.Peak.max(candidate)
	pr.AllocCount++
	pr.LastUpdatedAt = time.Now().UTC()
	l.systemMemory += memoryDelta
	l.systemCPUMillis += cpuMillisDelta
	l.systemIOBytes += ioDelta
	l.systemAllocCount++

	usage, quota := pr.Usage, pr.Quota
	callbacks := map[string][]ThresholdCallback{
		ResourceMemory: append([]ThresholdCallback(nil), l.callbacks[ResourceMemory]...),
		ResourceCPU:    append([]ThresholdCallback(nil), l.callbacks[ResourceCPU]...),
		ResourceIO:     append([]ThresholdCallback(nil), l.callbacks[ResourceIO]...),
	}
	l.mu.Unlock()

	for _, resource := range []string{ResourceMemory, ResourceCPU, ResourceIO} {
		percent := int(usage.fraction(quota, resource) * 100)
		if percent < 1 {
			continue
		}
		if percent > 100 {
			percent = 100
		}
		l.fireThresholds(componentID, resource, percent, callbacks[resource])
	}

	if exceeded {
		observability.RecordQuotaViolation(componentID, "combined")
	}
	return nil
}

func (l *Limiter) fireThresholds(componentID, resource string, percent int, callbacks []ThresholdCallback) {
	l.mu.Lock()
	crossedSet, ok := l.resources[componentID]
	if !ok {
		l.mu.Unlock()
		return
	}
	if crossedSet.crossed[resource] == nil {
		crossedSet.crossed[resource] = make(map[int]bool)
	}
	alreadyCrossed := false
	for p := range crossedSet.crossed[resource] {
		if p >= percent {
			alreadyCrossed = true
			break
		}
	}
	if !alreadyCrossed {
		crossedSet.crossed[resource][percent] = true
	}
	l.mu.Unlock()

	if alreadyCrossed {
		return
	}
	observability.RecordThresholdCrossing(componentID, resource)
	for _, cb := range callbacks {
		cb(componentID, resource, percent)
	}
}

// CheckQuota reports whether componentID currently exceeds its quota.
// Untracked components report no violation.
func (l *Limiter) CheckQuota(componentID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pr, exists := l.resources[componentID]
	if !exists {
		return false
	}
	return pr.Usage.ExceedsQuota(pr.Quota)
}

// GetUsage returns a copy of the current usage for componentID, or the zero
// value and false if untracked.
func (l *Limiter) GetUsage(componentID string) (Usage, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pr, exists := l.resources[componentID]
	if !exists {
		return Usage{}, false
	}
	return pr.Usage, true
}

// GetQuota returns the quota assigned to componentID, or the zero value and
// false if untracked.
func (l *Limiter) GetQuota(componentID string) (Quota, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pr, exists := l.resources[componentID]
	if !exists {
		return Quota{}, false
	}
	return pr.Quota, true
}

// GetSystemUsage returns the system-wide aggregate across all tracked components.
func (l *Limiter) GetSystemUsage() SystemUsage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return SystemUsage{
		TotalComponents:  l.totalComponents,
		ActiveComponents: l.activeComponents,
		SystemMemory:     l.systemMemory,
		SystemCPUMillis:  l.systemCPUMillis,
		SystemIOBytes:    l.systemIOBytes,
		TotalAllocations: l.systemAllocCount,
		TotalFrees:       l.systemFreeCount,
		TotalViolations:  l.systemViolations,
	}
}

// GetStats returns a snapshot of componentID's usage, peak usage, quota, and
// allocation/free/violation counters, or the zero value and false if
// untracked.
func (l *Limiter) GetStats(componentID string) (Stats, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pr, exists := l.resources[componentID]
	if !exists {
		return Stats{}, false
	}
	return Stats{
		Usage:          pr.Usage,
		Peak:           pr.Peak,
		Quota:          pr.Quota,
		AllocCount:     pr.AllocCount,
		FreeCount:      pr.FreeCount,
		ViolationCount: pr.ViolationCount,
	}, true
}

// GetRemainingBudget returns the headroom left before componentID hits quota.
// A resource with a zero (unlimited) maximum reports zero headroom.
func (l *Limiter) GetRemainingBudget(componentID string) (Budget, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pr, exists := l.resources[componentID]
	if !exists {
		return Budget{}, false
	}
	return Budget{
		MemoryBytes: subFloor(pr.Quota.MaxMemoryBytes, pr.Usage.MemoryBytes),
		CPUMillis:   subFloor(pr.Quota.MaxCPUMillis, pr.Usage.CPUMillis),
		IOBytes:     subFloor(pr.Quota.MaxIOBytes, pr.Usage.IOBytes),
		Calls:       subFloor(pr.Quota.MaxCalls, pr.Usage.Calls),
	}, true
}

func subFloor(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

// IsTracked reports whether componentID has an active allocation.
func (l *Limiter) IsTracked(componentID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, exists := l.resources[componentID]
	return exists
}

// ComponentCount returns the number of components currently tracked.
func (l *Limiter) ComponentCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.resources)
}
