package component

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obinexus/polycall-sub011/errs"
)

func TestAllocateRejectsDuplicate(t *testing.T) {
	l := NewLimiter(DefaultQuota(), nil)
	require.NoError(t, l.Allocate("c1", DefaultQuota()))

	err := l.Allocate("c1", DefaultQuota())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.AlreadyInitialized))
}

func TestRecordUsageAutoAllocatesAndReportsQuotaExceeded(t *testing.T) {
	l := NewLimiter(Quota{MaxMemoryBytes: 100, Enforce: true, Track: true}, nil)

	err := l.RecordUsage("c1", 50, 0, 0, 1)
	require.NoError(t, err)

	err = l.RecordUsage("c1", 60, 0, 0, 1)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.QuotaExceeded))
}

// TestRecordUsageRejectionLeavesUsageUnchanged is spec.md §8 scenario 4:
// memory_quota=1024, enforce=true. Allocate 512 (ok), allocate 600
// (rejected). Usage must stay at 512, not 1112, and the rejection must be
// observable as exactly one violation with peak usage frozen at 512.
func TestRecordUsageRejectionLeavesUsageUnchanged(t *testing.T) {
	l := NewLimiter(Quota{MaxMemoryBytes: 1024, Enforce: true, Track: true}, nil)

	require.NoError(t, l.RecordUsage("c1", 512, 0, 0, 0))

	err := l.RecordUsage("c1", 600, 0, 0, 0)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.QuotaExceeded))

	usage, ok := l.GetUsage("c1")
	require.True(t, ok)
	assert.EqualValues(t, 512, usage.MemoryBytes)

	stats, ok := l.GetStats("c1")
	require.True(t, ok)
	assert.EqualValues(t, 512, stats.Peak.MemoryBytes)
	assert.EqualValues(t, 1, stats.ViolationCount)
	assert.EqualValues(t, 1, stats.AllocCount)
}

func TestRecordUsageTrackOnlyModeNeverRejects(t *testing.T) {
	l := NewLimiter(Quota{MaxMemoryBytes: 100, Enforce: false, Track: true}, nil)

	require.NoError(t, l.RecordUsage("c1", 50, 0, 0, 0))
	require.NoError(t, l.RecordUsage("c1", 60, 0, 0, 0))

	usage, ok := l.GetUsage("c1")
	require.True(t, ok)
	assert.EqualValues(t, 110, usage.MemoryBytes)

	stats, ok := l.GetStats("c1")
	require.True(t, ok)
	assert.EqualValues(t, 1, stats.ViolationCount)
}

func TestRecordUsageUntrackedQuotaIsNoop(t *testing.T) {
	l := NewLimiter(Quota{MaxMemoryBytes: 100, Enforce: true, Track: false}, nil)

	require.NoError(t, l.RecordUsage("c1", 1_000, 0, 0, 0))

	usage, ok := l.GetUsage("c1")
	require.True(t, ok)
	assert.Zero(t, usage.MemoryBytes)
}

func TestThresholdCallbackFiresOnce(t *testing.T) {
	l := NewLimiter(Quota{MaxMemoryBytes: 100, Enforce: true, Track: true}, nil)

	var mu sync.Mutex
	var fired []int
	l.OnThreshold(ResourceMemory, 50, func(componentID, resource string, percent int) {
		mu.Lock()
		fired = append(fired, percent)
		mu.Unlock()
	})

	_ = l.RecordUsage("c1", 60, 0, 0, 1) // crosses 50%
	_ = l.RecordUsage("c1", 5, 0, 0, 1)  // still above 50%, should not re-fire at same tier

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, fired, 1)
}

func TestReleaseFreesSystemAccounting(t *testing.T) {
	l := NewLimiter(DefaultQuota(), nil)
	require.NoError(t, l.RecordUsage("c1", 10, 0, 0, 1))

	before := l.GetSystemUsage()
	assert.EqualValues(t, 10, before.SystemMemory)

	l.Release("c1")
	after := l.GetSystemUsage()
	assert.EqualValues(t, 0, after.SystemMemory)
	assert.False(t, l.IsTracked("c1"))
}

func TestGetRemainingBudget(t *testing.T) {
	l := NewLimiter(Quota{MaxMemoryBytes: 100, MaxCalls: 10, Enforce: true, Track: true}, nil)
	require.NoError(t, l.RecordUsage("c1", 30, 0, 0, 2))

	budget, ok := l.GetRemainingBudget("c1")
	require.True(t, ok)
	assert.EqualValues(t, 70, budget.MemoryBytes)
	assert.EqualValues(t, 8, budget.Calls)
}
