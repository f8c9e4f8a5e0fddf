package component

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCleanupConfig(t *testing.T) {
	cfg := DefaultCleanupConfig()
	assert.Equal(t, 5*time.Minute, cfg.Interval)
	assert.Equal(t, 1*time.Hour, cfg.IdleRetention)
}

func TestCleanupLoopReleasesIdleComponents(t *testing.T) {
	l := NewLimiter(DefaultQuota(), nil)
	require.NoError(t, l.RecordUsage("stale", 10, 0, 0, 1))

	cfg := CleanupConfig{Interval: 5 * time.Millisecond, IdleRetention: 1 * time.Millisecond}
	stop := l.StartCleanupLoop(cfg)
	time.Sleep(30 * time.Millisecond)
	stop()

	assert.False(t, l.IsTracked("stale"))
}

func TestCleanupLoopDoesNotPanicWithEmptyLimiter(t *testing.T) {
	l := NewLimiter(DefaultQuota(), nil)
	cfg := CleanupConfig{}
	stop := l.StartCleanupLoop(cfg)
	time.Sleep(10 * time.Millisecond)
	assert.NotPanics(t, stop)
}

func TestPoolAcquireReleaseRoundTrip(t *testing.T) {
	p := NewPool(16, 4)
	a := p.Acquire()
	require.Len(t, a.Bytes, 16)

	a.Bytes[0] = 0xFF
	require.NoError(t, p.Release(a))
	assert.Equal(t, byte(0), a.Bytes[0], "released bytes must be zeroed")
}

func TestPoolDoubleReleaseIsRejected(t *testing.T) {
	p := NewPool(8, 2)
	a := p.Acquire()
	require.NoError(t, p.Release(a))
	err := p.Release(a)
	require.Error(t, err)
}

func TestPoolReusesReleasedBuffer(t *testing.T) {
	p := NewPool(8, 1)
	first := p.Acquire()
	require.NoError(t, p.Release(first))

	second := p.Acquire()
	assert.Same(t, first, second)
}
