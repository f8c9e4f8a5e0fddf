package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obinexus/polycall-sub011/errs"
)

type fakeConn struct {
	id int
}

func newCountingFactory() (Factory, *int32) {
	var n int32
	return func() (any, error) {
		id := atomic.AddInt32(&n, 1)
		return &fakeConn{id: int(id)}, nil
	}, &n
}

func alwaysValid(any) bool { return true }
func noopClose(any)        {}

func TestNewWarmsMinConnections(t *testing.T) {
	factory, created := newCountingFactory()
	p, err := New("t1", Config{Min: 3, Max: 5}, factory, alwaysValid, noopClose)
	require.NoError(t, err)

	idle, active := p.Size()
	assert.Equal(t, 3, idle)
	assert.Equal(t, 3, active)
	assert.EqualValues(t, 3, *created)
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	factory, _ := newCountingFactory()
	p, err := New("t2", Config{Min: 1, Max: 2}, factory, alwaysValid, noopClose)
	require.NoError(t, err)

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	idle, active := p.Size()
	assert.Equal(t, 0, idle)
	assert.Equal(t, 1, active)

	p.Release(conn)
	idle, active = p.Size()
	assert.Equal(t, 1, idle)
	assert.Equal(t, 1, active)
}

func TestAcquireGrowsUpToMax(t *testing.T) {
	factory, created := newCountingFactory()
	p, err := New("t3", Config{Min: 0, Max: 2}, factory, alwaysValid, noopClose)
	require.NoError(t, err)

	c1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)
	assert.EqualValues(t, 2, *created)

	_, active := p.Size()
	assert.Equal(t, 2, active)
}

func TestAcquireTimesOutWithPoolExhausted(t *testing.T) {
	factory, _ := newCountingFactory()
	p, err := New("t4", Config{Min: 1, Max: 1, AcquireTimeout: 20 * time.Millisecond}, factory, alwaysValid, noopClose)
	require.NoError(t, err)

	_, err = p.Acquire(context.Background())
	require.NoError(t, err) // takes the only connection

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.PoolExhausted))
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	factory, _ := newCountingFactory()
	p, err := New("t5", Config{Min: 1, Max: 1, AcquireTimeout: time.Second}, factory, alwaysValid, noopClose)
	require.NoError(t, err)

	_, err = p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()
	_, err = p.Acquire(ctx)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Cancelled))
}

func TestReleaseWithFailedValidationClosesAndCools(t *testing.T) {
	factory, _ := newCountingFactory()
	var closed int32
	closeFn := func(any) { atomic.AddInt32(&closed, 1) }
	invalid := func(any) bool { return false }

	p, err := New("t6", Config{Min: 1, Max: 1, CooldownFailures: 1, CooldownSeconds: 60}, factory, invalid, closeFn)
	require.NoError(t, err)

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(conn)

	assert.EqualValues(t, 1, atomic.LoadInt32(&closed))
	_, active := p.Size()
	assert.Equal(t, 0, active)
}

func TestCooledConnectionSkippedOnAcquire(t *testing.T) {
	factory, created := newCountingFactory()
	var closed int32
	closeFn := func(any) { atomic.AddInt32(&closed, 1) }

	calls := 0
	validate := func(any) bool {
		calls++
		return calls > 1 // first release fails validation, rest succeed
	}

	p, err := New("t7", Config{Min: 1, Max: 2, CooldownFailures: 1, CooldownSeconds: 60}, factory, validate, closeFn)
	require.NoError(t, err)

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(conn) // fails validation -> closed, cooled

	assert.EqualValues(t, 1, atomic.LoadInt32(&closed))

	// pool must create a fresh connection since the cooled one is gone
	conn2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, conn2)
	assert.GreaterOrEqual(t, int(*created), 2)
}

func TestLIFOStrategyReturnsMostRecentlyReleased(t *testing.T) {
	factory, _ := newCountingFactory()
	p, err := New("t8", Config{Min: 0, Max: 3, Strategy: StrategyLIFO}, factory, alwaysValid, noopClose)
	require.NoError(t, err)

	c1, _ := p.Acquire(context.Background())
	c2, _ := p.Acquire(context.Background())
	p.Release(c1)
	p.Release(c2)

	got, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, c2, got)
}

func TestFIFOStrategyReturnsOldestReleased(t *testing.T) {
	factory, _ := newCountingFactory()
	p, err := New("t9", Config{Min: 0, Max: 3, Strategy: StrategyFIFO}, factory, alwaysValid, noopClose)
	require.NoError(t, err)

	c1, _ := p.Acquire(context.Background())
	c2, _ := p.Acquire(context.Background())
	p.Release(c1)
	p.Release(c2)

	got, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, c1, got)
}

func TestRoundRobinStrategyCyclesThroughIdle(t *testing.T) {
	factory, _ := newCountingFactory()
	p, err := New("t10", Config{Min: 0, Max: 3, Strategy: StrategyRoundRobin}, factory, alwaysValid, noopClose)
	require.NoError(t, err)

	c1, _ := p.Acquire(context.Background())
	c2, _ := p.Acquire(context.Background())
	c3, _ := p.Acquire(context.Background())
	p.Release(c1)
	p.Release(c2)
	p.Release(c3)

	seen := map[any]bool{}
	for i := 0; i < 3; i++ {
		got, err := p.Acquire(context.Background())
		require.NoError(t, err)
		seen[got] = true
		p.Release(got)
	}
	assert.Len(t, seen, 3)
}

func TestLRUStrategyReturnsLeastRecentlyUsed(t *testing.T) {
	factory, _ := newCountingFactory()
	p, err := New("t11", Config{Min: 0, Max: 2, Strategy: StrategyLRU}, factory, alwaysValid, noopClose)
	require.NoError(t, err)

	c1, _ := p.Acquire(context.Background())
	c2, _ := p.Acquire(context.Background())
	p.Release(c1)
	time.Sleep(5 * time.Millisecond)
	p.Release(c2)

	got, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, c1, got)
}

func TestShutdownClosesIdleConnections(t *testing.T) {
	factory, _ := newCountingFactory()
	var closed int32
	closeFn := func(any) { atomic.AddInt32(&closed, 1) }

	p, err := New("t12", Config{Min: 2, Max: 2}, factory, alwaysValid, closeFn)
	require.NoError(t, err)

	p.Shutdown()
	assert.EqualValues(t, 2, atomic.LoadInt32(&closed))
	idle, _ := p.Size()
	assert.Equal(t, 0, idle)
}
