package component

import (
	"time"

	"github.com/obinexus/polycall-sub011/errs"
)

// CleanupConfig holds configurable parameters for the Limiter's background
// sweep, grounded on the teacher's CleanupConfig/StartCleanupLoop idiom
// (ticker + done channel, panic-recovered cycle body) — generalized from
// session/process/rate-limiter retention to stale-component release.
type CleanupConfig struct {
	// Interval is how often the sweep runs.
	Interval time.Duration
	// IdleRetention is how long a component may go without recorded usage
	// before the sweep releases it.
	IdleRetention time.Duration
}

// DefaultCleanupConfig returns a conservative sweep configuration.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Interval:      5 * time.Minute,
		IdleRetention: 1 * time.Hour,
	}
}

// StartCleanupLoop starts a background goroutine that periodically releases
// components idle longer than cfg.IdleRetention. Returns a stop function.
func (l *Limiter) StartCleanupLoop(cfg CleanupConfig) func() {
	if cfg.Interval == 0 {
		cfg = DefaultCleanupConfig()
	}

	ticker := time.NewTicker(cfg.Interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				l.runCleanupCycle(cfg)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

// runCleanupCycle releases every component whose last recorded usage is
// older than cfg.IdleRetention, recovering from any panic in the sweep body
// so a single bad entry cannot kill the loop.
func (l *Limiter) runCleanupCycle(cfg CleanupConfig) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("cleanup_panic_recovered", "error", r)
		}
	}()

	cutoff := time.Now().UTC().Add(-cfg.IdleRetention)

	l.mu.RLock()
	stale := make([]string, 0)
	for id, pr := range l.resources {
		if pr.LastUpdatedAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	l.mu.RUnlock()

	for _, id := range stale {
		l.Release(id)
	}

	l.logger.Debug("cleanup_cycle_completed", "components_released", len(stale))
}

// allocationSentinel marks a live (un-released) pooled allocation header,
// catching a double-release before it corrupts the pool.
const allocationSentinel = 0xA110C8ED

// Allocation is a pooled buffer handed out by a Pool, grounded on the
// teacher's WebSocketFrame/BytePool.Release idiom (momentics-hioload-ws's
// protocol/wsframe.go): a payload borrowed from a pool, returned via an
// explicit Release call, with the bytes zeroed before the buffer is reused.
type Allocation struct {
	Bytes    []byte
	sentinel uint32
}

// Pool hands out fixed-size byte buffers and recycles them through a bounded
// channel of released buffers, implementing the memory side of a component's quota-tracked allocations
// (C2). Every Acquire must be paired with exactly one Release.
type Pool struct {
	size int
	free chan *Allocation
}

// NewPool constructs a Pool of buffers of the given size. No buffer is
// allocated up front; capacity bounds how many released buffers are kept for
// reuse, and Release drops any beyond that.
func NewPool(size, capacity int) *Pool {
	return &Pool{size: size, free: make(chan *Allocation, capacity)}
}

// Acquire returns a zeroed buffer of the pool's configured size, reusing a
// released one if available.
func (p *Pool) Acquire() *Allocation {
	select {
	case a := <-p.free:
		for i := range a.Bytes {
			a.Bytes[i] = 0
		}
		a.sentinel = allocationSentinel
		return a
	default:
		return &Allocation{Bytes: make([]byte, p.size), sentinel: allocationSentinel}
	}
}

// Release zeroes a's bytes and returns it to the pool for reuse. Releasing an
// allocation twice reports InvalidState rather than corrupting the pool.
func (p *Pool) Release(a *Allocation) error {
	if a.sentinel != allocationSentinel {
		return errs.New(errs.InvalidState, "component", errs.SeverityError,
			"release of an allocation that was already released or not pool-issued")
	}
	a.sentinel = 0
	for i := range a.Bytes {
		a.Bytes[i] = 0
	}
	select {
	case p.free <- a:
	default:
		// pool at capacity: drop the buffer, let the GC reclaim it
	}
	return nil
}
