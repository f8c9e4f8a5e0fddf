package pool

import (
	"context"
	"sync"
	"time"

	"github.com/obinexus/polycall-sub011/errs"
	"github.com/obinexus/polycall-sub011/observability"
)

// Strategy selects which idle connection Acquire hands out next.
type Strategy int

const (
	StrategyFIFO Strategy = iota
	StrategyLIFO
	StrategyLRU
	StrategyRoundRobin
)

// Factory creates a new pooled connection.
type Factory func() (any, error)

// Validator reports whether a connection is still healthy enough to reuse.
type Validator func(any) bool

// Closer releases a connection's underlying resources.
type Closer func(any)

type entry struct {
	key      string
	conn     any
	lastUsed time.Time
}

// Config bounds a Pool's size and behavior.
type Config struct {
	Min             int
	Max             int
	Strategy        Strategy
	AcquireTimeout  time.Duration
	CooldownFailures int // failures within CooldownSeconds before a key is skipped
	CooldownSeconds  int
}

func (c Config) withDefaults() Config {
	if c.Max <= 0 {
		c.Max = 8
	}
	if c.Min < 0 {
		c.Min = 0
	}
	if c.Min > c.Max {
		c.Min = c.Max
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 5 * time.Second
	}
	if c.CooldownFailures <= 0 {
		c.CooldownFailures = 3
	}
	if c.CooldownSeconds <= 0 {
		c.CooldownSeconds = 30
	}
	return c
}

// Pool is a bounded [min, max] connection pool with pluggable acquire
// strategies and validate-on-release, grounded on the teacher's
// mutex-protected per-key map idiom (coreengine/kernel/rate_limiter.go's
// RateLimiter) generalized from rate-limit windows to pooled connections.
type Pool struct {
	name     string
	cfg      Config
	factory  Factory
	validate Validator
	closeFn  Closer
	cooldown *CooldownTracker

	mu       sync.Mutex
	idle     []entry
	active   int
	nextKey  uint64
	rrCursor int
	waiters  chan struct{}
	connKeys map[any]string // identity of a live connection -> its cooldown key
}

// New constructs a Pool, eagerly creating cfg.Min warm connections via a
// WaitGroup fan-out over factory calls.
func New(name string, cfg Config, factory Factory, validate Validator, closeFn Closer) (*Pool, error) {
	cfg = cfg.withDefaults()
	p := &Pool{
		name:     name,
		cfg:      cfg,
		factory:  factory,
		validate: validate,
		closeFn:  closeFn,
		cooldown: NewCooldownTracker(cfg.CooldownFailures, cfg.CooldownSeconds),
		waiters:  make(chan struct{}, cfg.Max),
		connKeys: make(map[any]string),
	}

	type warmResult struct {
		conn any
		err  error
	}
	results := make([]warmResult, cfg.Min)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Min; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := factory()
			results[i] = warmResult{conn: conn, err: err}
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		if r.err != nil {
			return nil, errs.Wrap(errs.OperationFailed, "pool", errs.SeverityError, r.err, "warm up connection")
		}
		p.idle = append(p.idle, p.newEntry(r.conn))
		p.active++
	}
	observability.SetPoolGauge(name, "idle", float64(len(p.idle)))
	return p, nil
}

func (p *Pool) newEntry(conn any) entry {
	p.nextKey++
	key := keyOf(p.nextKey)
	p.connKeys[conn] = key
	return entry{key: key, conn: conn, lastUsed: time.Now().UTC()}
}

func keyOf(n uint64) string {
	buf := make([]byte, 0, 20)
	if n == 0 {
		return "0"
	}
	digits := make([]byte, 0, 20)
	for n > 0 {
		digits = append(digits, byte('0'+n%10))
		n /= 10
	}
	for i := len(digits) - 1; i >= 0; i-- {
		buf = append(buf, digits[i])
	}
	return string(buf)
}

// Acquire returns an idle connection chosen by the pool's strategy, creating
// a new one if under Max, or blocks until one frees up or ctx/AcquireTimeout
// elapses, reporting PoolExhausted on timeout.
func (p *Pool) Acquire(ctx context.Context) (any, error) {
	deadline := time.Now().Add(p.cfg.AcquireTimeout)
	for {
		start := time.Now()
		p.mu.Lock()
		if conn, ok := p.takeIdleLocked(); ok {
			p.mu.Unlock()
			observability.RecordPoolAcquire(p.name, "success", time.Since(start))
			return conn, nil
		}
		if p.active < p.cfg.Max {
			p.active++
			p.mu.Unlock()
			conn, err := p.factory()
			if err != nil {
				p.mu.Lock()
				p.active--
				p.mu.Unlock()
				return nil, errs.Wrap(errs.OperationFailed, "pool", errs.SeverityError, err, "create connection")
			}
			p.mu.Lock()
			p.nextKey++
			p.connKeys[conn] = keyOf(p.nextKey)
			p.mu.Unlock()
			observability.RecordPoolAcquire(p.name, "success", time.Since(start))
			return conn, nil
		}
		p.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			observability.RecordPoolAcquire(p.name, "exhausted", p.cfg.AcquireTimeout)
			return nil, errs.New(errs.PoolExhausted, "pool", errs.SeverityError,
				"pool %q exhausted: %d/%d connections in use", p.name, p.active, p.cfg.Max)
		}
		select {
		case <-ctx.Done():
			return nil, errs.Wrap(errs.Cancelled, "pool", errs.SeverityError, ctx.Err(), "acquire cancelled")
		case <-time.After(minDuration(remaining, 10*time.Millisecond)):
		}
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// takeIdleLocked removes and returns one idle connection per the pool's
// strategy. Caller must hold p.mu.
func (p *Pool) takeIdleLocked() (any, bool) {
	for len(p.idle) > 0 {
		var idx int
		switch p.cfg.Strategy {
		case StrategyLIFO:
			idx = len(p.idle) - 1
		case StrategyLRU:
			idx = p.lruIndexLocked()
		case StrategyRoundRobin:
			idx = p.rrCursor % len(p.idle)
			p.rrCursor++
		default: // FIFO
			idx = 0
		}
		e := p.idle[idx]
		p.idle = append(p.idle[:idx], p.idle[idx+1:]...)
		if p.cooldown.IsCooling(e.key) {
			p.closeFn(e.conn)
			p.active--
			delete(p.connKeys, e.conn)
			continue
		}
		return e.conn, true
	}
	return nil, false
}

func (p *Pool) lruIndexLocked() int {
	idx := 0
	oldest := p.idle[0].lastUsed
	for i, e := range p.idle {
		if e.lastUsed.Before(oldest) {
			oldest = e.lastUsed
			idx = i
		}
	}
	return idx
}

// Release validates and returns conn to the idle pool. A connection that
// fails validation is closed and recorded against the pool's cooldown
// tracker instead of being discarded silently.
func (p *Pool) Release(conn any) {
	key := p.keyForConn(conn)
	if p.validate != nil && !p.validate(conn) {
		p.cooldown.RecordFailure(key)
		p.closeFn(conn)
		p.mu.Lock()
		p.active--
		delete(p.connKeys, conn)
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.idle = append(p.idle, entry{key: key, conn: conn, lastUsed: time.Now().UTC()})
	observability.SetPoolGauge(p.name, "idle", float64(len(p.idle)))
	p.mu.Unlock()
}

// keyForConn returns conn's cooldown key, assigning one if this connection
// was created outside the pool's own factory bookkeeping.
func (p *Pool) keyForConn(conn any) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if key, ok := p.connKeys[conn]; ok {
		return key
	}
	p.nextKey++
	key := keyOf(p.nextKey)
	p.connKeys[conn] = key
	return key
}

// Size returns the current (idle, active) connection counts, where active
// counts every live connection the pool owns, idle ones included.
func (p *Pool) Size() (idle, active int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle), p.active
}

// Shutdown closes every idle connection, leaving connections still checked
// out to their callers to close on Release.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	for _, e := range idle {
		delete(p.connKeys, e.conn)
	}
	p.mu.Unlock()
	for _, e := range idle {
		p.closeFn(e.conn)
	}
}
