// Package stream implements LibPolyCall's duplex stream engine (C6):
// buffered bidirectional byte streams with observer dispatch, backpressure
// signaling, and auto-reconnect with exponential backoff. Grounded on the
// teacher's WaitGroup fan-out idiom for delivering one message to many
// subscribers and the BytePool-style bounded-buffer pattern from
// momentics-hioload-ws/protocol/wsframe.go.
package stream

import (
	"sync"
	"time"

	"github.com/obinexus/polycall-sub011/errs"
	"github.com/obinexus/polycall-sub011/observability"
)

// Observer receives stream events. OnNext delivers one chunk; OnError reports
// a terminal failure; OnComplete signals a graceful close. Implementations
// must not block for long — the dispatch goroutine waits for every observer's
// OnNext before it delivers the next chunk.
type Observer interface {
	OnNext(data []byte)
	OnError(err error)
	OnComplete()
}

// ObserverFuncs adapts plain functions into an Observer, for callers that
// only care about a subset of events.
type ObserverFuncs struct {
	Next     func(data []byte)
	Err      func(err error)
	Complete func()
}

func (f ObserverFuncs) OnNext(data []byte) {
	if f.Next != nil {
		f.Next(data)
	}
}
func (f ObserverFuncs) OnError(err error) {
	if f.Err != nil {
		f.Err(err)
	}
}
func (f ObserverFuncs) OnComplete() {
	if f.Complete != nil {
		f.Complete()
	}
}

// State is a node in a stream's lifecycle, per spec.md §4.4:
// init → open → active ↔ paused → closing → closed (plus error, reachable
// from any non-terminal state). Grounded on connstate's successors-map
// idiom (connstate/state.go), kept local rather than shared since a
// stream's lifecycle edges differ from a connection's.
type State string

const (
	StateInit    State = "init"
	StateOpen    State = "open"
	StateActive  State = "active"
	StatePaused  State = "paused"
	StateClosing State = "closing"
	StateClosed  State = "closed"
	StateError   State = "error"
)

var streamSuccessors = map[State]map[State]struct{}{
	StateInit:    streamSet(StateOpen),
	StateOpen:    streamSet(StateActive, StateClosing),
	StateActive:  streamSet(StatePaused, StateClosing),
	StatePaused:  streamSet(StateActive, StateClosing),
	StateClosing: streamSet(StateClosed),
	StateClosed:  streamSet(),
	StateError:   streamSet(),
}

func streamSet(states ...State) map[State]struct{} {
	m := make(map[State]struct{}, len(states))
	for _, st := range states {
		m[st] = struct{}{}
	}
	return m
}

// canTransition reports whether from->to is a declared edge. Any non-closed
// state may transition to Error.
func canTransition(from, to State) bool {
	if to == StateError {
		return from != StateClosed
	}
	succ, ok := streamSuccessors[from]
	if !ok {
		return false
	}
	_, ok = succ[to]
	return ok
}

// Config tunes a Stream's buffering and backpressure behavior.
type Config struct {
	// Capacity is the maximum number of buffered, undelivered chunks.
	Capacity int
	// BufferThresholdPercent is the percentage of Capacity at which Push
	// records a backpressure event and sets Stats().BufferThresholdFired.
	// No callback is invoked.
	BufferThresholdPercent int
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 256
	}
	if c.BufferThresholdPercent <= 0 {
		c.BufferThresholdPercent = 80
	}
	return c
}

// Stream is a single named duplex byte stream: Push enqueues outbound data,
// which is fanned out to every registered Observer by a dedicated dispatch
// goroutine.
type Stream struct {
	id     string
	cfg    Config
	mu     sync.RWMutex
	obs    []Observer
	buf    chan []byte
	state  State
	logger errs.Logger

	thresholdFired    bool
	messagesSent      uint64
	messagesDelivered uint64
}

// New constructs a Stream with the given id and config, starting its
// dispatch goroutine immediately. The stream starts in StateInit and
// immediately completes its (trivial, transport-less) handshake into
// StateOpen.
func New(id string, cfg Config, logger errs.Logger) *Stream {
	cfg = cfg.withDefaults()
	s := &Stream{
		id:     id,
		cfg:    cfg,
		buf:    make(chan []byte, cfg.Capacity),
		state:  StateInit,
		logger: errs.OrNoop(logger),
	}
	s.state = StateOpen
	go s.dispatchLoop()
	return s
}

// transitionLocked moves the stream to 'to' if the edge is declared legal.
// Callers must hold s.mu for writing.
func (s *Stream) transitionLocked(to State) error {
	if !canTransition(s.state, to) {
		return errs.New(errs.InvalidTransition, "stream", errs.SeverityError,
			"stream %q: no declared edge %s -> %s", s.id, s.state, to)
	}
	s.state = to
	return nil
}

// State returns the stream's current lifecycle state.
func (s *Stream) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Pause suspends an active stream (active -> paused). Returns InvalidTransition
// if the stream isn't currently active.
func (s *Stream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(StatePaused)
}

// Resume reactivates a paused stream (paused -> active). Returns
// InvalidTransition if the stream isn't currently paused.
func (s *Stream) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(StateActive)
}

// Poll reports whether at least one complete message is currently buffered
// and not yet delivered, per spec.md §4.4.
func (s *Stream) Poll() bool {
	return len(s.buf) > 0
}

// Stats is an atomically captured snapshot of a stream's lifecycle state and
// throughput counters, per spec.md §4.4 ("statistics ... exposed
// atomically").
type Stats struct {
	State                State
	Pending              int
	MessagesSent         uint64
	MessagesDelivered    uint64
	BufferThresholdFired bool
}

// Stats returns a consistent snapshot of the stream's state and counters,
// guarded by the same mutex every mutation goes through.
func (s *Stream) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		State:                s.state,
		Pending:              len(s.buf),
		MessagesSent:         s.messagesSent,
		MessagesDelivered:    s.messagesDelivered,
		BufferThresholdFired: s.thresholdFired,
	}
}

// Subscribe registers an observer for future chunks. Not retroactive: chunks
// already dispatched before Subscribe are not replayed.
func (s *Stream) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs = append(s.obs, o)
}

// Push enqueues data for delivery to all subscribers. Returns CapacityExceeded
// (the stream's "would block" condition) if the buffer is full rather than
// blocking the caller. Once pending chunks reach Config.BufferThresholdPercent
// of Capacity it records a backpressure metric and sets the threshold flag
// reported by Stats; there is no threshold callback.
func (s *Stream) Push(data []byte) error {
	s.mu.Lock()
	switch s.state {
	case StateClosing, StateClosed, StateError:
		s.mu.Unlock()
		return errs.New(errs.InvalidState, "stream", errs.SeverityError, "stream %q is closed", s.id)
	case StatePaused:
		s.mu.Unlock()
		return errs.New(errs.InvalidState, "stream", errs.SeverityError, "stream %q is paused", s.id)
	case StateOpen:
		_ = s.transitionLocked(StateActive) // first push activates the stream
	}
	s.mu.Unlock()

	select {
	case s.buf <- data:
	default:
		return errs.New(errs.CapacityExceeded, "stream", errs.SeverityError,
			"stream %q buffer full, would block", s.id)
	}

	s.mu.Lock()
	s.messagesSent++
	s.mu.Unlock()

	pending := len(s.buf)
	thresholdCount := s.cfg.Capacity * s.cfg.BufferThresholdPercent / 100
	if pending >= thresholdCount {
		s.mu.Lock()
		already := s.thresholdFired
		s.thresholdFired = true
		s.mu.Unlock()
		if !already {
			observability.RecordStreamBackpressure(s.id)
		}
	} else {
		s.mu.Lock()
		s.thresholdFired = false
		s.mu.Unlock()
	}
	return nil
}

// Close stops accepting new data and signals OnComplete once the buffer drains.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.state == StateClosing || s.state == StateClosed || s.state == StateError {
		s.mu.Unlock()
		return
	}
	_ = s.transitionLocked(StateClosing)
	s.mu.Unlock()
	close(s.buf)
}

func (s *Stream) dispatchLoop() {
	for data := range s.buf {
		s.fanOut(data)
	}
	s.mu.Lock()
	_ = s.transitionLocked(StateClosed)
	observers := append([]Observer(nil), s.obs...)
	s.mu.Unlock()
	var wg sync.WaitGroup
	for _, o := range observers {
		wg.Add(1)
		go func(o Observer) {
			defer wg.Done()
			o.OnComplete()
		}(o)
	}
	wg.Wait()
}

func (s *Stream) fanOut(data []byte) {
	s.mu.Lock()
	s.messagesDelivered++
	observers := append([]Observer(nil), s.obs...)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, o := range observers {
		wg.Add(1)
		go func(o Observer) {
			defer wg.Done()
			o.OnNext(data)
		}(o)
	}
	wg.Wait()
}

// Fail notifies every observer of a terminal error and transitions the stream
// to StateError without draining pending buffered data.
func (s *Stream) Fail(err error) {
	s.mu.Lock()
	if s.state == StateClosed || s.state == StateError {
		s.mu.Unlock()
		return
	}
	_ = s.transitionLocked(StateError)
	observers := append([]Observer(nil), s.obs...)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, o := range observers {
		wg.Add(1)
		go func(o Observer) {
			defer wg.Done()
			o.OnError(err)
		}(o)
	}
	wg.Wait()
}

// Reconnector attempts to re-establish whatever transport backs a Stream.
// Returning nil indicates success.
type Reconnector func() error

// BackoffConfig tunes Reconnect's exponential backoff schedule.
type BackoffConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	return c
}

// Reconnect retries fn with exponential backoff (doubling each attempt,
// capped at cfg.MaxDelay) until it succeeds or cfg.MaxAttempts is exhausted.
func Reconnect(cfg BackoffConfig, fn Reconnector) error {
	cfg = cfg.withDefaults()
	delay := cfg.InitialDelay
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(delay)
		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return errs.Wrap(errs.Timeout, "stream", errs.SeverityError, lastErr,
		"reconnect exhausted %d attempts", cfg.MaxAttempts)
}
