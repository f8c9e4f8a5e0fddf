// Package connstate implements the LibPolyCall hierarchical connection state
// machine (C4): validated transitions, monotonic sequencing, and atomic
// snapshots. Grounded on the ProcessState lifecycle idiom this module's teacher
// used for OS-process scheduling (the teacher's coreengine/kernel/types.go;
// component/types.go keeps none of it), adapted from process lifecycle to
// connection lifecycle.
package connstate

import (
	"sync"
	"time"

	"github.com/obinexus/polycall-sub011/errs"
)

// State is a node in the connection's state hierarchy.
type State string

const (
	Init      State = "init"
	Handshake State = "handshake"
	Auth      State = "auth"
	Ready     State = "ready"
	Active    State = "active"
	Streaming State = "streaming"
	Closing   State = "closing"
	Closed    State = "closed"
	Error     State = "error"
)

// successors maps each state to the set of states a transition may legally
// target, per spec.md §4.2's declared edges.
var successors = map[State]map[State]struct{}{
	Init:      set(Handshake),
	Handshake: set(Auth, Error),
	Auth:      set(Ready, Error),
	Ready:     set(Active, Streaming, Closing, Error),
	Active:    set(Streaming, Closing, Error),
	Streaming: set(Active, Closing, Error),
	Closing:   set(Closed, Error),
	Closed:    set(),
	Error:     set(Init),
}

func set(states ...State) map[State]struct{} {
	m := make(map[State]struct{}, len(states))
	for _, s := range states {
		m[s] = struct{}{}
	}
	return m
}

// CanTransition reports whether a transition from 'from' to 'to' is declared
// legal. "any → error" is universal per spec.md §4.2 and checked separately.
func CanTransition(from, to State) bool {
	if to == Error {
		return true
	}
	succ, ok := successors[from]
	if !ok {
		return false
	}
	_, ok = succ[to]
	return ok
}

// Snapshot is the atomic (state, sequence, timestamp) triple returned by Snapshot.
type Snapshot struct {
	State     State
	Sequence  uint64
	Timestamp time.Time
}

// Machine is a single connection's state machine. Zero value is not usable;
// construct with New.
type Machine struct {
	mu        sync.Mutex
	state     State
	sequence  uint64
	timestamp time.Time
	history   []Snapshot // bounded ring of the last maxHistory transitions
}

const maxHistory = 64

// New constructs a Machine starting in Init.
func New() *Machine {
	return &Machine{
		state:     Init,
		sequence:  0,
		timestamp: time.Now().UTC(),
	}
}

// Snapshot atomically returns the current (state, sequence, timestamp).
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{State: m.state, Sequence: m.sequence, Timestamp: m.timestamp}
}

// History returns up to the last maxHistory recorded transitions, oldest first.
// This is a supplemented feature (SPEC_FULL.md §12) beyond the bare snapshot
// spec.md §4.2 requires, useful for the security audit trail.
func (m *Machine) History() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, len(m.history))
	copy(out, m.history)
	return out
}

// RequestTransition performs request_transition(from_expected, to): it fails
// with InvalidTransition if the current state no longer matches fromExpected
// (optimistic concurrency), or if the edge from fromExpected to 'to' is not
// declared legal. A transition to the current state is idempotent: it succeeds
// without bumping the sequence number.
func (m *Machine) RequestTransition(fromExpected, to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != fromExpected {
		return errs.New(errs.InvalidTransition, "connstate", errs.SeverityError,
			"expected current state %s, actual %s", fromExpected, m.state)
	}
	if to == m.state {
		return nil // idempotent duplicate transition
	}
	if !CanTransition(m.state, to) {
		return errs.New(errs.InvalidTransition, "connstate", errs.SeverityError,
			"no declared edge %s -> %s", m.state, to)
	}

	m.sequence++
	m.state = to
	m.timestamp = time.Now().UTC()
	m.history = append(m.history, Snapshot{State: m.state, Sequence: m.sequence, Timestamp: m.timestamp})
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
	return nil
}
