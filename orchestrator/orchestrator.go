// Package orchestrator wires LibPolyCall's subsystems together and owns
// connection-session lifecycle and shutdown ordering (C12). Grounded on the
// teacher's Kernel (coreengine/kernel/kernel.go): a single struct composing
// every subsystem behind exported fields, an event-handler fan-out, and a
// ShutdownError that aggregates per-resource teardown failures instead of
// stopping at the first one — generalized from OS-process/session
// orchestration to protocol-connection orchestration.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/obinexus/polycall-sub011/bridge"
	"github.com/obinexus/polycall-sub011/component"
	"github.com/obinexus/polycall-sub011/config"
	"github.com/obinexus/polycall-sub011/connstate"
	"github.com/obinexus/polycall-sub011/errs"
	"github.com/obinexus/polycall-sub011/observability"
	"github.com/obinexus/polycall-sub011/pool"
	"github.com/obinexus/polycall-sub011/registry"
	"github.com/obinexus/polycall-sub011/security"
)

// Session is one active connection's orchestration state: its protocol state
// machine plus bookkeeping the orchestrator needs for stale-session cleanup.
type Session struct {
	ID             string
	Conn           *connstate.Machine
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// EventHandler observes orchestrator lifecycle events (session created,
// session closed). Mirrors the teacher's KernelEventHandler fan-out.
type EventHandler func(eventType string, sessionID string)

// Orchestrator composes every LibPolyCall subsystem behind one entry point:
// the command registry (C5), FFI bridge (C8), security engine (C9), resource
// limiter (C10), and connection pool (C11), plus the per-connection state
// machines (C4) it creates and tears down.
type Orchestrator struct {
	cfg *config.Config

	Commands  *registry.Registry
	Functions *bridge.FunctionTable
	Bridge    *bridge.Bridge
	Security  *security.Engine
	Resources *component.Limiter
	Pool      *pool.Pool

	mu            sync.RWMutex
	sessions      map[string]*Session
	eventHandlers []EventHandler

	stopCleanup func()
	startedAt   time.Time
	logger      errs.Logger
}

// Deps lets a caller supply a pre-built connection-pool factory/validator/
// closer (the byte-stream transport specifics the pool manages are outside
// this module's scope) and an outbound bridge Transport.
type Deps struct {
	PoolFactory   pool.Factory
	PoolValidate  pool.Validator
	PoolClose     pool.Closer
	BridgeTransport bridge.Transport
	Logger        errs.Logger
}

// New constructs an Orchestrator, wiring every subsystem from cfg and deps.
// If deps.PoolFactory is nil, no connection pool is built and the Pool field
// stays nil — useful for tests that only exercise the protocol/FFI path.
func New(cfg *config.Config, deps Deps) (*Orchestrator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := errs.OrNoop(deps.Logger)

	if _, err := observability.InitTracerProvider(cfg.ServiceName); err != nil {
		return nil, errs.Wrap(errs.OperationFailed, "orchestrator", errs.SeverityError, err, "init tracer provider")
	}

	commands := registry.New(logger)
	functions := bridge.NewFunctionTable()
	br := bridge.New(commands, functions, nil, deps.BridgeTransport)
	sec := security.New(cfg.ACLDefaultDeny, logger)
	resources := component.NewLimiter(cfg.DefaultQuota, logger)

	var connPool *pool.Pool
	if deps.PoolFactory != nil {
		var err error
		connPool, err = pool.New("orchestrator", cfg.Pool, deps.PoolFactory, deps.PoolValidate, deps.PoolClose)
		if err != nil {
			return nil, errs.Wrap(errs.OperationFailed, "orchestrator", errs.SeverityError, err, "build connection pool")
		}
	}

	o := &Orchestrator{
		cfg:       cfg,
		Commands:  commands,
		Functions: functions,
		Bridge:    br,
		Security:  sec,
		Resources: resources,
		Pool:      connPool,
		sessions:  make(map[string]*Session),
		startedAt: time.Now().UTC(),
		logger:    logger,
	}

	o.stopCleanup = resources.StartCleanupLoop(component.DefaultCleanupConfig())
	return o, nil
}

// OnEvent registers a lifecycle event handler.
func (o *Orchestrator) OnEvent(h EventHandler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.eventHandlers = append(o.eventHandlers, h)
}

func (o *Orchestrator) emit(eventType, sessionID string) {
	o.mu.RLock()
	handlers := append([]EventHandler(nil), o.eventHandlers...)
	o.mu.RUnlock()
	for _, h := range handlers {
		h(eventType, sessionID)
	}
}

// CreateSession starts a new connection-state machine under id and tracks it
// for lifecycle/cleanup purposes. Duplicate ids are rejected.
func (o *Orchestrator) CreateSession(id string) (*Session, error) {
	_, span := observability.Tracer().Start(context.Background(), "orchestrator.create_session")
	defer span.End()

	o.mu.Lock()
	if _, exists := o.sessions[id]; exists {
		o.mu.Unlock()
		return nil, errs.New(errs.AlreadyInitialized, "orchestrator", errs.SeverityError, "session %q already exists", id)
	}

	now := time.Now().UTC()
	s := &Session{ID: id, Conn: connstate.New(), CreatedAt: now, LastActivityAt: now}
	o.sessions[id] = s
	o.mu.Unlock()

	o.logger.Info("session_created", "session_id", id)
	o.emit("session_created", id)
	return s, nil
}

// GetSession returns the session tracked under id, if any.
func (o *Orchestrator) GetSession(id string) (*Session, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sessions[id]
	return s, ok
}

// Touch refreshes a session's last-activity timestamp, keeping it out of the
// stale-session sweep.
func (o *Orchestrator) Touch(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.sessions[id]; ok {
		s.LastActivityAt = time.Now().UTC()
	}
}

// CloseSession removes a tracked session and releases its component
// resource accounting, if any was allocated under the same id.
func (o *Orchestrator) CloseSession(id string) {
	o.mu.Lock()
	_, exists := o.sessions[id]
	delete(o.sessions, id)
	o.mu.Unlock()

	if !exists {
		return
	}
	o.Resources.Release(id)
	o.logger.Info("session_closed", "session_id", id)
	o.emit("session_closed", id)
}

// CleanupStaleSessions closes every session inactive for longer than the
// configured staleness window. Returns the number of sessions closed.
func (o *Orchestrator) CleanupStaleSessions() int {
	cutoff := time.Now().UTC().Add(-time.Duration(o.cfg.SessionStaleAfterSeconds) * time.Second)

	o.mu.RLock()
	stale := make([]string, 0)
	for id, s := range o.sessions {
		if s.LastActivityAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	o.mu.RUnlock()

	for _, id := range stale {
		o.CloseSession(id)
	}
	return len(stale)
}

// SessionCount returns the number of currently tracked sessions.
func (o *Orchestrator) SessionCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.sessions)
}

// Status reports a point-in-time snapshot of orchestrator-wide state,
// mirroring the teacher's GetSystemStatus aggregate.
func (o *Orchestrator) Status() map[string]any {
	status := map[string]any{
		"sessions":       o.SessionCount(),
		"resources":      o.Resources.GetSystemUsage(),
		"uptime_seconds": time.Since(o.startedAt).Seconds(),
	}
	if o.Pool != nil {
		idle, active := o.Pool.Size()
		status["pool"] = map[string]any{"idle": idle, "active": active}
	}
	return status
}

// ShutdownError aggregates every error encountered while tearing down
// subsystems, mirroring the teacher's ShutdownError (Unwrap returns the
// first error for errors.Is/As compatibility).
type ShutdownError struct {
	Errors []error
}

func (e *ShutdownError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "shutdown completed with no errors"
	case 1:
		return fmt.Sprintf("shutdown error: %v", e.Errors[0])
	default:
		return fmt.Sprintf("shutdown completed with %d errors", len(e.Errors))
	}
}

func (e *ShutdownError) Unwrap() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// Shutdown tears down every subsystem in dependency order: stop the
// background cleanup loop, close every tracked session, then drain the
// connection pool. If ctx is done before every session is closed, Shutdown
// stops there, leaving the remaining sessions and the pool as they are, and
// returns a ShutdownError carrying the context error.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.logger.Info("orchestrator_shutdown_initiated")
	var errList []error

	if o.stopCleanup != nil {
		o.stopCleanup()
	}

	o.mu.RLock()
	ids := make([]string, 0, len(o.sessions))
	for id := range o.sessions {
		ids = append(ids, id)
	}
	o.mu.RUnlock()

	for _, id := range ids {
		select {
		case <-ctx.Done():
			errList = append(errList, fmt.Errorf("shutdown cancelled: %w", ctx.Err()))
			return &ShutdownError{Errors: errList}
		default:
		}
		o.CloseSession(id)
	}

	if o.Pool != nil {
		o.Pool.Shutdown()
	}

	o.logger.Info("orchestrator_shutdown_completed", "errors", len(errList))
	if len(errList) > 0 {
		return &ShutdownError{Errors: errList}
	}
	return nil
}

