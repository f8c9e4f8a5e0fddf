// Package bridge implements LibPolyCall's protocol↔FFI bridge (C8): inbound
// dispatch from a decoded wire command to a locally registered function, and
// outbound dispatch from a local call to a remote peer via a glob-matched
// routing table and a sequence-keyed pending-waiter table. Grounded on the
// teacher's orchestrator evaluateRouting (glob/priority rule evaluation over
// an ordered rule list, falling back to a default) adapted from pipeline
// stage routing to function-name routing, and otel span creation per call.
package bridge

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/obinexus/polycall-sub011/connstate"
	"github.com/obinexus/polycall-sub011/errs"
	"github.com/obinexus/polycall-sub011/fftype"
	"github.com/obinexus/polycall-sub011/observability"
	"github.com/obinexus/polycall-sub011/registry"
	"github.com/obinexus/polycall-sub011/wire"
)

// Signature describes an FFI function's parameter and return types plus the
// calling language it was registered from (spec.md §3 "FFI signature").
type Signature struct {
	ParamTags []wire.TypeTag
	ReturnTag wire.TypeTag
	Language  string
}

// LocalFunc is a locally registered function the bridge can invoke once wire
// parameters have been converted to FFI values.
type LocalFunc func(ctx context.Context, args []any) (any, error)

// FunctionEntry pairs a name with its signature and local implementation.
type FunctionEntry struct {
	Name      string
	Signature Signature
	Fn        LocalFunc
}

// FunctionTable is the name-keyed registry of locally callable functions the
// inbound path resolves against, separate from C5's id-keyed command
// registry (a wire command carries an id; the bridge resolves the
// command's descriptor name and looks it up here by name, per spec.md §4.6).
type FunctionTable struct {
	mu     sync.RWMutex
	byName map[string]*FunctionEntry
}

// NewFunctionTable constructs an empty FunctionTable.
func NewFunctionTable() *FunctionTable {
	return &FunctionTable{byName: make(map[string]*FunctionEntry)}
}

// Register adds a function entry. Duplicate names are rejected.
func (t *FunctionTable) Register(e *FunctionEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.byName[e.Name]; exists {
		return errs.New(errs.Duplicate, "bridge", errs.SeverityError, "function %q already registered", e.Name)
	}
	t.byName[e.Name] = e
	return nil
}

// Resolve looks up a function entry by name.
func (t *FunctionTable) Resolve(name string) (*FunctionEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byName[name]
	return e, ok
}

// Route is one outbound routing rule: calls whose function name matches Glob
// are sent to Endpoint. Higher Priority wins; ties break by registration
// order (spec.md's Open Question on routing-table tie-breaking, resolved the
// same way as the teacher's rule-list evaluation — first match in order).
type Route struct {
	Glob     string
	Endpoint string
	Priority int
	seq      int
}

// RoutingTable holds outbound routing rules, matched highest-priority-first.
type RoutingTable struct {
	mu     sync.RWMutex
	routes []Route
	seq    int
}

// NewRoutingTable constructs an empty RoutingTable.
func NewRoutingTable() *RoutingTable {
	return &RoutingTable{}
}

// Add registers a routing rule.
func (r *RoutingTable) Add(route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	route.seq = r.seq
	r.seq++
	r.routes = append(r.routes, route)
}

// Resolve returns the endpoint for the highest-priority glob match on
// function, or ok=false if nothing matches.
func (r *RoutingTable) Resolve(function string) (endpoint string, ok bool) {
	r.mu.RLock()
	candidates := make([]Route, len(r.routes))
	copy(candidates, r.routes)
	r.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].seq < candidates[j].seq
	})

	for _, route := range candidates {
		if globMatch(route.Glob, function) {
			return route.Endpoint, true
		}
	}
	return "", false
}

func globMatch(pattern, name string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

// pendingCall is one in-flight outbound call awaiting a response keyed by
// the outbound sequence id (wire frame header's sequence field).
type pendingCall struct {
	resultCh chan *wire.Response
	errCh    chan error
}

// PendingTable tracks outbound calls awaiting a response, keyed by sequence.
// A call that times out is removed and Timeout is returned to the caller,
// per spec.md §4.6.
type PendingTable struct {
	mu      sync.Mutex
	waiters map[uint32]*pendingCall
}

// NewPendingTable constructs an empty PendingTable.
func NewPendingTable() *PendingTable {
	return &PendingTable{waiters: make(map[uint32]*pendingCall)}
}

func (p *PendingTable) register(seq uint32) *pendingCall {
	pc := &pendingCall{resultCh: make(chan *wire.Response, 1), errCh: make(chan error, 1)}
	p.mu.Lock()
	p.waiters[seq] = pc
	p.mu.Unlock()
	return pc
}

func (p *PendingTable) remove(seq uint32) {
	p.mu.Lock()
	delete(p.waiters, seq)
	p.mu.Unlock()
}

// Resolve delivers resp to the waiter registered under seq, if any. Returns
// false if no waiter is pending (e.g. it already timed out).
func (p *PendingTable) Resolve(seq uint32, resp *wire.Response) bool {
	p.mu.Lock()
	pc, ok := p.waiters[seq]
	if ok {
		delete(p.waiters, seq)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	pc.resultCh <- resp
	return true
}

// Transport is the byte-stream abstraction an outbound call sends framed
// messages over. Socket-level transport is out of scope; callers supply
// whatever duplex byte-stream they have (spec.md §1).
type Transport interface {
	SendCommand(ctx context.Context, endpoint string, seq uint32, cmd *wire.Command) error
}

// Bridge wires the command registry, FFI type conversion, outbound routing,
// and pending-waiter tracking together into the two directions spec.md §4.6
// describes.
type Bridge struct {
	commands   *registry.Registry
	functions  *FunctionTable
	converters *fftype.Registry
	routes     *RoutingTable
	pending    *PendingTable
	transport  Transport
	nextSeq    uint32
	mu         sync.Mutex
}

// New constructs a Bridge. transport may be nil if only inbound dispatch is
// needed (e.g. in tests).
func New(commands *registry.Registry, functions *FunctionTable, converters *fftype.Registry, transport Transport) *Bridge {
	if converters == nil {
		converters = fftype.DefaultRegistry
	}
	return &Bridge{
		commands:   commands,
		functions:  functions,
		converters: converters,
		routes:     NewRoutingTable(),
		pending:    NewPendingTable(),
		transport:  transport,
	}
}

// Routes returns the bridge's outbound routing table for registration.
func (b *Bridge) Routes() *RoutingTable { return b.routes }

// Pending returns the bridge's pending-waiter table, used by the transport's
// inbound-response path to resolve an outstanding outbound call.
func (b *Bridge) Pending() *PendingTable { return b.pending }

// DispatchInbound implements the remote→local direction: resolve the wire
// command's descriptor name via C5, resolve the matching FFI function,
// convert each wire parameter to the function's declared parameter type,
// invoke it, and convert the return value back to a wire response.
func (b *Bridge) DispatchInbound(ctx context.Context, cmd *wire.Command) (*wire.Response, error) {
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "bridge.inbound")
	defer span.End()

	desc, ok := b.commands.Lookup(cmd.CommandID)
	if !ok {
		observability.RecordBridgeCall("inbound", "not_found", time.Since(start))
		return nil, errs.New(errs.NotFound, "bridge", errs.SeverityError, "unknown command id %d", cmd.CommandID)
	}
	fn, ok := b.functions.Resolve(desc.Name)
	if !ok {
		observability.RecordBridgeCall("inbound", "not_found", time.Since(start))
		return nil, errs.New(errs.NotFound, "bridge", errs.SeverityError, "no FFI function registered for %q", desc.Name)
	}

	args := make([]any, len(fn.Signature.ParamTags))
	for i, tag := range fn.Signature.ParamTags {
		p, err := registry.Param(cmd, uint32(i), wire.TagAny)
		if err != nil {
			observability.RecordBridgeCall("inbound", "type_mismatch", time.Since(start))
			return nil, err
		}
		decoded, err := fftype.Decode(p.Tag, p.Bytes)
		if err != nil {
			observability.RecordBridgeCall("inbound", "type_mismatch", time.Since(start))
			return nil, err
		}
		converted, err := b.converters.Convert(p.Tag, tag, decoded)
		if err != nil {
			observability.RecordBridgeCall("inbound", "type_mismatch", time.Since(start))
			return nil, err
		}
		args[i] = converted
	}

	result, err := fn.Fn(ctx, args)
	if err != nil {
		observability.RecordBridgeCall("inbound", "error", time.Since(start))
		return &wire.Response{Status: wire.StatusError, Message: err.Error()}, nil
	}

	data, err := fftype.Encode(fn.Signature.ReturnTag, result)
	if err != nil {
		observability.RecordBridgeCall("inbound", "type_mismatch", time.Since(start))
		return nil, err
	}
	observability.RecordBridgeCall("inbound", "success", time.Since(start))
	return &wire.Response{Status: wire.StatusSuccess, Data: data}, nil
}

// CallOutbound implements the local→remote direction: resolve an explicit
// endpoint or the routing table's highest-priority glob match, marshal args
// into a command message, send it, and wait for the matching response or
// timeout.
func (b *Bridge) CallOutbound(ctx context.Context, functionName string, args []any, paramTags []wire.TypeTag, endpoint string, timeout time.Duration) (*wire.Response, error) {
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "bridge.outbound")
	defer span.End()

	if endpoint == "" {
		resolved, ok := b.routes.Resolve(functionName)
		if !ok {
			observability.RecordBridgeCall("outbound", "not_found", time.Since(start))
			return nil, errs.New(errs.NotFound, "bridge", errs.SeverityError, "no route for function %q", functionName)
		}
		endpoint = resolved
	}

	if len(args) != len(paramTags) {
		return nil, errs.New(errs.InvalidParameters, "bridge", errs.SeverityError, "arg count %d does not match signature %d", len(args), len(paramTags))
	}
	cmd := &wire.Command{Params: make([]wire.Param, len(args))}
	for i, arg := range args {
		data, err := fftype.Encode(paramTags[i], arg)
		if err != nil {
			observability.RecordBridgeCall("outbound", "type_mismatch", time.Since(start))
			return nil, err
		}
		cmd.Params[i] = wire.Param{ParamID: uint32(i), Tag: paramTags[i], Bytes: data}
	}

	seq := b.nextSequence()
	pc := b.pending.register(seq)
	if err := b.transport.SendCommand(ctx, endpoint, seq, cmd); err != nil {
		b.pending.remove(seq)
		observability.RecordBridgeCall("outbound", "error", time.Since(start))
		return nil, errs.Wrap(errs.OperationFailed, "bridge", errs.SeverityError, err, "send outbound command")
	}

	select {
	case resp := <-pc.resultCh:
		observability.RecordBridgeCall("outbound", "success", time.Since(start))
		return resp, nil
	case <-time.After(timeout):
		b.pending.remove(seq)
		observability.RecordBridgeCall("outbound", "timeout", time.Since(start))
		return nil, errs.New(errs.Timeout, "bridge", errs.SeverityError, "outbound call %q timed out after %s", functionName, timeout)
	case <-ctx.Done():
		b.pending.remove(seq)
		return nil, errs.Wrap(errs.Cancelled, "bridge", errs.SeverityError, ctx.Err(), "outbound call cancelled")
	}
}

func (b *Bridge) nextSequence() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSeq++
	return b.nextSeq
}

// StateObserver receives the connection snapshots SyncState publishes, so
// language bindings can mirror connection lifecycle without polling
// (spec.md §4.6 "sync_state").
type StateObserver func(snapshot connstate.Snapshot)

// SyncState invokes every observer with conn's current snapshot.
func SyncState(conn *connstate.Machine, observers []StateObserver) {
	snap := conn.Snapshot()
	for _, o := range observers {
		o(snap)
	}
}
