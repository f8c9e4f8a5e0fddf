// Package registry implements the LibPolyCall command registry and dispatch
// pipeline (C5): command id/name registration with auto-assign, a
// validator-then-handler dispatch pipeline, and O(n) parameter lookup by id.
// Grounded on the teacher's InMemoryCommBus (mutex-protected registration map,
// injectable BusLogger, Before/After middleware chain), generalized from a
// type-keyed pub/sub bus into an id-keyed command registry.
package registry

import (
	"context"
	"sync"

	"github.com/obinexus/polycall-sub011/errs"
	"github.com/obinexus/polycall-sub011/wire"
)

// Handler performs the work of a registered command. It receives the decoded
// command message and returns response data bytes.
type Handler func(ctx context.Context, cmd *wire.Command) ([]byte, error)

// Validator pre-screens a command's parameters before the handler runs. A
// non-nil error aborts dispatch and synthesizes an error response without
// invoking the handler (spec.md §4.3).
type Validator func(cmd *wire.Command) error

// PermissionMask is a 64-bit capability bitset (spec.md §3 Identity & permission).
type PermissionMask uint64

// Descriptor is a registered command (spec.md §3 Command descriptor).
type Descriptor struct {
	ID         uint32
	Name       string
	Handler    Handler
	Validator  Validator
	Permission PermissionMask
	Flags      uint32
	UserData   any
}

// Registry holds command descriptors keyed by id and by name, enforcing the
// (id, name) uniqueness invariant and id-0-means-auto-assign.
type Registry struct {
	mu        sync.RWMutex
	byID      map[uint32]*Descriptor
	byName    map[string]uint32
	nextAuto  uint32
	logger    errs.Logger
}

// New constructs an empty Registry.
func New(logger errs.Logger) *Registry {
	return &Registry{
		byID:     make(map[uint32]*Descriptor),
		byName:   make(map[string]uint32),
		nextAuto: 1,
		logger:   errs.OrNoop(logger),
	}
}

// Register adds a command descriptor. If d.ID is 0, the next free id is
// auto-assigned. Duplicate names or ids fail with InvalidParameters.
func (r *Registry) Register(d *Descriptor) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d.Name == "" {
		return 0, errs.New(errs.InvalidParameters, "registry", errs.SeverityError, "command name required")
	}
	if _, exists := r.byName[d.Name]; exists {
		return 0, errs.New(errs.InvalidParameters, "registry", errs.SeverityError, "duplicate command name %q", d.Name)
	}

	id := d.ID
	if id == 0 {
		for {
			candidate := r.nextAuto
			r.nextAuto++
			if _, taken := r.byID[candidate]; !taken {
				id = candidate
				break
			}
		}
	} else if _, exists := r.byID[id]; exists {
		return 0, errs.New(errs.InvalidParameters, "registry", errs.SeverityError, "duplicate command id %d", id)
	}

	d.ID = id
	r.byID[id] = d
	r.byName[d.Name] = id
	r.logger.Debug("command_registered", "id", id, "name", d.Name)
	return id, nil
}

// Unregister removes a command by id. Idempotent: unregistering an id that is
// not present is not an error. In-flight dispatches already resolved against
// the descriptor complete normally; only new lookups stop finding it.
func (r *Registry) Unregister(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, exists := r.byID[id]
	if !exists {
		return
	}
	delete(r.byID, id)
	delete(r.byName, d.Name)
	r.logger.Debug("command_unregistered", "id", id, "name", d.Name)
}

// Lookup resolves a descriptor by id.
func (r *Registry) Lookup(id uint32) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// LookupByName resolves a descriptor by name.
func (r *Registry) LookupByName(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.byID[id], true
}

// Param looks up a parameter by id within a command, honoring ANY-tag matching.
// Lookup is O(n) over declared params, per spec.md §4.3.
func Param(cmd *wire.Command, paramID uint32, wantTag wire.TypeTag) (*wire.Param, error) {
	for i := range cmd.Params {
		p := &cmd.Params[i]
		if p.ParamID != paramID {
			continue
		}
		if wantTag != wire.TagAny && p.Tag != wantTag {
			return nil, errs.New(errs.TypeMismatch, "registry", errs.SeverityError,
				"param %d: want tag %d got %d", paramID, wantTag, p.Tag)
		}
		return p, nil
	}
	return nil, errs.New(errs.NotFound, "registry", errs.Warning, "param %d not found", paramID)
}
