package registry

import (
	"context"
	"time"

	"github.com/obinexus/polycall-sub011/errs"
	"github.com/obinexus/polycall-sub011/observability"
	"github.com/obinexus/polycall-sub011/wire"
)

// Dispatcher resolves and invokes registered commands, synthesizing a
// Response for every outcome (spec.md §4.3): resolve by id → validator (if
// present) → on failure synthesize an error response without calling the
// handler → otherwise call handler → wrap the return into a response.
type Dispatcher struct {
	registry *Registry
	logger   errs.Logger
}

// NewDispatcher builds a Dispatcher bound to a Registry.
func NewDispatcher(r *Registry, logger errs.Logger) *Dispatcher {
	return &Dispatcher{registry: r, logger: errs.OrNoop(logger)}
}

// Dispatch resolves cmd.CommandID in the registry and runs the
// validator-then-handler pipeline, always returning a Response (never a bare
// error) so the caller can serialize it straight back onto the wire.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd *wire.Command) *wire.Response {
	start := time.Now()
	desc, ok := d.registry.Lookup(cmd.CommandID)
	if !ok {
		observability.RecordDispatch("unknown", "not_found", time.Since(start))
		return errorResponse(errs.NotFound, "no command registered for id %d", cmd.CommandID)
	}

	if desc.Validator != nil {
		if err := desc.Validator(cmd); err != nil {
			d.logger.Warn("validator_rejected", "command", desc.Name, "error", err.Error())
			observability.RecordDispatch(desc.Name, "validation_error", time.Since(start))
			return responseFromError(err)
		}
	}

	data, err := desc.Handler(ctx, cmd)
	if err != nil {
		d.logger.Warn("handler_failed", "command", desc.Name, "error", err.Error())
		observability.RecordDispatch(desc.Name, "error", time.Since(start))
		return responseFromError(err)
	}

	observability.RecordDispatch(desc.Name, "success", time.Since(start))
	return &wire.Response{Status: wire.StatusSuccess, Data: data}
}

func errorResponse(kind errs.Kind, format string, args ...any) *wire.Response {
	e := errs.New(kind, "registry", errs.SeverityError, format, args...)
	return responseFromError(e)
}

func responseFromError(err error) *wire.Response {
	code := uint16(errs.Internal)
	if e, ok := err.(*errs.Error); ok {
		code = uint16(e.Kind)
	}
	return &wire.Response{
		Status:    wire.StatusError,
		ErrorCode: code,
		Message:   err.Error(),
	}
}
