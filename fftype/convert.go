package fftype

import (
	"math"
	"sync"

	"github.com/obinexus/polycall-sub011/errs"
	"github.com/obinexus/polycall-sub011/wire"
)

// Converter transforms a decoded value of one type tag into a value of
// another. Registered converters are the only path between two distinct
// tags; Convert falls back to TypeMismatch when none is registered.
type Converter func(value any) (any, error)

type converterKey struct {
	from, to wire.TypeTag
}

// Registry is a mutex-protected (source, target) → Converter table, grounded
// on the same registration-map shape the command registry uses for
// (id, name) → Descriptor. The map itself doubles as the conversion cache:
// once a converter is registered its lookup is O(1) for the lifetime of the
// Registry.
type Registry struct {
	mu         sync.RWMutex
	converters map[converterKey]Converter
}

// NewRegistry builds a Registry preloaded with the standard numeric, string,
// and bytes conversions spec.md §6 requires.
func NewRegistry() *Registry {
	r := &Registry{converters: make(map[converterKey]Converter)}
	registerNumericConversions(r)
	registerTextConversions(r)
	return r
}

// Register installs a converter for a (from, to) tag pair, overwriting any
// existing entry. Used by components that need a custom object/struct
// conversion beyond the built-in scalar set.
func (r *Registry) Register(from, to wire.TypeTag, conv Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.converters[converterKey{from, to}] = conv
}

// Convert converts value from one type tag to another. Identical tags are a
// no-op. A missing converter reports TypeMismatch; a registered converter
// that cannot represent the value in range reports RangeError.
func (r *Registry) Convert(from, to wire.TypeTag, value any) (any, error) {
	if from == to {
		return value, nil
	}
	r.mu.RLock()
	conv, ok := r.converters[converterKey{from, to}]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.New(errs.TypeMismatch, "fftype", errs.SeverityError,
			"no converter registered for %d -> %d", from, to)
	}
	return conv(value)
}

// DefaultRegistry is the process-wide converter table used when a caller has
// no reason to keep a private one, mirroring the teacher's package-level
// config singleton idiom.
var DefaultRegistry = NewRegistry()

func registerNumericConversions(r *Registry) {
	widen := func(to wire.TypeTag) Converter {
		return func(value any) (any, error) {
			n, ok := SafeInt(value)
			if !ok {
				f, ok := SafeFloat64(value)
				if !ok {
					return nil, typeMismatch(to, value)
				}
				n = int(f)
			}
			return castInt(to, int64(n))
		}
	}
	narrow := func(to wire.TypeTag) Converter {
		return func(value any) (any, error) {
			n, ok := SafeInt(value)
			if !ok {
				return nil, typeMismatch(to, value)
			}
			return castInt(to, int64(n))
		}
	}
	intTags := []wire.TypeTag{
		wire.TagI8, wire.TagI16, wire.TagI32, wire.TagI64,
		wire.TagU8, wire.TagU16, wire.TagU32, wire.TagU64,
	}
	for _, from := range intTags {
		for _, to := range intTags {
			if from == to {
				continue
			}
			if rank(to) >= rank(from) {
				r.Register(from, to, widen(to))
			} else {
				r.Register(from, to, narrow(to))
			}
		}
		r.Register(from, wire.TagF32, func(value any) (any, error) {
			f, ok := SafeFloat64(value)
			if !ok {
				return nil, typeMismatch(wire.TagF32, value)
			}
			return float32(f), nil
		})
		r.Register(from, wire.TagF64, func(value any) (any, error) {
			f, ok := SafeFloat64(value)
			if !ok {
				return nil, typeMismatch(wire.TagF64, value)
			}
			return f, nil
		})
	}
	r.Register(wire.TagF64, wire.TagF32, func(value any) (any, error) {
		f, ok := SafeFloat64(value)
		if !ok {
			return nil, typeMismatch(wire.TagF32, value)
		}
		if f > math.MaxFloat32 || f < -math.MaxFloat32 {
			return nil, rangeError(wire.TagF32, value)
		}
		return float32(f), nil
	})
	r.Register(wire.TagF32, wire.TagF64, func(value any) (any, error) {
		f, ok := SafeFloat64(value)
		if !ok {
			return nil, typeMismatch(wire.TagF64, value)
		}
		return f, nil
	})
	r.Register(wire.TagBool, wire.TagI32, func(value any) (any, error) {
		b, ok := SafeBool(value)
		if !ok {
			return nil, typeMismatch(wire.TagI32, value)
		}
		if b {
			return int32(1), nil
		}
		return int32(0), nil
	})
	r.Register(wire.TagI32, wire.TagBool, func(value any) (any, error) {
		n, ok := SafeInt(value)
		if !ok {
			return nil, typeMismatch(wire.TagBool, value)
		}
		return n != 0, nil
	})
}

func registerTextConversions(r *Registry) {
	r.Register(wire.TagString, wire.TagBytes, func(value any) (any, error) {
		s, ok := SafeString(value)
		if !ok {
			return nil, typeMismatch(wire.TagBytes, value)
		}
		return []byte(s), nil
	})
	r.Register(wire.TagBytes, wire.TagString, func(value any) (any, error) {
		b, ok := SafeBytes(value)
		if !ok {
			return nil, typeMismatch(wire.TagString, value)
		}
		return string(b), nil
	})
}

// rank orders integer tags by width so widen/narrow can be chosen mechanically.
func rank(t wire.TypeTag) int {
	switch t {
	case wire.TagI8, wire.TagU8:
		return 1
	case wire.TagI16, wire.TagU16:
		return 2
	case wire.TagI32, wire.TagU32:
		return 4
	case wire.TagI64, wire.TagU64:
		return 8
	default:
		return 0
	}
}

func castInt(to wire.TypeTag, n int64) (any, error) {
	switch to {
	case wire.TagI8:
		if n < math.MinInt8 || n > math.MaxInt8 {
			return nil, rangeErrorValue(to, n)
		}
		return int8(n), nil
	case wire.TagU8:
		if n < 0 || n > math.MaxUint8 {
			return nil, rangeErrorValue(to, n)
		}
		return uint8(n), nil
	case wire.TagI16:
		if n < math.MinInt16 || n > math.MaxInt16 {
			return nil, rangeErrorValue(to, n)
		}
		return int16(n), nil
	case wire.TagU16:
		if n < 0 || n > math.MaxUint16 {
			return nil, rangeErrorValue(to, n)
		}
		return uint16(n), nil
	case wire.TagI32:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, rangeErrorValue(to, n)
		}
		return int32(n), nil
	case wire.TagU32:
		if n < 0 || n > math.MaxUint32 {
			return nil, rangeErrorValue(to, n)
		}
		return uint32(n), nil
	case wire.TagI64:
		return n, nil
	case wire.TagU64:
		if n < 0 {
			return nil, rangeErrorValue(to, n)
		}
		return uint64(n), nil
	default:
		return nil, typeMismatch(to, n)
	}
}

func rangeError(tag wire.TypeTag, value any) error {
	return errs.New(errs.RangeError, "fftype", errs.SeverityError,
		"value %v does not fit in tag %d", value, tag)
}

func rangeErrorValue(tag wire.TypeTag, n int64) error {
	return errs.New(errs.RangeError, "fftype", errs.SeverityError,
		"value %d does not fit in tag %d", n, tag)
}
