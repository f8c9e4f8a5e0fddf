package fftype

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/obinexus/polycall-sub011/errs"
	"github.com/obinexus/polycall-sub011/wire"
)

// Encode converts a native Go value into the fixed wire encoding for tag,
// matching the field widths the teacher's frame codec already uses
// (encoding/binary, little-endian, fixed-size for scalars).
func Encode(tag wire.TypeTag, value any) ([]byte, error) {
	buf := new(bytes.Buffer)
	switch tag {
	case wire.TagVoid:
		return nil, nil
	case wire.TagBool:
		b, ok := SafeBool(value)
		if !ok {
			return nil, typeMismatch(tag, value)
		}
		var v uint8
		if b {
			v = 1
		}
		return []byte{v}, nil
	case wire.TagI8, wire.TagU8:
		n, ok := SafeInt(value)
		if !ok {
			return nil, typeMismatch(tag, value)
		}
		return []byte{byte(n)}, nil
	case wire.TagI16, wire.TagU16:
		n, ok := SafeInt(value)
		if !ok {
			return nil, typeMismatch(tag, value)
		}
		if err := binary.Write(buf, binary.LittleEndian, uint16(n)); err != nil {
			return nil, errs.Wrap(errs.Internal, "fftype", errs.SeverityError, err, "encode tag %d", tag)
		}
		return buf.Bytes(), nil
	case wire.TagI32, wire.TagU32:
		n, ok := SafeInt(value)
		if !ok {
			return nil, typeMismatch(tag, value)
		}
		if err := binary.Write(buf, binary.LittleEndian, uint32(n)); err != nil {
			return nil, errs.Wrap(errs.Internal, "fftype", errs.SeverityError, err, "encode tag %d", tag)
		}
		return buf.Bytes(), nil
	case wire.TagI64, wire.TagU64:
		n, ok := SafeInt(value)
		if !ok {
			return nil, typeMismatch(tag, value)
		}
		if err := binary.Write(buf, binary.LittleEndian, uint64(n)); err != nil {
			return nil, errs.Wrap(errs.Internal, "fftype", errs.SeverityError, err, "encode tag %d", tag)
		}
		return buf.Bytes(), nil
	case wire.TagF32:
		f, ok := SafeFloat64(value)
		if !ok {
			return nil, typeMismatch(tag, value)
		}
		if err := binary.Write(buf, binary.LittleEndian, math.Float32bits(float32(f))); err != nil {
			return nil, errs.Wrap(errs.Internal, "fftype", errs.SeverityError, err, "encode tag %d", tag)
		}
		return buf.Bytes(), nil
	case wire.TagF64:
		f, ok := SafeFloat64(value)
		if !ok {
			return nil, typeMismatch(tag, value)
		}
		if err := binary.Write(buf, binary.LittleEndian, math.Float64bits(f)); err != nil {
			return nil, errs.Wrap(errs.Internal, "fftype", errs.SeverityError, err, "encode tag %d", tag)
		}
		return buf.Bytes(), nil
	case wire.TagString:
		s, ok := SafeString(value)
		if !ok {
			return nil, typeMismatch(tag, value)
		}
		return []byte(s), nil
	case wire.TagBytes:
		b, ok := SafeBytes(value)
		if !ok {
			return nil, typeMismatch(tag, value)
		}
		return b, nil
	default:
		return nil, errs.New(errs.UnsupportedOperation, "fftype", errs.SeverityError,
			"encode: tag %d has no fixed wire encoding, use a registered converter", tag)
	}
}

// Decode is Encode's inverse: it interprets raw param bytes as a native Go
// value of the type tag declares.
func Decode(tag wire.TypeTag, data []byte) (any, error) {
	r := bytes.NewReader(data)
	switch tag {
	case wire.TagVoid:
		return nil, nil
	case wire.TagBool:
		if len(data) < 1 {
			return nil, shortBuffer(tag)
		}
		return data[0] != 0, nil
	case wire.TagI8:
		if len(data) < 1 {
			return nil, shortBuffer(tag)
		}
		return int8(data[0]), nil
	case wire.TagU8:
		if len(data) < 1 {
			return nil, shortBuffer(tag)
		}
		return data[0], nil
	case wire.TagI16:
		var v int16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, shortBuffer(tag)
		}
		return v, nil
	case wire.TagU16:
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, shortBuffer(tag)
		}
		return v, nil
	case wire.TagI32:
		var v int32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, shortBuffer(tag)
		}
		return v, nil
	case wire.TagU32:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, shortBuffer(tag)
		}
		return v, nil
	case wire.TagI64:
		var v int64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, shortBuffer(tag)
		}
		return v, nil
	case wire.TagU64:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, shortBuffer(tag)
		}
		return v, nil
	case wire.TagF32:
		var bits uint32
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return nil, shortBuffer(tag)
		}
		return math.Float32frombits(bits), nil
	case wire.TagF64:
		var bits uint64
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return nil, shortBuffer(tag)
		}
		return math.Float64frombits(bits), nil
	case wire.TagString:
		return string(data), nil
	case wire.TagBytes:
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	default:
		return nil, errs.New(errs.UnsupportedOperation, "fftype", errs.SeverityError,
			"decode: tag %d has no fixed wire encoding, use a registered converter", tag)
	}
}

func typeMismatch(tag wire.TypeTag, value any) error {
	return errs.New(errs.TypeMismatch, "fftype", errs.SeverityError,
		"value %v (%T) does not match tag %d", value, value, tag)
}

func shortBuffer(tag wire.TypeTag) error {
	return errs.New(errs.BufferTooSmall, "fftype", errs.SeverityError,
		"buffer too small to decode tag %d", tag)
}
