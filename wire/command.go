package wire

import (
	"bytes"
	"encoding/binary"

	"github.com/obinexus/polycall-sub011/errs"
)

// TypeTag is the canonical FFI value type tag (spec §6, stable wire constants).
type TypeTag uint16

const (
	TagVoid   TypeTag = 0
	TagBool   TypeTag = 1
	TagI8     TypeTag = 2
	TagI16    TypeTag = 3
	TagI32    TypeTag = 4
	TagI64    TypeTag = 5
	TagU8     TypeTag = 6
	TagU16    TypeTag = 7
	TagU32    TypeTag = 8
	TagU64    TypeTag = 9
	TagF32    TypeTag = 10
	TagF64    TypeTag = 11
	TagString TypeTag = 20
	TagBytes  TypeTag = 21
	TagObject TypeTag = 30
	TagFunc   TypeTag = 31
	TagArray  TypeTag = 40
	TagStruct TypeTag = 41
	TagAny    TypeTag = 0xFFFF
)

// Param is one parameter within a Command message payload.
type Param struct {
	ParamID uint32
	Tag     TypeTag
	Flags   uint16
	Bytes   []byte
}

// Command is the decoded form of a command-message payload:
// u32 command_id | u32 param_count | param_count × {u32 param_id, u16 type_tag, u16 flags, u32 size, size bytes}
type Command struct {
	CommandID uint32
	Params    []Param
}

// MarshalCommand encodes a Command into a command-message payload.
func MarshalCommand(c *Command) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, c.CommandID); err != nil {
		return nil, errs.Wrap(errs.Internal, "wire", errs.SeverityError, err, "write command_id")
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(c.Params))); err != nil {
		return nil, errs.Wrap(errs.Internal, "wire", errs.SeverityError, err, "write param_count")
	}
	for _, p := range c.Params {
		if err := binary.Write(buf, binary.LittleEndian, p.ParamID); err != nil {
			return nil, errs.Wrap(errs.Internal, "wire", errs.SeverityError, err, "write param_id")
		}
		if err := binary.Write(buf, binary.LittleEndian, uint16(p.Tag)); err != nil {
			return nil, errs.Wrap(errs.Internal, "wire", errs.SeverityError, err, "write type_tag")
		}
		if err := binary.Write(buf, binary.LittleEndian, p.Flags); err != nil {
			return nil, errs.Wrap(errs.Internal, "wire", errs.SeverityError, err, "write param flags")
		}
		if err := binary.Write(buf, binary.LittleEndian, uint32(len(p.Bytes))); err != nil {
			return nil, errs.Wrap(errs.Internal, "wire", errs.SeverityError, err, "write param size")
		}
		buf.Write(p.Bytes)
	}
	return buf.Bytes(), nil
}

// UnmarshalCommand decodes a command-message payload. Duplicate param ids are
// rejected with errs.Duplicate, matching spec §4.3's add-time uniqueness rule.
func UnmarshalCommand(data []byte) (*Command, error) {
	r := bytes.NewReader(data)
	var cmd Command
	if err := binary.Read(r, binary.LittleEndian, &cmd.CommandID); err != nil {
		return nil, errs.Wrap(errs.MalformedFrame, "wire", errs.SeverityError, err, "read command_id")
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, errs.Wrap(errs.MalformedFrame, "wire", errs.SeverityError, err, "read param_count")
	}

	seen := make(map[uint32]struct{}, count)
	for i := uint32(0); i < count; i++ {
		var p Param
		var paramID uint32
		var tag uint16
		var flags uint16
		var byteLen uint32
		if err := binary.Read(r, binary.LittleEndian, &paramID); err != nil {
			return nil, errs.Wrap(errs.MalformedFrame, "wire", errs.SeverityError, err, "read param_id")
		}
		if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
			return nil, errs.Wrap(errs.MalformedFrame, "wire", errs.SeverityError, err, "read type_tag")
		}
		if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
			return nil, errs.Wrap(errs.MalformedFrame, "wire", errs.SeverityError, err, "read param flags")
		}
		if err := binary.Read(r, binary.LittleEndian, &byteLen); err != nil {
			return nil, errs.Wrap(errs.MalformedFrame, "wire", errs.SeverityError, err, "read param size")
		}
		if _, dup := seen[paramID]; dup {
			return nil, errs.New(errs.Duplicate, "wire", errs.SeverityError, "duplicate param_id %d", paramID)
		}
		seen[paramID] = struct{}{}

		p.ParamID = paramID
		p.Tag = TypeTag(tag)
		p.Flags = flags
		p.Bytes = make([]byte, byteLen)
		if _, err := r.Read(p.Bytes); err != nil && byteLen > 0 {
			return nil, errs.Wrap(errs.MalformedFrame, "wire", errs.SeverityError, err, "read param bytes")
		}
		cmd.Params = append(cmd.Params, p)
	}
	return &cmd, nil
}

// Status is the command-response status field.
type Status uint16

const (
	StatusSuccess Status = iota
	StatusError
	StatusPartial
	StatusTimeout
)

// Response is the decoded form of a command-response payload:
// u16 status | u16 error_code | u32 message_len | u32 data_len | message_len bytes | data_len bytes
type Response struct {
	Status       Status
	ErrorCode    uint16
	Message      string
	Data         []byte
}

// MarshalResponse encodes a Response into a command-response payload.
func MarshalResponse(r *Response) ([]byte, error) {
	buf := new(bytes.Buffer)
	msgBytes := []byte(r.Message)
	fields := []any{
		uint16(r.Status), r.ErrorCode, uint32(len(msgBytes)), uint32(len(r.Data)),
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return nil, errs.Wrap(errs.Internal, "wire", errs.SeverityError, err, "write response field")
		}
	}
	buf.Write(msgBytes)
	buf.Write(r.Data)
	return buf.Bytes(), nil
}

// UnmarshalResponse decodes a command-response payload.
func UnmarshalResponse(data []byte) (*Response, error) {
	r := bytes.NewReader(data)
	var status, errorCode uint16
	var msgLen, dataLen uint32
	if err := binary.Read(r, binary.LittleEndian, &status); err != nil {
		return nil, errs.Wrap(errs.MalformedFrame, "wire", errs.SeverityError, err, "read status")
	}
	if err := binary.Read(r, binary.LittleEndian, &errorCode); err != nil {
		return nil, errs.Wrap(errs.MalformedFrame, "wire", errs.SeverityError, err, "read error_code")
	}
	if err := binary.Read(r, binary.LittleEndian, &msgLen); err != nil {
		return nil, errs.Wrap(errs.MalformedFrame, "wire", errs.SeverityError, err, "read message_len")
	}
	if err := binary.Read(r, binary.LittleEndian, &dataLen); err != nil {
		return nil, errs.Wrap(errs.MalformedFrame, "wire", errs.SeverityError, err, "read data_len")
	}
	msgBytes := make([]byte, msgLen)
	if _, err := r.Read(msgBytes); err != nil && msgLen > 0 {
		return nil, errs.Wrap(errs.MalformedFrame, "wire", errs.SeverityError, err, "read message bytes")
	}
	dataBytes := make([]byte, dataLen)
	if _, err := r.Read(dataBytes); err != nil && dataLen > 0 {
		return nil, errs.Wrap(errs.MalformedFrame, "wire", errs.SeverityError, err, "read data bytes")
	}
	return &Response{
		Status:    Status(status),
		ErrorCode: errorCode,
		Message:   string(msgBytes),
		Data:      dataBytes,
	}, nil
}
