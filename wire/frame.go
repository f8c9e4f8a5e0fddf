// Package wire implements the LibPolyCall framing layer (C3): a fixed 24-byte
// little-endian header, a payload, and optional metadata, with an FNV-1a-style
// checksum over the payload. See DESIGN.md C3 for the byte-layout grounding.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/obinexus/polycall-sub011/errs"
)

// Magic is the fixed sentinel every frame must begin with.
const Magic uint32 = 0x504C4D00

// Version is the only wire version this implementation emits.
const Version uint8 = 1

// MaxPayloadSize is the hard cap on payload bytes per message (spec §4.1).
// Fragmentation (FlagFragmented) is how a larger logical payload is reassembled
// by the duplex stream engine (C6).
const MaxPayloadSize = 16 * 1024

// HeaderSize is the fixed size in bytes of the wire frame header.
const HeaderSize = 24

// Type enumerates the message type field.
type Type uint8

const (
	TypeHandshake Type = iota
	TypeAuth
	TypeCommand
	TypeResponse
	TypeError
	TypeHeartbeat
	TypeAck
	TypeStream
	// TypeUserBase is the first id in the user-tagged range; implementations may
	// define application-specific types at and above this value.
	TypeUserBase Type = 0x80
)

func (t Type) String() string {
	switch t {
	case TypeHandshake:
		return "HANDSHAKE"
	case TypeAuth:
		return "AUTH"
	case TypeCommand:
		return "COMMAND"
	case TypeResponse:
		return "RESPONSE"
	case TypeError:
		return "ERROR"
	case TypeHeartbeat:
		return "HEARTBEAT"
	case TypeAck:
		return "ACK"
	case TypeStream:
		return "STREAM"
	default:
		if t >= TypeUserBase {
			return fmt.Sprintf("USER(0x%02X)", uint8(t))
		}
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(t))
	}
}

// Flags is the per-frame bitset.
type Flags uint16

const (
	FlagReliable Flags = 1 << iota
	FlagCompressed
	FlagEncrypted
	FlagFragmented
	FlagPriority
	FlagObservable
	FlagAutoReconnect
)

func (f *Flags) Set(flag Flags)   { *f |= flag }
func (f *Flags) Clear(flag Flags) { *f &^= flag }
func (f Flags) Has(flag Flags) bool {
	return f&flag != 0
}

// Header is the fixed portion of a Message, matching the byte layout in
// spec.md §6 exactly:
//
//	offset  size  field
//	 0       4    magic
//	 4       1    version
//	 5       1    type
//	 6       2    flags
//	 8       4    sequence
//	12       4    payload_size
//	16       4    metadata_size
//	20       4    checksum
type Header struct {
	Magic        uint32
	Version      uint8
	Type         Type
	Flags        Flags
	Sequence     uint32
	PayloadSize  uint32
	MetadataSize uint32
	Checksum     uint32
}

// Message is the wire unit: a header plus payload and metadata bytes.
type Message struct {
	Header   Header
	Payload  []byte
	Metadata []byte
}

// NewMessage builds a Message with a correctly computed checksum and sizes.
// It returns errs.CapacityExceeded if payload exceeds MaxPayloadSize.
func NewMessage(typ Type, flags Flags, sequence uint32, payload, metadata []byte) (*Message, error) {
	if len(payload) > MaxPayloadSize {
		return nil, errs.New(errs.CapacityExceeded, "wire", errs.SeverityError,
			"payload size %d exceeds max %d", len(payload), MaxPayloadSize)
	}
	return &Message{
		Header: Header{
			Magic:        Magic,
			Version:      Version,
			Type:         typ,
			Flags:        flags,
			Sequence:     sequence,
			PayloadSize:  uint32(len(payload)),
			MetadataSize: uint32(len(metadata)),
			Checksum:     Checksum(payload),
		},
		Payload:  payload,
		Metadata: metadata,
	}, nil
}

// Marshal serializes m to its wire form: header, payload, metadata.
func (m *Message) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(HeaderSize + len(m.Payload) + len(m.Metadata))

	fields := []any{
		m.Header.Magic,
		m.Header.Version,
		uint8(m.Header.Type),
		uint16(m.Header.Flags),
		m.Header.Sequence,
		m.Header.PayloadSize,
		m.Header.MetadataSize,
		m.Header.Checksum,
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return nil, errs.Wrap(errs.Internal, "wire", errs.SeverityError, err, "marshal header field")
		}
	}
	buf.Write(m.Payload)
	buf.Write(m.Metadata)
	return buf.Bytes(), nil
}

// Unmarshal parses a wire frame from data, validating magic, version, declared
// sizes against the buffer, and the payload checksum.
func Unmarshal(data []byte) (*Message, error) {
	if len(data) < HeaderSize {
		return nil, errs.New(errs.MalformedFrame, "wire", errs.SeverityError,
			"frame too short: %d bytes (need at least %d)", len(data), HeaderSize)
	}

	r := bytes.NewReader(data)
	var h Header
	var typ8 uint8
	var flags16 uint16

	readers := []struct {
		dst any
	}{
		{&h.Magic}, {&h.Version}, {&typ8}, {&flags16},
		{&h.Sequence}, {&h.PayloadSize}, {&h.MetadataSize}, {&h.Checksum},
	}
	for _, rd := range readers {
		if err := binary.Read(r, binary.LittleEndian, rd.dst); err != nil {
			return nil, errs.Wrap(errs.MalformedFrame, "wire", errs.SeverityError, err, "read header field")
		}
	}
	h.Type = Type(typ8)
	h.Flags = Flags(flags16)

	if h.Magic != Magic {
		return nil, errs.New(errs.MalformedFrame, "wire", errs.SeverityError,
			"bad magic: got 0x%08X want 0x%08X", h.Magic, Magic)
	}
	if h.Version != Version {
		return nil, errs.New(errs.UnsupportedVersion, "wire", errs.SeverityError,
			"unsupported version %d", h.Version)
	}
	if h.PayloadSize > MaxPayloadSize {
		return nil, errs.New(errs.MalformedFrame, "wire", errs.SeverityError,
			"declared payload_size %d exceeds max %d", h.PayloadSize, MaxPayloadSize)
	}

	remaining := len(data) - HeaderSize
	need := int(h.PayloadSize) + int(h.MetadataSize)
	if need > remaining {
		return nil, errs.New(errs.MalformedFrame, "wire", errs.SeverityError,
			"declared sizes (%d) exceed remaining buffer (%d)", need, remaining)
	}

	payload := make([]byte, h.PayloadSize)
	copy(payload, data[HeaderSize:HeaderSize+int(h.PayloadSize)])
	metadata := make([]byte, h.MetadataSize)
	copy(metadata, data[HeaderSize+int(h.PayloadSize):HeaderSize+need])

	if Checksum(payload) != h.Checksum {
		return nil, errs.New(errs.ChecksumMismatch, "wire", errs.SeverityError,
			"checksum mismatch: computed 0x%08X declared 0x%08X", Checksum(payload), h.Checksum)
	}

	return &Message{Header: h, Payload: payload, Metadata: metadata}, nil
}
