package fftype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obinexus/polycall-sub011/errs"
	"github.com/obinexus/polycall-sub011/wire"
)

func TestConvertIdentity(t *testing.T) {
	r := NewRegistry()
	v, err := r.Convert(wire.TagI32, wire.TagI32, int32(7))
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)
}

func TestConvertWidensInt(t *testing.T) {
	r := NewRegistry()
	v, err := r.Convert(wire.TagI8, wire.TagI32, int8(-5))
	require.NoError(t, err)
	assert.Equal(t, int32(-5), v)
}

func TestConvertNarrowOutOfRange(t *testing.T) {
	r := NewRegistry()
	_, err := r.Convert(wire.TagI32, wire.TagI8, 1000)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.RangeError))
}

func TestConvertMissingPairIsTypeMismatch(t *testing.T) {
	r := NewRegistry()
	_, err := r.Convert(wire.TagString, wire.TagStruct, "x")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.TypeMismatch))
}

func TestConvertStringBytesRoundTrip(t *testing.T) {
	r := NewRegistry()
	b, err := r.Convert(wire.TagString, wire.TagBytes, "hi")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), b)

	s, err := r.Convert(wire.TagBytes, wire.TagString, []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi", s)
}

func TestRegisterOverridesConverter(t *testing.T) {
	r := NewRegistry()
	r.Register(wire.TagI32, wire.TagString, func(value any) (any, error) {
		return "overridden", nil
	})
	v, err := r.Convert(wire.TagI32, wire.TagString, int32(1))
	require.NoError(t, err)
	assert.Equal(t, "overridden", v)
}

func TestEncodeDecodeScalarRoundTrip(t *testing.T) {
	cases := []struct {
		tag   wire.TypeTag
		value any
	}{
		{wire.TagBool, true},
		{wire.TagI32, int(42)},
		{wire.TagF64, 3.25},
		{wire.TagString, "hello"},
	}
	for _, c := range cases {
		raw, err := Encode(c.tag, c.value)
		require.NoError(t, err)
		got, err := Decode(c.tag, raw)
		require.NoError(t, err)
		switch c.tag {
		case wire.TagI32:
			assert.EqualValues(t, c.value, got)
		default:
			assert.Equal(t, c.value, got)
		}
	}
}

func TestDecodeShortBufferIsBufferTooSmall(t *testing.T) {
	_, err := Decode(wire.TagI32, []byte{1, 2})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.BufferTooSmall))
}
