package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	m, err := NewMessage(TypeCommand, FlagReliable, 1, []byte("hello"), []byte("meta"))
	require.NoError(t, err)

	raw, err := m.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(raw)
	require.NoError(t, err)

	assert.Equal(t, m.Header, got.Header)
	assert.Equal(t, m.Payload, got.Payload)
	assert.Equal(t, m.Metadata, got.Metadata)
}

func TestChecksumDetectsSingleBitFlip(t *testing.T) {
	m, err := NewMessage(TypeCommand, 0, 1, []byte("hi\x00"), nil)
	require.NoError(t, err)

	raw, err := m.Marshal()
	require.NoError(t, err)

	// Flip a bit within the payload region (offset 24 per spec.md §8 scenario 3).
	raw[24] ^= 0x01

	_, err = Unmarshal(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ChecksumMismatch")
}

func TestRejectsBadMagic(t *testing.T) {
	m, err := NewMessage(TypeCommand, 0, 1, []byte("x"), nil)
	require.NoError(t, err)
	raw, err := m.Marshal()
	require.NoError(t, err)
	raw[0] ^= 0xFF

	_, err = Unmarshal(raw)
	require.Error(t, err)
}

func TestRejectsUnsupportedVersion(t *testing.T) {
	m, err := NewMessage(TypeCommand, 0, 1, []byte("x"), nil)
	require.NoError(t, err)
	raw, err := m.Marshal()
	require.NoError(t, err)
	raw[4] = 99

	_, err = Unmarshal(raw)
	require.Error(t, err)
}

func TestPayloadCapEnforced(t *testing.T) {
	_, err := NewMessage(TypeCommand, 0, 1, make([]byte, MaxPayloadSize+1), nil)
	require.Error(t, err)
}

func TestFlagsSetClearHas(t *testing.T) {
	var f Flags
	f.Set(FlagReliable)
	f.Set(FlagCompressed)
	assert.True(t, f.Has(FlagReliable))
	assert.True(t, f.Has(FlagCompressed))
	assert.False(t, f.Has(FlagEncrypted))

	f.Clear(FlagReliable)
	assert.False(t, f.Has(FlagReliable))
}

func TestCommandRoundTrip(t *testing.T) {
	cmd := &Command{
		CommandID: 42,
		Params: []Param{
			{ParamID: 1, Tag: TagString, Bytes: []byte("hi\x00")},
		},
	}
	raw, err := MarshalCommand(cmd)
	require.NoError(t, err)

	got, err := UnmarshalCommand(raw)
	require.NoError(t, err)
	assert.Equal(t, cmd.CommandID, got.CommandID)
	require.Len(t, got.Params, 1)
	assert.Equal(t, cmd.Params[0], got.Params[0])
}

func TestCommandRejectsDuplicateParamIDs(t *testing.T) {
	raw, err := MarshalCommand(&Command{
		CommandID: 1,
		Params: []Param{
			{ParamID: 1, Tag: TagBool, Bytes: []byte{1}},
			{ParamID: 1, Tag: TagBool, Bytes: []byte{0}},
		},
	})
	require.NoError(t, err)

	_, err = UnmarshalCommand(raw)
	require.Error(t, err)
}

func TestResponseRoundTrip(t *testing.T) {
	resp := &Response{Status: StatusSuccess, Data: []byte("hi\x00")}
	raw, err := MarshalResponse(resp)
	require.NoError(t, err)

	got, err := UnmarshalResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, resp.Status, got.Status)
	assert.Equal(t, resp.Data, got.Data)
}
