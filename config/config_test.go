package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHasSaneValues(t *testing.T) {
	c := Default()
	assert.True(t, c.ACLDefaultDeny)
	assert.Greater(t, c.Pool.Max, 0)
	assert.Greater(t, c.AuditCapacity, 0)
}

func TestFromMapOverridesOnlyGivenKeys(t *testing.T) {
	c := FromMap(map[string]any{
		"service_name":   "custom",
		"pool_max":       float64(20), // JSON numbers decode as float64
		"acl_default_deny": false,
	})
	assert.Equal(t, "custom", c.ServiceName)
	assert.Equal(t, 20, c.Pool.Max)
	assert.False(t, c.ACLDefaultDeny)
	assert.Equal(t, Default().AuditCapacity, c.AuditCapacity)
}

func TestToMapRoundTripsFromMapFields(t *testing.T) {
	original := Default()
	original.ServiceName = "roundtrip"
	original.Pool.Min = 3

	restored := FromMap(original.ToMap())
	assert.Equal(t, original.ServiceName, restored.ServiceName)
}

func TestGetSetReset(t *testing.T) {
	defer Reset()

	custom := Default()
	custom.ServiceName = "injected"
	Set(custom)
	require.Equal(t, "injected", Get().ServiceName)

	Reset()
	assert.Equal(t, Default().ServiceName, Get().ServiceName)
}
