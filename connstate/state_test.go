package connstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHappyPathTransitions(t *testing.T) {
	m := New()
	require.NoError(t, m.RequestTransition(Init, Handshake))
	require.NoError(t, m.RequestTransition(Handshake, Auth))
	require.NoError(t, m.RequestTransition(Auth, Ready))
	require.NoError(t, m.RequestTransition(Ready, Active))
	require.NoError(t, m.RequestTransition(Active, Streaming))
	require.NoError(t, m.RequestTransition(Streaming, Active))
	require.NoError(t, m.RequestTransition(Active, Closing))
	require.NoError(t, m.RequestTransition(Closing, Closed))

	snap := m.Snapshot()
	assert.Equal(t, Closed, snap.State)
	assert.EqualValues(t, 8, snap.Sequence)
}

func TestIllegalTransitionScenario6(t *testing.T) {
	m := New()
	require.NoError(t, m.RequestTransition(Init, Handshake))
	require.NoError(t, m.RequestTransition(Handshake, Auth))
	require.NoError(t, m.RequestTransition(Auth, Ready))

	before := m.Snapshot()
	err := m.RequestTransition(Ready, Handshake)
	require.Error(t, err)

	after := m.Snapshot()
	assert.Equal(t, Ready, after.State)
	assert.Equal(t, before.Sequence, after.Sequence)
}

func TestOptimisticConcurrencyRejectsStaleExpected(t *testing.T) {
	m := New()
	require.NoError(t, m.RequestTransition(Init, Handshake))

	err := m.RequestTransition(Init, Handshake) // stale: actual state is now Handshake
	require.Error(t, err)
}

func TestDuplicateTransitionIsIdempotent(t *testing.T) {
	m := New()
	require.NoError(t, m.RequestTransition(Init, Handshake))
	before := m.Snapshot()

	require.NoError(t, m.RequestTransition(Handshake, Handshake))
	after := m.Snapshot()

	assert.Equal(t, before.Sequence, after.Sequence)
}

func TestAnyStateCanErrorAndErrorResetsToInit(t *testing.T) {
	m := New()
	require.NoError(t, m.RequestTransition(Init, Error))
	require.NoError(t, m.RequestTransition(Error, Init))
	assert.Equal(t, Init, m.Snapshot().State)
}

func TestSequenceMonotonicity(t *testing.T) {
	m := New()
	var last uint64
	transitions := []struct{ from, to State }{
		{Init, Handshake}, {Handshake, Auth}, {Auth, Ready}, {Ready, Active},
	}
	for _, tr := range transitions {
		require.NoError(t, m.RequestTransition(tr.from, tr.to))
		snap := m.Snapshot()
		assert.Greater(t, snap.Sequence, last)
		last = snap.Sequence
	}
}
