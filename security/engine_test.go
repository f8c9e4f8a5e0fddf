package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obinexus/polycall-sub011/errs"
)

func TestDefaultDenyRejectsUnmatchedCall(t *testing.T) {
	e := New(true, nil)
	err := e.Check("db.query", Caller{Language: "python"}, IsolationFunction, 0x1)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.PermissionDenied))
}

func TestDefaultAllowPermitsUnmatchedCall(t *testing.T) {
	e := New(false, nil)
	err := e.Check("db.query", Caller{Language: "python"}, IsolationFunction, 0x1)
	require.NoError(t, err)
}

func TestGlobMatchGrantsPermission(t *testing.T) {
	e := New(true, nil)
	e.Grant(Entry{FunctionGlob: "db.*", Permission: 0x3, MinIsolation: IsolationFunction})

	err := e.Check("db.query", Caller{Language: "python"}, IsolationFunction, 0x1)
	require.NoError(t, err)
}

func TestInsufficientPermissionBitsDenied(t *testing.T) {
	e := New(true, nil)
	e.Grant(Entry{FunctionGlob: "db.*", Permission: 0x1, MinIsolation: IsolationNone})

	err := e.Check("db.query", Caller{Language: "python"}, IsolationNone, 0x3)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.PermissionDenied))
}

func TestIsolationBelowMinimumDenied(t *testing.T) {
	e := New(true, nil)
	e.Grant(Entry{FunctionGlob: "db.*", Permission: 0x1, MinIsolation: IsolationProcess})

	err := e.Check("db.query", Caller{Language: "python"}, IsolationShared, 0x1)
	require.Error(t, err)
}

func TestLanguageAndContextScoping(t *testing.T) {
	e := New(true, nil)
	e.Grant(Entry{FunctionGlob: "*", Language: "node", Permission: 0x1})

	require.NoError(t, e.Check("anything", Caller{Language: "node"}, IsolationNone, 0x1))

	err := e.Check("anything", Caller{Language: "python"}, IsolationNone, 0x1)
	require.Error(t, err)
}

func TestAuditRingWrapsAtCapacity(t *testing.T) {
	e := New(false, nil)
	e.auditCap = 3
	e.audit = make([]AuditRecord, 0, 3)

	for i := 0; i < 5; i++ {
		_ = e.Check("f", Caller{}, IsolationNone, 0)
	}

	records := e.Audit()
	assert.Len(t, records, 3)
}
