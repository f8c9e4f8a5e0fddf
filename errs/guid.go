package errs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GUID is a cryptonomic identifier: a per-event id incorporating caller identity,
// a state/sequence id, and a time-based nonce, used for tracing and audit
// correlation across the protocol, bridge, and security subsystems.
type GUID string

// NewGUID mints a GUID from a caller identity and a state/sequence id.
// The nonce component is a UUIDv7-style time-ordered UUID so GUIDs minted in the
// same process sort close to emission order even when correlated externally.
func NewGUID(callerIdentity string, stateID uint64) GUID {
	nonce, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the system clock or entropy source is unavailable;
		// fall back to a random v4 rather than ever return an empty GUID.
		nonce = uuid.New()
	}
	return GUID(fmt.Sprintf("%s.%d.%s", callerIdentity, stateID, nonce.String()))
}

// Timestamp returns the instant a GUID was minted, when that GUID was produced by
// NewGUID (i.e. its nonce component is a UUIDv7). Returns the zero time otherwise.
func (g GUID) Timestamp() time.Time {
	parts := splitLastDot(string(g))
	if parts == "" {
		return time.Time{}
	}
	parsed, err := uuid.Parse(parts)
	if err != nil || parsed.Version() != 7 {
		return time.Time{}
	}
	ms := int64(parsed[0])<<40 | int64(parsed[1])<<32 | int64(parsed[2])<<24 |
		int64(parsed[3])<<16 | int64(parsed[4])<<8 | int64(parsed[5])
	return time.UnixMilli(ms).UTC()
}

func splitLastDot(s string) string {
	idx := -1
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			idx = i
			break
		}
	}
	if idx < 0 || idx+1 >= len(s) {
		return ""
	}
	return s[idx+1:]
}
