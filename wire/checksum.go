package wire

// Checksum is an FNV-1a-style rolling 32-bit checksum computed over payload bytes
// only (metadata is deliberately excluded — see DESIGN.md "Open Questions
// resolved" #1). The constants below are published as part of the wire contract:
// any implementation that interoperates with this one must use exactly these.
const (
	fnvOffsetBasis32 uint32 = 2166136261
	fnvPrime32       uint32 = 16777619
)

// Checksum computes the FNV-1a 32-bit checksum of payload.
func Checksum(payload []byte) uint32 {
	h := fnvOffsetBasis32
	for _, b := range payload {
		h ^= uint32(b)
		h *= fnvPrime32
	}
	return h
}
