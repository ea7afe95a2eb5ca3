package atsocial

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// GetHash returns a short stable content hash, used for deterministic record
// keys. Joining the same group twice must land on the same key so the second
// write overwrites instead of duplicating.
func GetHash(b []byte) string {
	h := xxh3.Hash128(b)
	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}
