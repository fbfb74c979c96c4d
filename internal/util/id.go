package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns an opaque random identifier, optionally tagged with a prefix
// ("tok" yields "tok_<hex>"). 16 bytes of entropy is enough for access tokens;
// these are not meant to be sortable or time-ordered.
func NewID(prefix string) string {
	raw := make([]byte, 16)
	_, _ = rand.Read(raw)
	id := hex.EncodeToString(raw)
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
