package models

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns an opaque random identifier, unique within a store for all
// practical purposes.
func NewID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
