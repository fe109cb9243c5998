package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a type-prefixed random identifier such as "td_3fa81c92".
// Not cryptographically unique, but collisions are negligible at dashboard
// entity volumes.
func NewID(prefix string) string {
	bytes := make([]byte, 4)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewToken returns a long random hex token for session and webhook secrets.
func NewToken() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
