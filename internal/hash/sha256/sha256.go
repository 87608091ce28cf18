// Package sha256 implements the content hasher behind article deduplication.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher produces the hex digests stored as article content hashes.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
