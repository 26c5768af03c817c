package content

import (
	"crypto/sha256"
	"encoding/hex"
)

// Attachments maps the sha256 hex digest of each attachment to its bytes.
type Attachments map[string][]byte

// Hash returns the key under which data is stored.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Add stores data under its hash and returns the hash. Identical bytes
// collapse into one entry.
func (a Attachments) Add(data []byte) string {
	h := Hash(data)
	if _, ok := a[h]; !ok {
		a[h] = data
	}
	return h
}

// Verify reports whether every entry is keyed by the hash of its bytes.
func (a Attachments) Verify() bool {
	for h, data := range a {
		if Hash(data) != h {
			return false
		}
	}
	return true
}
