// Package checksum derives short stable digests for cache keys and profile versions.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of s.
func Sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// Short returns the first 12 hex characters of Sum(s), enough to tell
// build keys apart in logs and the ledger.
func Short(s string) string {
	return Sum(s)[:12]
}
