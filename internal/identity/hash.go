// Package identity computes the deterministic deduplication key shared by
// raw and curated findings.
package identity

import (
	"crypto/sha1"
	"encoding/hex"
)

// ComputeHash returns the dedup key for a finding: the SHA-1 digest of the
// UTF-8 concatenation of the asset display name and the title, with no
// delimiter, hex encoded. It is recomputed on every create and update,
// overwriting any previously stored hash. Empty strings are valid inputs.
func ComputeHash(assetName, title string) string {
	h := sha1.New()
	h.Write([]byte(assetName))
	h.Write([]byte(title))
	return hex.EncodeToString(h.Sum(nil))
}
