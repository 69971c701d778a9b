package urlutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// FingerprintLength is the number of hex characters kept from the digest.
const FingerprintLength = 16

const anonymousOwner = "anonymous"

// Fingerprint derives the duplicate-lookup key for a normalized URL and owner.
// It is an index only: two different URLs may share a fingerprint, so callers
// confirm a hit by comparing the URL itself.
func Fingerprint(normalized, ownerID string) string {
	if ownerID == "" {
		ownerID = anonymousOwner
	}
	sum := sha256.Sum256([]byte(normalized + ":" + ownerID))
	return hex.EncodeToString(sum[:])[:FingerprintLength]
}
