package dedupe

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/joseph-ayodele/ocr-batch/constants"
)

// Fingerprint is the SHA-256 digest of an image's raw bytes.
type Fingerprint [sha256.Size]byte

func Compute(data []byte) Fingerprint {
	return sha256.Sum256(data)
}

func (f Fingerprint) Hex() string {
	return hex.EncodeToString(f[:])
}

// CacheKey is the shared cache key for this fingerprint.
func (f Fingerprint) CacheKey() string {
	return constants.CacheKeyPrefix + f.Hex()
}
