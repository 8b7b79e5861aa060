package utils

import (
	"crypto/md5" //nolint:gosec // content fingerprinting, not security
	"encoding/hex"
)

// Fingerprint returns a hex content digest of a byte buffer, used to detect
// unchanged remote files between sync runs.
func Fingerprint(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
