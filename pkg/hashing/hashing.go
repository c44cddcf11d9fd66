// Package hashing computes content digests for anchoring. Documents are never
// stored or transmitted; only their digest leaves the caller.
package hashing

import (
	"encoding/hex"
	"regexp"

	sha256 "github.com/minio/sha256-simd"
)

// DigestSize is the raw length of a content digest in bytes.
const DigestSize = sha256.Size

// HexDigestLen is the length of a hex-encoded content digest.
const HexDigestLen = DigestSize * 2

var hexDigestRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Sum computes the content digest of raw document bytes.
func Sum(data []byte) [DigestSize]byte {
	return sha256.Sum256(data)
}

// SumHex computes the lowercase hex digest of raw document bytes.
func SumHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidHex reports whether s is a well-formed lowercase hex content digest.
func ValidHex(s string) bool {
	return hexDigestRe.MatchString(s)
}

// Decode converts a hex digest into raw bytes. Returns false if s is not a
// well-formed digest.
func Decode(s string) ([]byte, bool) {
	if !ValidHex(s) {
		return nil, false
	}
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != DigestSize {
		return nil, false
	}
	return raw, true
}

// Prefix returns a short digest prefix safe for logs and diagnostics. Full
// digests stay out of telemetry to keep log lines compact and greppable.
func Prefix(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}
