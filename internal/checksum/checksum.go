// Package checksum computes digests used to detect unchanged documents.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// JSON returns the digest of the canonical form of a JSON document: object
// keys sorted, insignificant whitespace removed and numbers compared by value.
// Two documents that are structurally equal have the same digest.
func JSON(data []byte) (string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", fmt.Errorf("checksum: decode: %w", err)
	}
	canonical, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("checksum: encode: %w", err)
	}
	return Sum(canonical), nil
}

// SameJSON reports whether a and b are structurally equal JSON documents.
// Undecodable input is never equal.
func SameJSON(a, b []byte) bool {
	ha, err := JSON(a)
	if err != nil {
		return false
	}
	hb, err := JSON(b)
	if err != nil {
		return false
	}
	return ha == hb
}
