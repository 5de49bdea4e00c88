// Package checksum computes content digests used to detect unchanged content.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ReadAll drains r and returns its content together with its digest.
func ReadAll(r io.Reader) ([]byte, string, error) {
	if r == nil {
		return []byte{}, Sum(nil), nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("checksum: read: %w", err)
	}
	return data, Sum(data), nil
}
