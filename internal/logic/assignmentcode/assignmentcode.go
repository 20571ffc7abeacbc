// Package assignmentcode generates URL-safe tracking codes for ad
// assignments.
package assignmentcode

import (
	"crypto/rand"
	"encoding/base64"
)

// Generate returns a random URL-safe code with no padding, matching the
// shape of a base64-encoded 8-byte token. Callers are expected to retry with
// a fresh code on a unique-constraint violation at insert time.
func Generate() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
