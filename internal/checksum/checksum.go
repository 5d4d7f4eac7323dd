// Package checksum computes the version tags used for optimistic
// concurrency on canonical documents.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/starford/mediafold/internal/apperr"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Verify checks an If-Match value against the current document bytes.
// An empty ifMatch always passes.
func Verify(ifMatch string, current []byte) error {
	if ifMatch == "" {
		return nil
	}
	if got := Sum(current); got != ifMatch {
		return fmt.Errorf("checksum %s does not match %s: %w", got, ifMatch, apperr.ErrConflict)
	}
	return nil
}
