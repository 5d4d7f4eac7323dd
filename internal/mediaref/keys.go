package mediaref

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/mediafold/internal/apperr"
)

// NewKey mints a blob key. Keys are UUIDv7: unique across rapid successive
// inserts and still ordered by mint time.
func NewKey() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ValidateKey rejects keys that cannot be embedded in a tag attribute or used
// as a storage path segment.
func ValidateKey(key string) error {
	if key == "" || len(key) > 128 {
		return fmt.Errorf("%w: %q", apperr.ErrInvalidKey, key)
	}
	if strings.Contains(key, "..") || strings.ContainsAny(key, "/\\\"'<>&") {
		return fmt.Errorf("%w: %q", apperr.ErrInvalidKey, key)
	}
	for _, r := range key {
		if r <= ' ' || r == 0x7f {
			return fmt.Errorf("%w: %q", apperr.ErrInvalidKey, key)
		}
	}
	return nil
}

// KeyTime recovers when a key was minted. It understands UUIDv7 keys and the
// millisecond timestamp keys older documents were written with.
func KeyTime(key string) (time.Time, bool) {
	if id, err := uuid.Parse(key); err == nil {
		if id.Version() != 7 {
			return time.Time{}, false
		}
		ms := int64(binary.BigEndian.Uint64(id[:8]) >> 16)
		return time.UnixMilli(ms), true
	}
	digits := key
	if len(digits) > 13 {
		digits = digits[:13]
	}
	if len(digits) < 13 {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
