// Package blobstore holds full media payloads outside document text.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"

	"github.com/starford/mediafold/internal/apperr"
	"github.com/starford/mediafold/internal/models"
)

// Store is a persistent key to payload mapping.
//
// Put never overwrites silently: keys are minted fresh by the caller. A
// capacity failure wraps apperr.ErrQuotaExceeded and any other write failure
// wraps apperr.ErrStoreWrite. Get reports a miss as apperr.ErrNotFound.
// Delete of a missing key is not an error.
type Store interface {
	Put(ctx context.Context, key string, p models.MediaPayload) error
	Get(ctx context.Context, key string) (models.MediaPayload, error)
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context) ([]string, error)
	Close() error
}

// payloadSize is what a payload counts against a quota.
func payloadSize(p models.MediaPayload) int64 {
	return int64(len(p.Data) + len(p.DisplayName) + len(p.MimeType) + len(p.Kind))
}

func validKey(key string) error {
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, "/\\\x00") {
		return fmt.Errorf("blobstore: %w: %q", apperr.ErrInvalidKey, key)
	}
	return nil
}

func quotaErr(key string, need, limit int64) error {
	return fmt.Errorf("blobstore: put %s: %d bytes over a %d byte quota: %w",
		key, need, limit, apperr.ErrQuotaExceeded)
}

// writeErr classifies a backend write failure. The cause stays wrapped, so
// callers can still match context.Canceled and the like.
func writeErr(key string, err error) error {
	if errors.Is(err, apperr.ErrQuotaExceeded) || errors.Is(err, apperr.ErrStoreWrite) {
		return err
	}
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) {
		return fmt.Errorf("blobstore: put %s: %w: %w", key, apperr.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("blobstore: put %s: %w: %w", key, apperr.ErrStoreWrite, err)
}
