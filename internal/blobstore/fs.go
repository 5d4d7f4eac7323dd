package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/starford/mediafold/internal/apperr"
	"github.com/starford/mediafold/internal/models"
)

const recordExt = ".cbor"

// FS stores one CBOR record per key under a root directory.
type FS struct {
	root  string
	quota int64

	mu   sync.Mutex // serializes the quota check with the write
	used int64
}

// NewFS creates the root if needed. quota <= 0 means unlimited.
func NewFS(root string, quota int64) (*FS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blobstore: fs root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("blobstore: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: mkdir root: %w", err)
	}
	f := &FS{root: abs, quota: quota}
	if quota > 0 {
		used, err := f.scanUsage()
		if err != nil {
			return nil, err
		}
		f.used = used
	}
	return f, nil
}

func (f *FS) scanUsage() (int64, error) {
	var used int64
	err := filepath.WalkDir(f.root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), recordExt) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		used += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("blobstore: scan usage: %w", err)
	}
	return used, nil
}

func (f *FS) path(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	return filepath.Join(f.root, key+recordExt), nil
}

// Put implements Store. Records are written to a temp file, synced and
// renamed into place.
func (f *FS) Put(ctx context.Context, key string, p models.MediaPayload) error {
	if err := ctx.Err(); err != nil {
		return writeErr(key, err)
	}
	dst, err := f.path(key)
	if err != nil {
		return err
	}
	rec, err := cbor.Marshal(p)
	if err != nil {
		return fmt.Errorf("blobstore: encode %s: %w", key, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var prev int64
	if info, err := os.Stat(dst); err == nil {
		prev = info.Size()
	}
	if f.quota > 0 && f.used-prev+int64(len(rec)) > f.quota {
		return quotaErr(key, f.used-prev+int64(len(rec)), f.quota)
	}

	tmp, err := os.CreateTemp(f.root, ".put-*")
	if err != nil {
		return writeErr(key, err)
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(rec); err != nil {
		return writeErr(key, err)
	}
	if err := tmp.Sync(); err != nil {
		return writeErr(key, err)
	}
	if err := tmp.Close(); err != nil {
		return writeErr(key, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return writeErr(key, err)
	}
	success = true
	f.used += int64(len(rec)) - prev
	return nil
}

// Get implements Store.
func (f *FS) Get(ctx context.Context, key string) (models.MediaPayload, error) {
	if err := ctx.Err(); err != nil {
		return models.MediaPayload{}, err
	}
	src, err := f.path(key)
	if err != nil {
		return models.MediaPayload{}, err
	}
	rec, err := os.ReadFile(src)
	if errors.Is(err, os.ErrNotExist) {
		return models.MediaPayload{}, fmt.Errorf("blobstore: get %s: %w", key, apperr.ErrNotFound)
	}
	if err != nil {
		return models.MediaPayload{}, fmt.Errorf("blobstore: get %s: %w", key, err)
	}
	var p models.MediaPayload
	if err := cbor.Unmarshal(rec, &p); err != nil {
		return models.MediaPayload{}, fmt.Errorf("blobstore: decode %s: %w", key, err)
	}
	return p, nil
}

// Delete implements Store.
func (f *FS) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := f.path(key)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	info, err := os.Stat(dst)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("blobstore: delete %s: %w", key, err)
	}
	if info != nil {
		f.used -= info.Size()
	}
	return nil
}

// ListKeys implements Store.
func (f *FS) ListKeys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("blobstore: list keys: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, recordExt))
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements Store.
func (f *FS) Close() error { return nil }
