// Package testutil provides shared test helpers for vaults, indexes and
// reference engines.
package testutil

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/starford/mediafold/internal/blobstore"
	"github.com/starford/mediafold/internal/engine"
	"github.com/starford/mediafold/internal/index"
	"github.com/starford/mediafold/internal/mediaref"
	"github.com/starford/mediafold/internal/storage"
)

// TestDB creates a temporary SQLite index that is closed on cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage provider.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), store
}

// SeqKeys returns a key generator yielding K1, K2, ... so tests can predict
// the tags an engine writes.
func SeqKeys() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("K%d", n.Add(1)) }
}

// TestEngine returns an engine over an in-memory blob store with the given
// quota (0 = unlimited) and sequential keys.
func TestEngine(t *testing.T, quota int64) (*engine.Engine, *blobstore.Memory) {
	t.Helper()
	blobs := blobstore.NewMemory(quota)
	t.Cleanup(func() { blobs.Close() })
	codec := mediaref.NewCodec(blobs, mediaref.DefaultLabels(), mediaref.WithKeyFunc(SeqKeys()))
	return engine.New(codec), blobs
}
