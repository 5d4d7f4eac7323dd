// Package maintenance removes blobs that no canonical document references.
//
// Editing buffers live only in clients, so a blob minted for an open buffer
// is unreferenced on disk until the buffer is saved. The grace period covers
// those sessions: only keys minted longer ago than grace are collected.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/mediafold/internal/blobstore"
	"github.com/starford/mediafold/internal/mediaref"
)

// DefaultGrace is the minimum age of a collectable blob.
const DefaultGrace = 24 * time.Hour

// ReferenceSource reports the keys canonical documents still reference.
// *index.DB implements it.
type ReferenceSource interface {
	ReferencedKeys() (map[string]struct{}, error)
}

// Report summarizes one collection pass.
type Report struct {
	Scanned    int      `json:"scanned"`
	Referenced int      `json:"referenced"`
	Young      int      `json:"young"`
	Unknown    int      `json:"unknown_age"`
	Orphans    []string `json:"orphans"`
	Deleted    int      `json:"deleted"`
	DryRun     bool     `json:"dry_run"`
}

// Collector finds and deletes orphaned blobs.
type Collector struct {
	blobs  blobstore.Store
	refs   ReferenceSource
	logger *slog.Logger
	now    func() time.Time
}

// NewCollector returns a collector. A nil logger uses slog.Default().
func NewCollector(blobs blobstore.Store, refs ReferenceSource, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{blobs: blobs, refs: refs, logger: logger, now: time.Now}
}

// CollectOrphans deletes every unreferenced blob minted before now-grace.
// Keys whose age cannot be told are kept. With dryRun nothing is deleted
// and the report lists what would be. Deletion goes on past failures, which
// are returned joined.
func (c *Collector) CollectOrphans(ctx context.Context, grace time.Duration, dryRun bool) (Report, error) {
	if grace < 0 {
		return Report{}, fmt.Errorf("maintenance: negative grace %s", grace)
	}
	keys, err := c.blobs.ListKeys(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("maintenance: list keys: %w", err)
	}
	referenced, err := c.refs.ReferencedKeys()
	if err != nil {
		return Report{}, fmt.Errorf("maintenance: referenced keys: %w", err)
	}

	cutoff := c.now().Add(-grace)
	rep := Report{Scanned: len(keys), DryRun: dryRun, Orphans: []string{}}
	var errs []error
	for _, key := range keys {
		if _, ok := referenced[key]; ok {
			rep.Referenced++
			continue
		}
		minted, ok := mediaref.KeyTime(key)
		if !ok {
			rep.Unknown++
			continue
		}
		if minted.After(cutoff) {
			rep.Young++
			continue
		}
		rep.Orphans = append(rep.Orphans, key)
		if dryRun {
			continue
		}
		if err := c.blobs.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("maintenance: delete %s: %w", key, err))
			continue
		}
		rep.Deleted++
	}

	c.logger.Info("orphan collection finished",
		slog.Int("scanned", rep.Scanned),
		slog.Int("orphans", len(rep.Orphans)),
		slog.Int("deleted", rep.Deleted),
		slog.Bool("dry_run", dryRun))
	return rep, errors.Join(errs...)
}
