package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/mediafold/internal/autosave"
	"github.com/starford/mediafold/internal/blobstore"
	"github.com/starford/mediafold/internal/engine"
	"github.com/starford/mediafold/internal/index"
	"github.com/starford/mediafold/internal/mediaref"
	"github.com/starford/mediafold/internal/noteservice"
	"github.com/starford/mediafold/internal/sse"
	"github.com/starford/mediafold/internal/storage"
)

// sseWindow is how long the broker coalesces events before sending them.
const sseWindow = 2 * time.Second

// components is the object graph shared by the serve, mcp and gc commands.
type components struct {
	store  *storage.FS
	db     *index.DB
	blobs  blobstore.Store
	eng    *engine.Engine
	drafts *autosave.Debouncer
	broker *sse.Broker
	svc    *noteservice.Service
}

// openEngine opens the configured blob store and an engine over it.
func openEngine(ctx context.Context, cfg *Config, logger *slog.Logger) (blobstore.Store, *engine.Engine, error) {
	blobs, err := blobstore.Open(ctx, cfg.Blobs.Options())
	if err != nil {
		return nil, nil, fmt.Errorf("init blob store: %w", err)
	}
	codec := mediaref.NewCodec(blobs, cfg.Media.Labels.WithDefaults())
	eng := engine.New(codec,
		engine.WithThreshold(cfg.Media.CollapseThreshold),
		engine.WithLogger(logger.With(slog.String("component", "engine"))),
	)
	return blobs, eng, nil
}

// build wires vault, index, blob store, engine and note service. With
// withEvents the service publishes to an SSE broker and schedules autosaves.
func build(ctx context.Context, cfg *Config, logger *slog.Logger, withEvents bool) (*components, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	blobs, eng, err := openEngine(ctx, cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &components{store: store, db: db, blobs: blobs, eng: eng}
	opts := []noteservice.Option{
		noteservice.WithMaxUpload(cfg.Media.MaxUploadBytes),
		noteservice.WithLogger(logger.With(slog.String("component", "notes"))),
	}
	if withEvents {
		c.broker = sse.NewBroker(sseWindow)
		opts = append(opts, noteservice.WithPublisher(c.broker))
		if cfg.Autosave.Enabled {
			c.drafts = autosave.New(cfg.Autosave.Delay, logger)
			opts = append(opts, noteservice.WithAutosave(c.drafts))
		}
	}
	c.svc = noteservice.New(store, db, eng, blobs, opts...)

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return c, nil
}

// Close writes pending drafts, then releases the stores.
func (c *components) Close() error {
	if c.drafts != nil {
		c.drafts.Flush()
	}
	if c.broker != nil {
		c.broker.Close()
	}
	return errors.Join(c.blobs.Close(), c.db.Close())
}
