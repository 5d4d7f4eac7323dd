package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/starford/mediafold/internal/apperr"
	"github.com/starford/mediafold/internal/models"
)

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS media_blobs (
	key        TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	mime_type  TEXT NOT NULL DEFAULT '',
	data       TEXT NOT NULL,
	size       BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Postgres keeps payloads in a shared database so several editors can
// resolve the same references.
type Postgres struct {
	db    *sql.DB
	quota int64
}

// OpenPostgres connects with a lib/pq DSN and applies the schema.
func OpenPostgres(ctx context.Context, dsn string, quota int64) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("blobstore: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("blobstore: ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("blobstore: apply postgres schema: %w", err)
	}
	return &Postgres{db: db, quota: quota}, nil
}

// Put implements Store.
func (s *Postgres) Put(ctx context.Context, key string, p models.MediaPayload) error {
	if err := validKey(key); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.classify(key, err)
	}
	defer tx.Rollback() //nolint:errcheck

	size := payloadSize(p)
	if s.quota > 0 {
		// Serialize quota checks across writers.
		if _, err := tx.ExecContext(ctx, `LOCK TABLE media_blobs IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return s.classify(key, err)
		}
		var used int64
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(size), 0) FROM media_blobs WHERE key <> $1`, key).Scan(&used)
		if err != nil {
			return s.classify(key, err)
		}
		if used+size > s.quota {
			return quotaErr(key, used+size, s.quota)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO media_blobs (key, kind, name, mime_type, data, size)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO UPDATE SET
			kind      = EXCLUDED.kind,
			name      = EXCLUDED.name,
			mime_type = EXCLUDED.mime_type,
			data      = EXCLUDED.data,
			size      = EXCLUDED.size
	`, key, string(p.Kind), p.DisplayName, p.MimeType, p.Data, size)
	if err != nil {
		return s.classify(key, err)
	}
	if err := tx.Commit(); err != nil {
		return s.classify(key, err)
	}
	return nil
}

// classify maps class 53 (insufficient resources: disk full, out of memory,
// too many connections) to a quota failure.
func (s *Postgres) classify(key string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "53" {
		return fmt.Errorf("blobstore: put %s: %w: %w", key, apperr.ErrQuotaExceeded, err)
	}
	return writeErr(key, err)
}

// Get implements Store.
func (s *Postgres) Get(ctx context.Context, key string) (models.MediaPayload, error) {
	var (
		p    models.MediaPayload
		kind string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT kind, name, mime_type, data FROM media_blobs WHERE key = $1`, key,
	).Scan(&kind, &p.DisplayName, &p.MimeType, &p.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MediaPayload{}, fmt.Errorf("blobstore: get %s: %w", key, apperr.ErrNotFound)
	}
	if err != nil {
		return models.MediaPayload{}, fmt.Errorf("blobstore: get %s: %w", key, err)
	}
	p.Kind = models.Kind(kind)
	return p, nil
}

// Delete implements Store.
func (s *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM media_blobs WHERE key = $1`, key); err != nil {
		return fmt.Errorf("blobstore: delete %s: %w", key, err)
	}
	return nil
}

// ListKeys implements Store.
func (s *Postgres) ListKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM media_blobs ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("blobstore: list keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close implements Store.
func (s *Postgres) Close() error {
	return s.db.Close()
}
