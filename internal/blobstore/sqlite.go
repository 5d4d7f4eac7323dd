package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/mediafold/internal/apperr"
	"github.com/starford/mediafold/internal/models"
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS blobs (
	key        TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	mime_type  TEXT NOT NULL DEFAULT '',
	data       TEXT NOT NULL,
	size       INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLite keeps payloads in a single table of a SQLite database.
type SQLite struct {
	conn  *sql.DB
	quota int64
}

// OpenSQLite opens (or creates) the database at path. quota <= 0 means
// unlimited.
func OpenSQLite(path string, quota int64) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("blobstore: open sqlite: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("blobstore: ping sqlite: %w", err)
	}
	if _, err := conn.Exec(sqliteSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("blobstore: apply sqlite schema: %w", err)
	}
	return &SQLite{conn: conn, quota: quota}, nil
}

// Put implements Store.
func (s *SQLite) Put(ctx context.Context, key string, p models.MediaPayload) error {
	if err := validKey(key); err != nil {
		return err
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return s.classify(key, err)
	}
	defer tx.Rollback() //nolint:errcheck

	size := payloadSize(p)
	if s.quota > 0 {
		var used int64
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(size), 0) FROM blobs WHERE key <> ?`, key).Scan(&used)
		if err != nil {
			return s.classify(key, err)
		}
		if used+size > s.quota {
			return quotaErr(key, used+size, s.quota)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO blobs (key, kind, name, mime_type, data, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			kind      = excluded.kind,
			name      = excluded.name,
			mime_type = excluded.mime_type,
			data      = excluded.data,
			size      = excluded.size
	`, key, string(p.Kind), p.DisplayName, p.MimeType, p.Data, size, time.Now().UTC())
	if err != nil {
		return s.classify(key, err)
	}
	if err := tx.Commit(); err != nil {
		return s.classify(key, err)
	}
	return nil
}

func (s *SQLite) classify(key string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrFull {
		return fmt.Errorf("blobstore: put %s: %w: %w", key, apperr.ErrQuotaExceeded, err)
	}
	return writeErr(key, err)
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, key string) (models.MediaPayload, error) {
	var (
		p    models.MediaPayload
		kind string
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT kind, name, mime_type, data FROM blobs WHERE key = ?`, key,
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
func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key); err != nil {
		return fmt.Errorf("blobstore: delete %s: %w", key, err)
	}
	return nil
}

// ListKeys implements Store.
func (s *SQLite) ListKeys(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT key FROM blobs ORDER BY key`)
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
func (s *SQLite) Close() error {
	return s.conn.Close()
}
