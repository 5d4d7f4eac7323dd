package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/mediafold/internal/apperr"
	"github.com/starford/mediafold/internal/parser"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path       string
	Title      string
	Checksum   string
	Tags       []string
	MediaCount int
	UpdatedAt  time.Time
}

// SearchResult represents one search hit. Snippets come from the summary, so
// they never contain encoded payloads.
type SearchResult struct {
	Path    string
	Title   string
	Snippet string
}

// UpsertNote replaces a note, its search entry and its media rows in one
// transaction.
func (db *DB) UpsertNote(n NoteRow, summary string, media []parser.Media) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(nonNil(n.Tags))

	_, err = tx.Exec(`
		INSERT INTO notes (path, title, checksum, tags, summary, media_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title       = excluded.title,
			checksum    = excluded.checksum,
			tags        = excluded.tags,
			summary     = excluded.summary,
			media_count = excluded.media_count,
			updated_at  = excluded.updated_at
	`, n.Path, n.Title, n.Checksum, string(tagsJSON), summary, len(media), n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	if err := ftsUpsert(tx, n.Path, n.Title, summary, n.Tags); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM media_refs WHERE path = ?`, n.Path); err != nil {
		return fmt.Errorf("index: clear media: %w", err)
	}
	if len(media) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO media_refs (path, position, tag, blob_key, label) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare media insert: %w", err)
		}
		defer stmt.Close()
		for i, m := range media {
			if _, err := stmt.Exec(n.Path, i, m.Tag, m.Key, m.Label); err != nil {
				return fmt.Errorf("index: insert media: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteNote removes a note with its search entry and media rows.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM media_refs WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete media: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or "" if it is not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

const noteColumns = `path, title, checksum, tags, media_count, updated_at`

func scanNote(sc interface{ Scan(...any) error }) (NoteRow, error) {
	var (
		n    NoteRow
		tags string
	)
	if err := sc.Scan(&n.Path, &n.Title, &n.Checksum, &tags, &n.MediaCount, &n.UpdatedAt); err != nil {
		return NoteRow{}, err
	}
	_ = json.Unmarshal([]byte(tags), &n.Tags)
	return n, nil
}

// GetNote returns one indexed note.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	n, err := scanNote(db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return &n, nil
}

// ListNotes pages through notes ordered by most recent update. A non-empty
// tag restricts the listing to notes carrying it. The total ignores paging.
func (db *DB) ListNotes(limit, offset int, tag string) ([]NoteRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	where, args := "", []any{}
	if tag != "" {
		where = ` WHERE EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value = ?)`
		args = append(args, tag)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+noteColumns+` FROM notes`+where+
		` ORDER BY updated_at DESC, path LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	out := []NoteRow{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// AllChecksums maps every indexed path to its checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Media returns the media occurrences of a note in document order.
func (db *DB) Media(path string) ([]parser.Media, error) {
	rows, err := db.conn.Query(`SELECT tag, blob_key, label FROM media_refs WHERE path = ? ORDER BY position`, path)
	if err != nil {
		return nil, fmt.Errorf("index: media: %w", err)
	}
	defer rows.Close()
	out := []parser.Media{}
	for rows.Next() {
		var m parser.Media
		if err := rows.Scan(&m.Tag, &m.Key, &m.Label); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ReferencedKeys returns every blob key some indexed note still references.
func (db *DB) ReferencedKeys() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT blob_key FROM media_refs WHERE blob_key <> ''`)
	if err != nil {
		return nil, fmt.Errorf("index: referenced keys: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out[k] = struct{}{}
	}
	return out, rows.Err()
}

// NotesReferencing returns the paths of notes that reference key.
func (db *DB) NotesReferencing(key string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT path FROM media_refs WHERE blob_key = ? ORDER BY path`, key)
	if err != nil {
		return nil, fmt.Errorf("index: notes referencing: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
