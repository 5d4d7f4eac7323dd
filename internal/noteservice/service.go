// Package noteservice coordinates the vault, the index and the reference
// engine. Canonical documents on disk always hold expanded media; editing
// buffers handed to clients hold collapsed references.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/mediafold/internal/apperr"
	"github.com/starford/mediafold/internal/autosave"
	"github.com/starford/mediafold/internal/blobstore"
	"github.com/starford/mediafold/internal/checksum"
	"github.com/starford/mediafold/internal/engine"
	"github.com/starford/mediafold/internal/index"
	"github.com/starford/mediafold/internal/parser"
	"github.com/starford/mediafold/internal/preview"
	"github.com/starford/mediafold/internal/sse"
	"github.com/starford/mediafold/internal/storage"
)

// DefaultMaxUpload is the largest attachment accepted by Attach.
const DefaultMaxUpload = 5 << 20

// Publisher receives change notifications. *sse.Broker implements it.
type Publisher interface {
	PublishNoteEvent(kind, path, checksum string)
	PublishDocumentChange(dc sse.DocumentChange)
}

// NoteDetail is the canonical representation of a note.
type NoteDetail struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Media       []parser.Media `json:"media"`
	UpdatedAt   time.Time      `json:"updated_at"`
	// Warning is set when the written document still holds references whose
	// payload could not be read. They were saved collapsed.
	Warning string `json:"warning,omitempty"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path       string    `json:"path"`
	Title      string    `json:"title"`
	Checksum   string    `json:"checksum"`
	Tags       []string  `json:"tags"`
	MediaCount int       `json:"media_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Service is safe for concurrent use.
type Service struct {
	store     storage.Provider
	db        index.NoteIndex
	eng       *engine.Engine
	blobs     blobstore.Store
	renderer  *preview.Renderer
	publisher Publisher
	drafts    *autosave.Debouncer
	maxUpload int
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sends note and document events to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithAutosave enables debounced draft saves through d.
func WithAutosave(d *autosave.Debouncer) Option {
	return func(s *Service) { s.drafts = d }
}

// WithMaxUpload overrides DefaultMaxUpload.
func WithMaxUpload(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a note service. blobs must be the store eng encodes into.
func New(store storage.Provider, db index.NoteIndex, eng *engine.Engine, blobs blobstore.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		db:        db,
		eng:       eng,
		blobs:     blobs,
		renderer:  preview.New(),
		maxUpload: DefaultMaxUpload,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxUpload is the largest attachment Attach accepts, in bytes.
func (s *Service) MaxUpload() int { return s.maxUpload }

// GetNote returns the canonical document.
func (s *Service) GetNote(_ context.Context, path string) (*NoteDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	return s.buildNoteDetail(path, data)
}

// CreateNote writes a new document. Collapsed references in content are
// expanded first so the vault only ever holds canonical text.
func (s *Service) CreateNote(ctx context.Context, path string, content string) (*NoteDetail, error) {
	if _, err := s.store.Read(path); err == nil {
		return nil, fmt.Errorf("note %s: %w", path, apperr.ErrAlreadyExists)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	return s.writeExpanded(ctx, path, content, "created")
}

// DeleteNote removes a document from the vault and the index. A pending
// draft save for it is dropped.
func (s *Service) DeleteNote(_ context.Context, path string) error {
	if s.drafts != nil {
		s.drafts.Cancel(path)
	}
	if err := s.store.Delete(path); err != nil {
		return err
	}
	if err := s.db.DeleteNote(path); err != nil {
		return err
	}
	s.publishNote("deleted", path, "")
	return nil
}

// ListNotes returns one page of notes, newest first, with an optional tag filter.
func (s *Service) ListNotes(_ context.Context, limit, offset int, tag string) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(limit, offset, tag)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			Path:       r.Path,
			Title:      r.Title,
			Checksum:   r.Checksum,
			Tags:       nonNilSlice(r.Tags),
			MediaCount: r.MediaCount,
			UpdatedAt:  r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search runs a full-text query over titles, tags and media-summarized bodies.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	results, err := s.db.Search(query, limit)
	return nonNilSlice(results), err
}

// persist writes canonical bytes, indexes them and announces the change.
func (s *Service) persist(path string, data []byte, kind string) error {
	if err := s.store.Write(path, data); err != nil {
		return err
	}
	if err := index.IndexDocument(s.db, path, data, time.Now()); err != nil {
		return err
	}
	s.publishNote(kind, path, checksum.Sum(data))
	return nil
}

func (s *Service) publishNote(kind, path, cs string) {
	if s.publisher != nil {
		s.publisher.PublishNoteEvent(kind, path, cs)
	}
}

// buildNoteDetail constructs a NoteDetail from raw data without re-reading the file.
func (s *Service) buildNoteDetail(path string, data []byte) (*NoteDetail, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	updated := time.Now().UTC()
	if row, err := s.db.GetNote(path); err == nil {
		updated = row.UpdatedAt
	}
	return &NoteDetail{
		Path:        path,
		Title:       res.Title,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Tags:        nonNilSlice(res.Tags),
		Frontmatter: res.Frontmatter,
		Media:       nonNilSlice(res.Media),
		UpdatedAt:   updated,
	}, nil
}

// writeExpanded expands buffer and persists it as path. References left
// collapsed are reported on the returned detail rather than failing the
// write, so text edits are never lost to a missing blob.
func (s *Service) writeExpanded(ctx context.Context, path, buffer, event string) (*NoteDetail, error) {
	data := []byte(s.eng.Expand(ctx, buffer))
	missing := s.eng.Unresolved(string(data))
	if err := s.persist(path, data, event); err != nil {
		return nil, err
	}
	note, err := s.buildNoteDetail(path, data)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		note.Warning = fmt.Sprintf("%d media reference(s) could not be resolved and were saved collapsed: %s",
			len(missing), strings.Join(missing, ", "))
		s.logger.Warn("document saved with unresolved references",
			slog.String("path", path),
			slog.Any("keys", missing))
	}
	return note, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
