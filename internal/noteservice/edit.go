package noteservice

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/mediafold/internal/apperr"
	"github.com/starford/mediafold/internal/checksum"
	"github.com/starford/mediafold/internal/engine"
	"github.com/starford/mediafold/internal/sse"
)

// EditView is a collapsed editing buffer for a canonical document.
type EditView struct {
	Path     string `json:"path"`
	Buffer   string `json:"buffer"`
	Checksum string `json:"checksum"`
	// Warning is set when some literals could not be stored. They stay
	// inline in Buffer, which is still valid to edit and save.
	Warning string `json:"warning,omitempty"`
}

// OpenForEdit reads a document and collapses its media into references.
func (s *Service) OpenForEdit(ctx context.Context, path string) (*EditView, error) {
	data, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	buf, cerr := s.eng.Collapse(ctx, string(data))
	view := &EditView{Path: path, Buffer: buf, Checksum: checksum.Sum(data)}
	if cerr != nil {
		view.Warning = storeWarning(cerr)
		s.logger.Warn("open: collapse incomplete", slog.String("path", path), slog.String("error", cerr.Error()))
	}
	return view, nil
}

func storeWarning(err error) string {
	if errors.Is(err, apperr.ErrQuotaExceeded) {
		return "storage quota exceeded: some media stays inline"
	}
	return "some media could not be stored and stays inline"
}

// Save expands buffer and writes it as the canonical document. A non-empty
// ifMatch must equal the checksum of the document on disk; with an empty
// ifMatch a missing document is created. A pending draft save is dropped.
// References that cannot be resolved are kept and named in the returned
// detail's Warning.
func (s *Service) Save(ctx context.Context, path, buffer, ifMatch string) (*NoteDetail, error) {
	if s.drafts != nil {
		s.drafts.Cancel(path)
	}
	return s.save(ctx, path, buffer, ifMatch)
}

func (s *Service) save(ctx context.Context, path, buffer, ifMatch string) (*NoteDetail, error) {
	existing, err := s.store.Read(path)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		if ifMatch != "" {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := checksum.Verify(ifMatch, existing); err != nil {
			return nil, err
		}
	}

	return s.writeExpanded(ctx, path, buffer, "saved")
}

// SaveDraft schedules a save of buffer. Each new draft for path restarts the
// delay, so only the last edit of a burst is written. Without autosave the
// draft is saved at once.
func (s *Service) SaveDraft(ctx context.Context, path, buffer string) error {
	if s.drafts == nil {
		_, err := s.save(ctx, path, buffer, "")
		return err
	}
	bg := context.WithoutCancel(ctx)
	s.drafts.Schedule(path, func() {
		if _, err := s.save(bg, path, buffer, ""); err != nil {
			s.logger.Warn("autosave failed", slog.String("path", path), slog.String("error", err.Error()))
			return
		}
		s.logger.Debug("autosaved", slog.String("path", path))
	})
	return nil
}

// Toggle flips the reference under the byte offset cursor of buffer. When
// the buffer changed it announces the change and, for a named document,
// schedules a draft save.
func (s *Service) Toggle(ctx context.Context, path, buffer string, cursor int) (engine.Result, error) {
	res, err := s.eng.Toggle(ctx, buffer, cursor)
	if err != nil || !res.Changed {
		return res, err
	}
	if path == "" {
		return res, nil
	}
	if s.publisher != nil {
		s.publisher.PublishDocumentChange(sse.DocumentChange{
			Path:   path,
			Action: string(res.Action),
			Format: res.Format,
			Cursor: res.Cursor,
		})
	}
	if s.drafts != nil {
		if err := s.SaveDraft(ctx, path, res.Text); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Expand returns buffer with every resolvable reference expanded.
func (s *Service) Expand(ctx context.Context, buffer string) string {
	return s.eng.Expand(ctx, buffer)
}

// Collapse returns buffer with every eligible literal moved into the store.
// The text is usable even when err is not nil.
func (s *Service) Collapse(ctx context.Context, buffer string) (string, error) {
	return s.eng.Collapse(ctx, buffer)
}

// Preview renders buffer, expanded, as sanitized HTML.
func (s *Service) Preview(ctx context.Context, buffer string) (string, error) {
	return s.renderer.Render(s.eng.Expand(ctx, buffer))
}
