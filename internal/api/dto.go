package api

import (
	"github.com/starford/mediafold/internal/index"
	"github.com/starford/mediafold/internal/noteservice"
)

// CreateNoteRequest is the request body for creating a note. Collapsed
// references in content are expanded before the note is written.
type CreateNoteRequest struct {
	Path    string `json:"path" example:"notes/hello.md" validate:"required"`
	Content string `json:"content" example:"# Hello\nWorld" validate:"required"`
}

// SaveNoteRequest carries an editing buffer to store as the canonical note.
type SaveNoteRequest struct {
	Buffer string `json:"buffer" example:"# Pics\n<image data-id=\"0190...\">cat</image>"`
}

// DraftRequest carries an editing buffer for a debounced save.
type DraftRequest struct {
	Buffer string `json:"buffer"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// EditView is the collapsed editing buffer of a note.
type EditView = noteservice.EditView

// Attachment is the tag returned for an uploaded file.
type Attachment = noteservice.Attachment

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// DocumentRequest is a free-standing buffer to transform.
type DocumentRequest struct {
	Text string `json:"text" example:"![cat](data:image/png;base64,iVBO...)"`
}

// DocumentResponse is a transformed buffer. Warning is set when some media
// could not be collapsed and stayed inline.
type DocumentResponse struct {
	Text    string `json:"text"`
	Warning string `json:"warning,omitempty"`
}

// ToggleRequest flips the reference under cursor. Cursor counts Unicode
// code points. Path, when set, names the note the buffer belongs to so the
// change is announced and autosaved.
type ToggleRequest struct {
	Path   string `json:"path,omitempty" example:"notes/hello.md"`
	Text   string `json:"text"`
	Cursor int    `json:"cursor" example:"12" validate:"gte=0"`
}

// ToggleResponse is the toggled buffer. Positions count Unicode code points.
type ToggleResponse struct {
	Text    string `json:"text"`
	Cursor  int    `json:"cursor"`
	Action  string `json:"action" example:"collapse"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Format  string `json:"format,omitempty" example:"markdown-image"`
	Changed bool   `json:"changed"`
}

// PreviewResponse is sanitized HTML for a buffer.
type PreviewResponse struct {
	HTML string `json:"html"`
}

// BlobResponse describes a stored payload.
type BlobResponse struct {
	Key      string `json:"key" example:"01920c6e-7a8b-7c3d-9e0f-123456789abc"`
	Kind     string `json:"kind" example:"image"`
	Name     string `json:"name" example:"cat.png"`
	MimeType string `json:"mimeType,omitempty" example:"image/png"`
	Data     string `json:"data"`
}
