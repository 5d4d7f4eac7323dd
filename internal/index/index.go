package index

import "github.com/starford/mediafold/internal/parser"

// NoteIndex is the index surface the service and maintenance layers use.
type NoteIndex interface {
	UpsertNote(n NoteRow, summary string, media []parser.Media) error
	DeleteNote(path string) error
	GetChecksum(path string) (string, error)
	GetNote(path string) (*NoteRow, error)
	ListNotes(limit, offset int, tag string) ([]NoteRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Media(path string) ([]parser.Media, error)
	ReferencedKeys() (map[string]struct{}, error)
	NotesReferencing(key string) ([]string, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

var _ NoteIndex = (*DB)(nil)
