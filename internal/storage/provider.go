// Package storage holds canonical documents: Markdown files whose media is
// stored inline in its expanded form.
package storage

import "github.com/starford/mediafold/internal/models"

// Provider is the persistence boundary for canonical documents.
// Paths are relative to the vault root.
type Provider interface {
	// List returns metadata for every .md document under dir.
	List(dir string) ([]models.DocumentInfo, error)
	// Read returns the document bytes. A missing document is apperr.ErrNotFound.
	Read(path string) ([]byte, error)
	// Write replaces the document atomically. Readers see the old or the new
	// content, never a partial file.
	Write(path string, content []byte) error
	// Delete removes the document. A missing document is apperr.ErrNotFound.
	Delete(path string) error
}
