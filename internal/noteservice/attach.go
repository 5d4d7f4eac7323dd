package noteservice

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/starford/mediafold/internal/apperr"
	"github.com/starford/mediafold/internal/mediaref"
	"github.com/starford/mediafold/internal/models"
)

// Attachment modes.
const (
	ModeFile  = "file"
	ModeImage = "image"
)

// AttachRequest is an uploaded file to insert into a buffer.
type AttachRequest struct {
	Name     string
	MimeType string
	Data     []byte
	Mode     string
}

// Attachment is the collapsed tag to insert for an upload.
type Attachment struct {
	Tag  string      `json:"tag"`
	Key  string      `json:"key"`
	Kind models.Kind `json:"kind"`
	Name string      `json:"name"`
}

// Attach stores an upload and returns the reference tag to insert at the
// cursor. Mode image stores a picture (a drawing when its name says so);
// mode file classifies by MIME type and extension. On a store failure no
// tag is returned.
func (s *Service) Attach(ctx context.Context, req AttachRequest) (*Attachment, error) {
	if len(req.Data) > s.maxUpload {
		return nil, fmt.Errorf("attachment %q is %d bytes, limit %d: %w", req.Name, len(req.Data), s.maxUpload, apperr.ErrTooLarge)
	}
	mime := req.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}

	codec := s.eng.Codec()
	p := models.MediaPayload{
		DisplayName: req.Name,
		MimeType:    mime,
		Data:        "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.Data),
	}
	switch strings.ToLower(req.Mode) {
	case ModeImage:
		p.Kind = models.KindImage
		p = codec.Classify(p)
	case ModeFile, "":
		p.Kind = mediaref.KindForFile(req.Name, mime)
		p = codec.Classify(p)
	default:
		return nil, fmt.Errorf("attachment mode %q: %w", req.Mode, apperr.ErrInvalidInput)
	}
	if p.DisplayName == "" {
		p.DisplayName = codec.Labels().DefaultName(p.Kind)
	}

	ref, err := codec.Encode(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Attachment{Tag: codec.TagText(ref), Key: ref.Key, Kind: p.Kind, Name: p.DisplayName}, nil
}

// Blob returns a stored payload.
func (s *Service) Blob(ctx context.Context, key string) (models.MediaPayload, error) {
	if err := mediaref.ValidateKey(key); err != nil {
		return models.MediaPayload{}, err
	}
	return s.blobs.Get(ctx, key)
}

// DeleteBlob removes a payload no canonical document references. A key still
// in use is apperr.ErrConflict.
func (s *Service) DeleteBlob(ctx context.Context, key string) error {
	if err := mediaref.ValidateKey(key); err != nil {
		return err
	}
	paths, err := s.db.NotesReferencing(key)
	if err != nil {
		return err
	}
	if len(paths) > 0 {
		return fmt.Errorf("blob %s referenced by %s: %w", key, strings.Join(paths, ", "), apperr.ErrConflict)
	}
	return s.blobs.Delete(ctx, key)
}
