package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mediafold/internal/noteservice"
)

// multipartOverhead is room for form fields and boundaries on top of the
// upload limit.
const multipartOverhead = 1 << 20

// AttachmentHandler stores uploads as blobs and serves them back.
type AttachmentHandler struct {
	svc *noteservice.Service
}

// NewAttachmentHandler creates an attachment handler.
func NewAttachmentHandler(svc *noteservice.Service) *AttachmentHandler {
	return &AttachmentHandler{svc: svc}
}

// Upload handles POST /api/attachments (multipart/form-data, fields "file"
// and optional "mode").
//
//	@Summary		Store an upload and return the reference tag to insert
//	@Tags			attachments
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"File to attach"
//	@Param			mode	formData	string	false	"Attachment mode"	Enums(file, image)
//	@Success		201		{object}	Attachment
//	@Failure		400		{object}	errResponse
//	@Failure		413		{object}	errResponse
//	@Failure		507		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/attachments [post]
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := int64(h.svc.MaxUpload())
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("file too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name := filepath.Base(filepath.Clean(header.Filename))
	if name == "." || name == string(filepath.Separator) {
		writeJSON(w, http.StatusBadRequest, errorBody("filename is required"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	att, err := h.svc.Attach(r.Context(), noteservice.AttachRequest{
		Name:     name,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
		Mode:     r.FormValue("mode"),
	})
	if err != nil {
		writeError(w, "attach", err, slog.String("name", name))
		return
	}
	writeJSON(w, http.StatusCreated, att)
}

// GetBlob handles GET /api/blobs/{key}.
//
//	@Summary		Read a stored payload
//	@Tags			attachments
//	@Produce		json
//	@Param			key	path		string	true	"Blob key"
//	@Success		200	{object}	BlobResponse
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/blobs/{key} [get]
func (h *AttachmentHandler) GetBlob(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	p, err := h.svc.Blob(r.Context(), key)
	if err != nil {
		writeError(w, "get blob", err, slog.String("key", key))
		return
	}
	writeJSON(w, http.StatusOK, BlobResponse{
		Key:      key,
		Kind:     string(p.Kind),
		Name:     p.DisplayName,
		MimeType: p.MimeType,
		Data:     p.Data,
	})
}

// DeleteBlob handles DELETE /api/blobs/{key}. Keys still referenced by a
// note are refused with 409.
//
//	@Summary		Delete an unreferenced payload
//	@Tags			attachments
//	@Param			key	path	string	true	"Blob key"
//	@Success		204	"Blob deleted"
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/blobs/{key} [delete]
func (h *AttachmentHandler) DeleteBlob(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.svc.DeleteBlob(r.Context(), key); err != nil {
		writeError(w, "delete blob", err, slog.String("key", key))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
