package api

import (
	"log/slog"
	"net/http"

	"github.com/starford/mediafold/internal/engine"
)

// ExpandDocument handles POST /api/documents/expand.
//
//	@Summary		Expand every resolvable reference in a buffer
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DocumentRequest	true	"Buffer"
//	@Success		200		{object}	DocumentResponse
//	@Security		BearerAuth
//	@Router			/documents/expand [post]
func (h *Handler) ExpandDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !decodeValidate(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{Text: h.svc.Expand(r.Context(), req.Text)})
}

// CollapseDocument handles POST /api/documents/collapse. A partial failure
// still returns the buffer, with the failed media left inline.
//
//	@Summary		Collapse every eligible media literal in a buffer
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DocumentRequest	true	"Buffer"
//	@Success		200		{object}	DocumentResponse
//	@Security		BearerAuth
//	@Router			/documents/collapse [post]
func (h *Handler) CollapseDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !decodeValidate(w, r, &req) {
		return
	}
	text, err := h.svc.Collapse(r.Context(), req.Text)
	resp := DocumentResponse{Text: text}
	if err != nil {
		slog.Warn("collapse incomplete", slog.String("error", err.Error()))
		resp.Warning = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ToggleReference handles POST /api/documents/toggle.
//
//	@Summary		Toggle the reference under the cursor
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ToggleRequest	true	"Buffer and cursor"
//	@Success		200		{object}	ToggleResponse
//	@Failure		400		{object}	errResponse
//	@Failure		507		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/toggle [post]
func (h *Handler) ToggleReference(w http.ResponseWriter, r *http.Request) {
	var req ToggleRequest
	if !decodeValidate(w, r, &req) {
		return
	}
	res, err := h.svc.Toggle(r.Context(), req.Path, req.Text, engine.ByteOffset(req.Text, req.Cursor))
	if err != nil {
		writeError(w, "toggle", err, slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{
		Text:    res.Text,
		Cursor:  engine.RuneOffset(res.Text, res.Cursor),
		Action:  string(res.Action),
		Start:   engine.RuneOffset(res.Text, res.Span.Start),
		End:     engine.RuneOffset(res.Text, res.Span.End),
		Format:  res.Format,
		Changed: res.Changed,
	})
}

// PreviewDocument handles POST /api/documents/preview.
//
//	@Summary		Render a buffer as sanitized HTML
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DocumentRequest	true	"Buffer"
//	@Success		200		{object}	PreviewResponse
//	@Security		BearerAuth
//	@Router			/documents/preview [post]
func (h *Handler) PreviewDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !decodeValidate(w, r, &req) {
		return
	}
	html, err := h.svc.Preview(r.Context(), req.Text)
	if err != nil {
		writeError(w, "preview", err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{HTML: html})
}
