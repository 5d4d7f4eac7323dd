package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mediafold/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	ah := NewAttachmentHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes: canonical documents.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.SaveNote)
	r.Delete("/notes/*", h.DeleteNote)

	// Editing buffers.
	r.Get("/edit/*", h.OpenForEdit)
	r.Post("/drafts/*", h.SaveDraft)

	r.Route("/documents", func(r chi.Router) {
		r.Post("/expand", h.ExpandDocument)
		r.Post("/collapse", h.CollapseDocument)
		r.Post("/toggle", h.ToggleReference)
		r.Post("/preview", h.PreviewDocument)
	})

	r.Get("/search", h.Search)

	r.Post("/attachments", ah.Upload)
	r.Get("/blobs/{key}", ah.GetBlob)
	r.Delete("/blobs/{key}", ah.DeleteBlob)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
