package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authMode selects passthrough or static-token auth (see AuthMiddleware).
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authMode, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	r.Get("/version", h.Version)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authMode, token))

		// Metadata records.
		r.Get("/mdjson/{itemID}", h.GetMetadata)
		r.Put("/mdjson/{itemID}", h.GetMetadata)
		r.Post("/mdjson", h.ReplaceMetadata)

		// Publishing.
		r.Post("/project", h.Publish)
		r.Post("/product", h.Publish)
		r.Put("/project/{itemID}", h.Publish)
		r.Put("/product/{itemID}", h.Publish)

		r.Delete("/project/{itemID}", h.DeleteProject)
		r.Delete("/product/{itemID}", h.DeleteProduct)

		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
