package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/scratch/internal/untitledservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *untitledservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	ih := NewImportHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Untitled copies. Keys with slashes are path-escaped.
	r.Get("/untitled", h.ListUntitled)
	r.Post("/untitled", h.CreateUntitled)
	r.Get("/untitled/{key}", h.GetUntitled)
	r.Delete("/untitled/{key}", h.DisposeUntitled)
	r.Put("/untitled/{key}/content", h.UpdateContent)
	r.Post("/untitled/{key}/resolve", h.ResolveUntitled)
	r.Get("/untitled/{key}/backup", h.GetBackup)
	r.Post("/untitled/{key}/save", h.SaveUntitled)
	r.Post("/untitled/{key}/revert", h.RevertUntitled)

	// Multipart import into a new copy.
	r.Post("/import", ih.Upload)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
