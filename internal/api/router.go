package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/slideman/internal/slidesvc"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// libraryRoot is used to resolve the thumbnails directory.
func NewRouter(svc *slidesvc.Service, authEnabled bool, token string, sseHandler http.Handler, libraryRoot string) chi.Router {
	h := NewHandler(svc)
	th := NewThumbHandler(libraryRoot)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Projects.
	r.Get("/projects", h.ListProjects)
	r.Post("/projects", h.CreateProject)
	r.Get("/projects/{id}", h.GetProject)
	r.Delete("/projects/{id}", h.DeleteProject)

	// Files.
	r.Get("/projects/{id}/files", h.ListFiles)
	r.Post("/projects/{id}/files", h.ImportFile)
	r.Delete("/files/{id}", h.DeleteFile)

	// Slides.
	r.Get("/projects/{id}/slides", h.ListSlides)
	r.Get("/slides/{id}", h.GetSlide)

	// Search.
	r.Get("/search", h.Search)

	// Keywords and tagging.
	r.Get("/keywords", h.ListKeywords)
	r.Post("/keywords", h.CreateKeyword)
	r.Get("/keywords/duplicates", h.DuplicateKeywords)
	r.Post("/keywords/merge", h.MergeKeywords)
	r.Put("/keywords/{id}", h.RenameKeyword)
	r.Delete("/keywords/{id}", h.DeleteKeyword)
	r.Post("/slides/{id}/keywords/{kid}", h.TagSlide)
	r.Delete("/slides/{id}/keywords/{kid}", h.UntagSlide)
	r.Post("/elements/{id}/keywords/{kid}", h.TagElement)
	r.Delete("/elements/{id}/keywords/{kid}", h.UntagElement)

	// Assemblies.
	r.Get("/projects/{id}/assemblies", h.ListAssemblies)
	r.Post("/projects/{id}/assemblies", h.CreateAssembly)
	r.Get("/assemblies/{id}", h.GetAssembly)
	r.Put("/assemblies/{id}/order", h.ReorderAssembly)
	r.Delete("/assemblies/{id}", h.DeleteAssembly)
	r.Post("/assemblies/{id}/export", h.ExportAssembly)

	// Undo history.
	r.Post("/undo", h.Undo)
	r.Post("/redo", h.Redo)
	r.Get("/history", h.History)

	// Slide thumbnails.
	r.Get("/thumbs/{filename}", th.ServeFile)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
