package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/xflkit/internal/workspace"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// scratchDir holds uploads while they are imported; empty means os.TempDir.
func NewRouter(svc *workspace.Service, authEnabled bool, token string, sseHandler http.Handler, scratchDir string) chi.Router {
	h := NewHandler(svc)
	mh := NewMediaHandler(svc, scratchDir)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Document.
	r.Get("/document", h.GetDocument)
	r.Post("/save", h.Save)

	// Library items.
	r.Get("/items", h.ListItems)
	r.Post("/items", h.CreateItem)
	r.Get("/items/*", h.GetItem)
	r.Patch("/items/*", h.UpdateItem)
	r.Delete("/items/*", h.DeleteItem)
	r.Get("/dependents/*", h.Dependents)
	r.Get("/library", h.Library)

	// Search.
	r.Get("/search", h.Search)

	// Timelines.
	r.Route("/timelines/{timeline}", func(r chi.Router) {
		r.Get("/layers", h.ListLayers)
		r.Post("/layers", h.CreateLayer)
		r.Post("/frames", h.InsertFrames)
		r.Delete("/frames", h.RemoveFrames)
		r.Route("/layers/{layer}", func(r chi.Router) {
			r.Post("/keyframes", h.ConvertToKeyframes)
			r.Delete("/keyframes/{frame}", h.ClearKeyframe)
			r.Get("/frames/{frame}", h.GetFrame)
			r.Post("/frames/{frame}/elements", h.PlaceItem)
			r.Get("/frames/{frame}/elements/{element}/paths", h.ShapePaths)
		})
	})

	// Imports.
	r.Post("/import", h.Import)
	r.Post("/media", mh.Upload)
	r.Get("/media/*", mh.ServeFile)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
