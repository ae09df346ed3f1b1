// Package httpapi assembles the gallery router for the serve command.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kauntdewn1/neo-prompts/internal/http/handlers"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/videos", func(r chi.Router) {
		r.Get("/", app.ListVideos)
		r.Get("/archive", app.ArchiveVideos)
		r.Get("/{name}", app.StreamVideo)
	})

	return r
}
