package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tessellate/items-api/internal/api/middleware"
)

// Scopes guarding the item endpoints.
const (
	scopeItemsRead  = "items:read"
	scopeItemsWrite = "items:write"
)

// setupRouter configures all routes and the request pipeline. The pipeline
// stages are declared as one explicit ordered slice: request context first
// (correlation ids and the request-scoped logger), then observation
// (metrics and the completion log line), then the hard deadline. The
// observation stage sits outside the deadline stage on purpose, so the
// status it records is the one the client actually received, including a
// synthesized 504. Authentication runs innermost, so even rejected
// requests are observed and subject to the deadline.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	pipeline := middleware.Chain(
		middleware.RequestContext(app.logger),
		middleware.Observe(app.metrics),
		middleware.Timeout(time.Duration(app.config.Server.RequestTimeoutMs)*time.Millisecond),
		middleware.Authenticate(app.verifier),
	)

	r.Group(func(r chi.Router) {
		r.Use(pipeline)

		r.Route("/v1/items", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireScopes(scopeItemsWrite))
				r.Post("/", app.itemHandler.CreateItem)
				r.Put("/{id}", app.itemHandler.UpdateItem)
				r.Delete("/{id}", app.itemHandler.DeleteItem)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireScopes(scopeItemsRead))
				r.Get("/", app.itemHandler.ListItems)
				r.Get("/{id}", app.itemHandler.GetItem)
			})
		})
	})

	// Operational endpoints stay outside the authenticated pipeline.
	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
