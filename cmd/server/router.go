package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/omnimedia-api/internal/api"
	apiMiddleware "github.com/phrazzld/omnimedia-api/internal/api/middleware"
	"github.com/phrazzld/omnimedia-api/internal/broadcast"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))

	taskHandler := api.NewTaskHandler(app.dispatcher)
	sseHandler := api.NewSSEHandler(app.dispatcher, app.hub)
	wsHandler, err := api.NewWSHandler(app.hub, app.config.Server.AllowedOrigins, broadcast.DefaultWSConfig(), app.logger)
	if err != nil {
		return nil, err
	}

	// protected wraps routes in authentication when a JWT secret is configured.
	protected := func(r chi.Router) chi.Router {
		if app.jwtService == nil {
			return r
		}
		return r.With(apiMiddleware.NewAuthMiddleware(app.jwtService).Authenticate)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", taskHandler.Health)

		r.Group(func(r chi.Router) {
			r = protected(r)
			r.Post("/generate", taskHandler.Generate)
			r.Get("/task/{id}", taskHandler.GetTask)
			r.Delete("/task/{id}", taskHandler.CancelTask)
			r.Get("/task/{id}/events", sseHandler.ServeHTTP)
		})
	})

	r.Get("/stream/{id}", taskHandler.Stream)
	protected(r).Handle("/ws", wsHandler)

	return r, nil
}
