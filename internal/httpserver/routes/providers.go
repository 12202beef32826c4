package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/jobhub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/jobhub/internal/httpserver/handlers"
)

func init() { Register(registerProviders, hostOnly) }

func registerProviders(r chi.Router, d deps.Deps) {
	r.Get("/api/providers", handlers.Providers(d))
	r.Get("/api/providers/health", handlers.ProvidersHealth(d))
	r.Get("/api/providers/{name}/jobs/{id}", handlers.JobDetails(d))
	r.Get("/api/stats", handlers.Stats(d))
}
