package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/jobhub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/jobhub/internal/httpserver/handlers"
)

func init() { Register(registerAdmin, cidrOnly, hostOnly) }

func registerAdmin(r chi.Router, d deps.Deps) {
	r.Post("/api/aggregate", handlers.Aggregate(d))
	r.Get("/api/aggregate/status", handlers.AggregateStatus(d))
	r.Post("/api/providers/{name}/aggregate", handlers.AggregateProvider(d))
	r.Delete("/api/cache", handlers.ClearCache(d))
	r.Post("/api/sweeps/{kind}", handlers.TriggerSweep(d))
}
