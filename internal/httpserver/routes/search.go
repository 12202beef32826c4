package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/jobhub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/jobhub/internal/httpserver/handlers"
)

func init() { Register(registerSearch, hostOnly, searchLimit) }

func registerSearch(r chi.Router, d deps.Deps) {
	r.Get("/api/search", handlers.Search(d))
}
