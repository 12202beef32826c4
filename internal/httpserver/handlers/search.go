package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/jobhub/internal/httpserver/deps"
)

// Search runs a live search across every provider. Provider failures show up
// in the per-provider stats; the request itself only fails on bad input.
func Search(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := criteriaFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, d.Aggregator.SearchAllProviders(r.Context(), c))
	}
}
