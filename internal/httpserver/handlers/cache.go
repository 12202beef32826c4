package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/jobhub/internal/aggregator"
	"github.com/MrSnakeDoc/jobhub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
)

type clearCacheResponse struct {
	Provider string `json:"provider,omitempty"`
	Deleted  int    `json:"deleted"`
}

// ClearCache drops cached entries for ?provider=, or all of them.
func ClearCache(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := strings.TrimSpace(r.URL.Query().Get("provider"))

		n, err := d.Aggregator.ClearCache(r.Context(), provider)
		switch {
		case errors.Is(err, aggregator.ErrUnknownProvider):
			writeError(w, http.StatusNotFound, err.Error())
		case err != nil:
			d.Logger.Warn("cache clear failed", logger.String("provider", provider), logger.Error(err))
			writeError(w, http.StatusBadGateway, "cache unavailable")
		default:
			writeJSON(w, http.StatusOK, clearCacheResponse{Provider: provider, Deleted: n})
		}
	}
}
