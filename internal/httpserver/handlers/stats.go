package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/jobhub/internal/aggregator"
	"github.com/MrSnakeDoc/jobhub/internal/cache"
	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
)

type statsResponse struct {
	Jobs        domain.Statistics `json:"jobs"`
	Cache       cache.Stats       `json:"cache"`
	Aggregation aggregator.Status `json:"aggregation"`
}

func Stats(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := d.Aggregator.Statistics(r.Context())
		if err != nil {
			d.Logger.Error("statistics failed", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "statistics unavailable")
			return
		}
		writeJSON(w, http.StatusOK, statsResponse{
			Jobs:        jobs,
			Cache:       d.Aggregator.CacheStats(r.Context()),
			Aggregation: d.Aggregator.Status(),
		})
	}
}
