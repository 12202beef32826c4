package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/jobhub/internal/aggregator"
	"github.com/MrSnakeDoc/jobhub/internal/breaker"
	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
)

func Providers(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Aggregator.Providers())
	}
}

func ProvidersHealth(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Aggregator.CheckProvidersHealth(r.Context()))
	}
}

func JobDetails(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, id := chi.URLParam(r, "name"), chi.URLParam(r, "id")

		job, err := d.Aggregator.JobDetails(r.Context(), provider, id)
		if err != nil {
			status := detailStatus(err)
			if status >= http.StatusInternalServerError {
				d.Logger.Warn("job details failed",
					logger.String("provider", provider),
					logger.String("external_id", id),
					logger.Error(err))
			}
			writeError(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func detailStatus(err error) int {
	switch {
	case errors.Is(err, aggregator.ErrUnknownProvider), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotSupported):
		return http.StatusNotImplemented
	case errors.Is(err, breaker.ErrOpen), errors.Is(err, domain.ErrProviderDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
