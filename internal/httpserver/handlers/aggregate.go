package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/jobhub/internal/aggregator"
	"github.com/MrSnakeDoc/jobhub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
)

type acceptedResponse struct {
	Status string `json:"status"`
}

// Aggregate starts a bulk run in the background and answers 202, or 409 when
// one is already running.
func Aggregate(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := criteriaFromRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		switch err := d.Aggregator.StartAggregateAll(r.Context(), c); {
		case errors.Is(err, aggregator.ErrAggregationRunning):
			writeError(w, http.StatusConflict, err.Error())
		case err != nil:
			d.Logger.Error("failed to start aggregation", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to start aggregation")
		default:
			d.Logger.Info("aggregation triggered via endpoint",
				logger.String("keywords", c.Keywords),
				logger.String("location", c.Location))
			writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "started"})
		}
	}
}

func AggregateStatus(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Aggregator.Status())
	}
}

// AggregateProvider runs one provider synchronously and returns its result.
func AggregateProvider(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := criteriaFromRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		res, err := d.Aggregator.AggregateProvider(r.Context(), chi.URLParam(r, "name"), c)
		if errors.Is(err, aggregator.ErrUnknownProvider) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
