package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/jobhub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
	"github.com/MrSnakeDoc/jobhub/internal/scheduler"
)

// TriggerSweep queues a scheduled job. A job already queued answers 429.
func TriggerSweep(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := scheduler.ParseJob(chi.URLParam(r, "kind"))
		if !ok {
			writeError(w, http.StatusNotFound, "unknown sweep kind")
			return
		}
		if d.Sweeper == nil {
			writeError(w, http.StatusServiceUnavailable, "scheduler not running")
			return
		}

		if !d.Sweeper.Trigger(job) {
			d.Logger.Warn("sweep already queued", logger.String("job", string(job)))
			writeError(w, http.StatusTooManyRequests, "sweep already queued, please wait")
			return
		}
		d.Logger.Info("manual sweep triggered via endpoint",
			logger.String("job", string(job)),
			logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "queued"})
	}
}
