package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/jobhub/internal/httpserver/deps"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Providers     int     `json:"providers"`
	Aggregating   bool    `json:"aggregating"`
	Version       string  `json:"version,omitempty"`
	Commit        string  `json:"commit,omitempty"`
	BuildDate     string  `json:"build_date,omitempty"`
	GoVersion     string  `json:"go_version,omitempty"`
}

// Healthz is liveness only: it reads in-process state and touches no backend.
func Healthz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthzResponse{
			Status:        "ok",
			UptimeSeconds: d.Now().Sub(d.StartTime).Seconds(),
			Version:       d.Version,
			Commit:        d.Commit,
			BuildDate:     d.BuildDate,
			GoVersion:     d.GoVersion,
		}
		if d.Aggregator != nil {
			resp.Providers = len(d.Aggregator.Providers())
			resp.Aggregating = d.Aggregator.Running()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
