package gateway

import (
	"net/http"
	"time"

	"github.com/cronbox/cronbox/internal/cron"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime     float64         `json:"uptime_seconds"`
	Jobs       int             `json:"jobs"`
	ActiveJobs int             `json:"active_jobs"`
	PausedJobs int             `json:"paused_jobs"`
	Metrics    MetricsSnapshot `json:"metrics"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Uptime:  time.Since(g.startedAt).Truncate(time.Second).Seconds(),
			Metrics: g.metrics.Snapshot(),
		}

		jobs, err := g.manager.ListJobs(r.Context())
		if err != nil {
			g.serveError(w, err)
			return
		}
		resp.Jobs = len(jobs)
		for _, job := range jobs {
			switch job.Status {
			case cron.StatusActive:
				resp.ActiveJobs++
			case cron.StatusPaused:
				resp.PausedJobs++
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
