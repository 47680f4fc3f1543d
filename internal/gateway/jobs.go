package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cronbox/cronbox/internal/cron"
	"github.com/cronbox/cronbox/internal/expr"
	"github.com/cronbox/cronbox/internal/translate"
	"github.com/go-chi/chi/v5"
)

// addJobRequest is the POST /api/jobs payload. Exactly one of Schedule
// and Every must be set; Every is an English phrase translated to a
// cron expression.
type addJobRequest struct {
	Name     string               `json:"name"`
	Schedule string               `json:"schedule,omitempty"`
	Every    string               `json:"every,omitempty"`
	Command  string               `json:"command"`
	Type     string               `json:"type,omitempty"` // "shell" (default) or "agent"
	Agent    *cron.AgentJobConfig `json:"agent,omitempty"`
}

// updateJobRequest is the PATCH /api/jobs/{id} payload. Absent fields
// are left unchanged.
type updateJobRequest struct {
	Schedule *string `json:"schedule,omitempty"`
	Every    *string `json:"every,omitempty"`
	Command  *string `json:"command,omitempty"`
	Timeout  *string `json:"timeout,omitempty"` // time.ParseDuration notation
}

func (g *Gateway) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := g.manager.ListJobs(r.Context())
		if err != nil {
			g.serveError(w, err)
			return
		}
		if jobs == nil {
			jobs = []*cron.Job{}
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

func (g *Gateway) handleAddJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}

		schedule, err := resolveSchedule(req.Schedule, req.Every)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var job *cron.Job
		switch req.Type {
		case "", "shell":
			job, err = g.manager.AddJob(r.Context(), req.Name, schedule, req.Command)
		case "agent":
			if req.Agent == nil {
				http.Error(w, "agent jobs require an agent config", http.StatusBadRequest)
				return
			}
			job, err = g.manager.AddAgentJob(r.Context(), req.Name, schedule, req.Command, *req.Agent)
		default:
			http.Error(w, "unknown job type: "+req.Type, http.StatusBadRequest)
			return
		}
		if err != nil {
			g.serveError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, job)
	}
}

func (g *Gateway) handleGetJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := g.manager.GetJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			g.serveError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func (g *Gateway) handleUpdateJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		upd := cron.JobUpdate{Command: req.Command}

		if req.Every != nil {
			schedule, err := translate.Translate(*req.Every)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			upd.Schedule = &schedule
		}
		if req.Schedule != nil {
			if upd.Schedule != nil {
				http.Error(w, "schedule and every are mutually exclusive", http.StatusBadRequest)
				return
			}
			upd.Schedule = req.Schedule
		}
		if req.Timeout != nil {
			d, err := time.ParseDuration(*req.Timeout)
			if err != nil {
				http.Error(w, "invalid timeout: "+err.Error(), http.StatusBadRequest)
				return
			}
			upd.Timeout = &d
		}

		job, err := g.manager.UpdateJob(r.Context(), chi.URLParam(r, "id"), upd)
		if err != nil {
			g.serveError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func (g *Gateway) handleRemoveJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := g.manager.RemoveJob(r.Context(), chi.URLParam(r, "id")); err != nil {
			g.serveError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (g *Gateway) handlePauseJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := g.manager.PauseJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			g.serveError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func (g *Gateway) handleResumeJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := g.manager.ResumeJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			g.serveError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func (g *Gateway) handleRunJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := g.manager.RunJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			g.serveError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (g *Gateway) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit: "+raw, http.StatusBadRequest)
				return
			}
			limit = n
		}

		recs, err := g.manager.History(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			g.serveError(w, err)
			return
		}
		if recs == nil {
			recs = []*cron.Execution{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func (g *Gateway) handlePurgeHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := g.manager.PurgeHistory(r.Context(), chi.URLParam(r, "id")); err != nil {
			g.serveError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// resolveSchedule picks between an explicit cron expression and an
// English phrase.
func resolveSchedule(schedule, every string) (string, error) {
	switch {
	case schedule != "" && every != "":
		return "", errors.New("schedule and every are mutually exclusive")
	case every != "":
		return translate.Translate(every)
	case schedule != "":
		return schedule, nil
	default:
		return "", errors.New("either schedule or every is required")
	}
}

// serveError maps engine errors onto HTTP status codes.
func (g *Gateway) serveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cron.ErrJobNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, cron.ErrAlreadyRunning):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		var parseErr *expr.ParseError
		if errors.As(err, &parseErr) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		g.logger.Error("gateway: request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
