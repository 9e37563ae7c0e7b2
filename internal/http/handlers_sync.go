package http

import (
	"net/http"

	"openbudget/internal/core"
	"openbudget/internal/log"
)

type jobAccepted struct {
	JobID  string `json:"jobId"`
	State  string `json:"state"`
	Remote bool   `json:"remote"`
}

// handleTriggerSync validates the body and starts a background sync run.
// Per-unit outcomes land in the sync log, not in the reply.
func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sync == nil {
		unavailable(w, "sync")
		return
	}
	req, err := DecodeSyncRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	job, err := s.deps.Sync.TriggerSync(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Sync job accepted",
		log.FieldJobID, job.ID,
		log.FieldYear, req.Year,
		"types", req.Types,
		log.FieldPeriod, req.Period)
	writeJSON(w, http.StatusAccepted, jobAccepted{JobID: job.ID, State: string(job.State), Remote: job.Remote})
}

func (s *Server) handleTriggerRetry(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sync == nil {
		unavailable(w, "sync")
		return
	}
	job, err := s.deps.Sync.TriggerRetry(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Retry job accepted", log.FieldJobID, job.ID)
	writeJSON(w, http.StatusAccepted, jobAccepted{JobID: job.ID, State: string(job.State), Remote: job.Remote})
}

// handleJob reports jobs known to this process. Jobs handed to the queue
// stay queued here; the sync log carries their outcome.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sync == nil {
		unavailable(w, "sync")
		return
	}
	job, ok := s.deps.Sync.Job(r.PathValue("id"))
	if !ok {
		writeMessage(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleSyncLog(w http.ResponseWriter, r *http.Request) {
	if s.deps.SyncLog == nil {
		unavailable(w, "sync log")
		return
	}
	query := r.URL.Query()
	status, err := parseSyncStatus(query.Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := parseLimit(query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.deps.SyncLog.ListSyncLog(r.Context(), status, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.SyncLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}
