package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fabworks/cell-core/internal/job"
	"github.com/fabworks/cell-core/internal/machine"
)

// handleListJobs returns all stored jobs in id order.
func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := s.factory.Jobs().List()
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// handleAddJob creates a new job pre-populated from the default template.
func (s *Server) handleAddJob(w http.ResponseWriter, _ *http.Request) {
	j, err := s.factory.AddJob()
	if err != nil {
		s.logger.Error("job add persistence failed", "id", j.ID, "error", err)
		writeInternalError(w, "job created but persistence failed: "+err.Error())
		return
	}

	s.broadcastJobEvent(j.ID, "added")
	writeJSON(w, http.StatusCreated, j)
}

// handleGetJob returns one job by id.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	j, err := s.factory.Jobs().Get(id)
	if err != nil {
		writeNotFound(w, "job "+id+" not found")
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// handleUpdateJob overwrites a job record. The path id wins over any id
// in the body.
func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var j job.Job
	if err := json.NewDecoder(r.Body).Decode(&j); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	j.ID = id

	if err := s.factory.UpdateJob(j); err != nil {
		if errors.Is(err, job.ErrInvalidJob) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "job updated but persistence failed: "+err.Error())
		return
	}

	s.broadcastJobEvent(id, "updated")
	writeJSON(w, http.StatusOK, j)
}

// handleDeleteJob removes a job. Deleting an unknown id is a 404, but
// the store itself treats it as a no-op.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existed, err := s.factory.DeleteJob(id)
	if err != nil {
		writeInternalError(w, "persistence failed: "+err.Error())
		return
	}
	if !existed {
		writeNotFound(w, "job "+id+" not found")
		return
	}

	s.broadcastJobEvent(id, "deleted")
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// handleRunJob executes a stored job.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := s.factory.RunJob(r.Context(), id)
	if err != nil {
		s.broadcastJobEvent(id, "failed")
		writeJobRunError(w, id, err)
		return
	}

	s.broadcastJobEvent(id, "ran")
	writeJSON(w, http.StatusOK, result)
}

// broadcastJobEvent pushes a job lifecycle event to WebSocket subscribers.
func (s *Server) broadcastJobEvent(id, event string) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(ChannelJobEvent, map[string]string{
		"job":   id,
		"event": event,
	})
}

// writeJobRunError maps job execution errors to HTTP responses.
func writeJobRunError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, job.ErrJobNotFound):
		writeNotFound(w, "job "+id+" not found")
	case errors.Is(err, job.ErrUnknownMachine):
		writeBadRequest(w, err.Error())
	case errors.Is(err, machine.ErrUnknownCommand):
		writeBadRequest(w, err.Error())
	default:
		writeMachineError(w, err)
	}
}
