package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/jobstore"
)

// handleHealth reports service liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleSubmit decodes a BacktestRequest, validates its structural fields,
// and enqueues it for asynchronous processing. It must return well under a
// second regardless of queue depth — no pipeline stage runs on this path.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req domain.BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string][]string{"analysis_errors": {"malformed request body: " + err.Error()}})
		return
	}

	if err := req.Validate(); err != nil {
		s.writeValidationError(w, err)
		return
	}

	jobID, err := s.scheduler.Submit(&req)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue job"})
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// handlePoll returns the JobRecord for the requested job.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	rec, err := s.scheduler.Poll(jobID)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read job record"})
		return
	}
	if rec == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// handleCancel cancels a PENDING job; RUNNING and terminal jobs reject with
// 409 since v1 does not support cancelling in-flight backtests.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	result, err := s.scheduler.Cancel(jobID)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to cancel job"})
		return
	}
	switch result {
	case jobstore.CancelOK:
		s.writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "status": string(domain.JobCancelled)})
	case jobstore.CancelNotFound:
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
	default:
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": "job is not pending"})
	}
}

// handleSyncRun blocks until the backtest completes and returns the fully
// shaped response. Intended for profiling and tests; production clients
// should prefer the async submit/poll pair.
func (s *Server) handleSyncRun(w http.ResponseWriter, r *http.Request) {
	var req domain.BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string][]string{"analysis_errors": {"malformed request body: " + err.Error()}})
		return
	}

	if err := req.Validate(); err != nil {
		s.writeValidationError(w, err)
		return
	}

	result, err := s.scheduler.RunSync(r.Context(), &req)
	if err != nil {
		status, field := errorStatus(err)
		if field == "" {
			s.writeJSON(w, status, map[string]string{"error": "internal error"})
			return
		}
		s.writeJSON(w, status, map[string][]string{field: errorMessages(err)})
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeValidationError(w http.ResponseWriter, err error) {
	if ve, ok := err.(*domain.ValidationError); ok {
		status, _ := errorStatus(ve)
		s.writeJSON(w, status, map[string][]string{"analysis_errors": ve.Errors.Messages()})
		return
	}
	s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func errorMessages(err error) []string {
	switch e := err.(type) {
	case *domain.ValidationError:
		return e.Errors.Messages()
	case *domain.ExecutionError:
		return e.Errors.Messages()
	default:
		return []string{err.Error()}
	}
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}
