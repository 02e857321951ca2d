package httpapi

import (
	"net/http"

	"github.com/nomos-run/nomos/internal/model"
)

func (h *Handler) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	jobs, err := h.Defs.ListJobs()
	if err != nil {
		notFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *Handler) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var job model.Job
	if err := readJSONBody(r, &job); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
		return
	}
	if err := h.Defs.SaveJob(job); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Defs.GetJob(r.PathValue("id"))
	if err != nil {
		notFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.Defs.DeleteJob(r.PathValue("id")); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// executeRequest is POST /api/jobs/{id}/execute's body: a caller-supplied
// parameter map overriding the Job's own parameter defaults.
type executeRequest struct {
	Parameters map[string]model.ParameterValue `json:"parameters"`
}

type executeResponse struct {
	ResultID string `json:"result_id"`
}

func (h *Handler) handleExecuteJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Defs.GetJob(r.PathValue("id"))
	if err != nil {
		notFound(w, err)
		return
	}

	var req executeRequest
	if err := readJSONBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
		return
	}

	resultID, err := h.Supervisor.Submit(job, nil, req.Parameters)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, executeResponse{ResultID: resultID})
}

// dryRunRequest is POST /api/jobs/dry-run's body: a Job (not necessarily
// persisted), an optional inline Script overriding job.ScriptID, and a
// parameter map — so a caller can validate an in-progress edit before
// saving it, reusing the same Engine path a live execution takes.
type dryRunRequest struct {
	Job        model.Job                       `json:"job"`
	Script     *model.Script                   `json:"script,omitempty"`
	Parameters map[string]model.ParameterValue `json:"parameters"`
}

func (h *Handler) handleDryRunJob(w http.ResponseWriter, r *http.Request) {
	var req dryRunRequest
	if err := readJSONBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
		return
	}

	result, err := h.Engine.Run(r.Context(), req.Job, req.Script, req.Parameters, true)
	if err != nil {
		writeJSON(w, http.StatusOK, dryRunResponse{Valid: false, Error: err.Error(), Result: result})
		return
	}
	writeJSON(w, http.StatusOK, dryRunResponse{Valid: true, Result: result})
}

type dryRunResponse struct {
	Valid  bool             `json:"valid"`
	Error  string           `json:"error,omitempty"`
	Result *model.JobResult `json:"result,omitempty"`
}
