package httpapi

import "net/http"

func (h *Handler) handleListJobResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.Results.GetAll(r.URL.Query().Get("job-id"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) handleStopJobResult(w http.ResponseWriter, r *http.Request) {
	if err := h.Supervisor.Stop(r.PathValue("id")); err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
