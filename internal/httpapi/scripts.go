package httpapi

import (
	"net/http"

	"github.com/nomos-run/nomos/internal/model"
)

func (h *Handler) handleListScripts(w http.ResponseWriter, _ *http.Request) {
	scripts, err := h.Defs.ListScripts()
	if err != nil {
		notFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scripts)
}

func (h *Handler) handleCreateScript(w http.ResponseWriter, r *http.Request) {
	var script model.Script
	if err := readJSONBody(r, &script); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
		return
	}
	if err := h.Defs.SaveScript(script); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, script)
}

func (h *Handler) handleGetScript(w http.ResponseWriter, r *http.Request) {
	script, err := h.Defs.GetScript(r.PathValue("id"))
	if err != nil {
		notFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, script)
}

func (h *Handler) handleDeleteScript(w http.ResponseWriter, r *http.Request) {
	if err := h.Defs.DeleteScript(r.PathValue("id")); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
