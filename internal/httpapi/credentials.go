package httpapi

import (
	"net/http"

	"github.com/nomos-run/nomos/internal/model"
)

func (h *Handler) handleListCredentials(w http.ResponseWriter, _ *http.Request) {
	creds, err := h.Defs.ListCredentials()
	if err != nil {
		notFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

func (h *Handler) handleCreateCredential(w http.ResponseWriter, r *http.Request) {
	var cred model.Credential
	if err := readJSONBody(r, &cred); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
		return
	}
	if err := h.Defs.SaveCredential(cred); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, cred)
}

func (h *Handler) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	cred, err := h.Defs.GetCredential(r.PathValue("id"))
	if err != nil {
		notFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

func (h *Handler) handleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	if err := h.Defs.DeleteCredential(r.PathValue("id")); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
