package httpapi

import (
	"io"
	"net/http"
)

// handleWebhook reads the raw body and dispatches it.
// It always answers 200: per-Job, per-trigger failures are logged inside
// the Dispatcher, never surfaced to the sender.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return
	}

	h.Webhook.Dispatch(body, r.Header.Get("x-hub-signature-256"), r.Header.Get("x-github-event"))
	w.WriteHeader(http.StatusOK)
}
