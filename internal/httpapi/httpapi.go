// Package httpapi is the thin HTTP handler surface around the Job
// Execution Engine: a struct holding shared dependencies, explicit method
// dispatch via http.ServeMux, and SecurityHeaders/Logging middleware.
package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nomos-run/nomos/internal/defs"
	"github.com/nomos-run/nomos/internal/engine"
	"github.com/nomos-run/nomos/internal/model"
	"github.com/nomos-run/nomos/internal/resultstore"
	"github.com/nomos-run/nomos/internal/supervisor"
	"github.com/nomos-run/nomos/internal/webhook"
)

// maxBodySize guards every request body against memory exhaustion.
const maxBodySize = 10 * 1024 * 1024

// Handler holds every dependency the routes need.
type Handler struct {
	Defs       *defs.Store
	Engine     *engine.Engine
	Supervisor *supervisor.Supervisor
	Results    *resultstore.Store
	Webhook    *webhook.Dispatcher

	BasicAuthUser string
	BasicAuthPass string

	Logger *slog.Logger
}

// NewMux builds the full HTTP route table.
func (h *Handler) NewMux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("POST /public/api/webhook", h.handleWebhook)

	mux.HandleFunc("GET /api/credentials", h.handleListCredentials)
	mux.HandleFunc("POST /api/credentials", h.handleCreateCredential)
	mux.HandleFunc("GET /api/credentials/{id}", h.handleGetCredential)
	mux.HandleFunc("DELETE /api/credentials/{id}", h.handleDeleteCredential)

	mux.HandleFunc("GET /api/scripts", h.handleListScripts)
	mux.HandleFunc("POST /api/scripts", h.handleCreateScript)
	mux.HandleFunc("GET /api/scripts/{id}", h.handleGetScript)
	mux.HandleFunc("DELETE /api/scripts/{id}", h.handleDeleteScript)

	mux.HandleFunc("GET /api/jobs", h.handleListJobs)
	mux.HandleFunc("POST /api/jobs", h.handleCreateJob)
	mux.HandleFunc("GET /api/jobs/{id}", h.handleGetJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", h.handleDeleteJob)
	mux.HandleFunc("POST /api/jobs/{id}/execute", h.handleExecuteJob)
	mux.HandleFunc("POST /api/jobs/dry-run", h.handleDryRunJob)

	mux.HandleFunc("POST /api/job-results/{id}/stop", h.handleStopJobResult)
	mux.HandleFunc("GET /api/job-results", h.handleListJobResults)

	return SecurityHeadersMiddleware(h.LoggingMiddleware(h.basicAuthMiddleware(mux)))
}

// basicAuthMiddleware guards every /api/* route with HTTP Basic Auth;
// /public/api/webhook and /health are left open. An empty BasicAuthUser
// disables auth entirely (local development).
func (h *Handler) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.BasicAuthUser == "" || r.URL.Path == "/health" || r.URL.Path == "/public/api/webhook" {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(h.BasicAuthUser)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(h.BasicAuthPass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="nomos"`)
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SecurityHeadersMiddleware adds a baseline set of response headers.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs every request via log/slog.
func (h *Handler) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		h.logger().Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// ErrorResponse is the JSON error body returned by every failing endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func readJSONBody(r *http.Request, out any) error {
	defer func() { _ = r.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("reading request body: %w", err)
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func notFound(w http.ResponseWriter, err error) {
	if errors.Is(err, os.ErrNotExist) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}
