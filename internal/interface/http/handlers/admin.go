package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/schoolbook/schoolbook-core/internal/infrastructure/scheduler"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// AdminAuth checks a bearer token against a bcrypt hash. An empty hash
// rejects every request.
type AdminAuth struct {
	hash []byte
}

// NewAdminAuth creates an authenticator. The hash is validated eagerly so a
// misconfigured deployment fails at startup.
func NewAdminAuth(hash string) (*AdminAuth, error) {
	if hash == "" {
		return &AdminAuth{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, err
	}
	return &AdminAuth{hash: []byte(hash)}, nil
}

// Enabled reports whether a token hash is configured.
func (a *AdminAuth) Enabled() bool {
	return len(a.hash) > 0
}

// Valid reports whether token matches the configured hash.
func (a *AdminAuth) Valid(token string) bool {
	if !a.Enabled() || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(token)) == nil
}

// Middleware rejects requests without a valid "Authorization: Bearer" token.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "Bearer token is required")
			return
		}
		if !a.Valid(token) {
			writeError(w, http.StatusUnauthorized, "invalid_token", "Invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

// JobRunner is the part of the scheduler exposed over HTTP.
type JobRunner interface {
	RunNow(ctx context.Context, name string) (*scheduler.JobResult, error)
	ListJobs() []scheduler.JobInfo
}

// Jobs serves the administrative job endpoints.
type Jobs struct {
	runner  JobRunner
	logger  *zap.Logger
	timeout time.Duration
}

// NewJobs creates the handlers. timeout bounds a manual run (default: 10m).
func NewJobs(runner JobRunner, logger *zap.Logger, timeout time.Duration) *Jobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Jobs{runner: runner, logger: logger.Named("admin"), timeout: timeout}
}

// List handles GET /admin/jobs.
func (h *Jobs) List(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, map[string]any{"jobs": h.runner.ListJobs()})
}

// Run handles POST /admin/jobs/{name}/run. The job keeps running when the
// client disconnects.
func (h *Jobs) Run(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()

	h.logger.Info("manual job run requested", zap.String("job", name))
	result, err := h.runner.RunNow(ctx, name)
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job_not_found", err.Error())
	case errors.Is(err, scheduler.ErrJobRunning):
		writeError(w, http.StatusConflict, "job_running", err.Error())
	case err != nil && result == nil:
		writeError(w, http.StatusInternalServerError, "job_error", err.Error())
	case err != nil:
		writeStatus(w, http.StatusInternalServerError, result)
	default:
		writeStatus(w, http.StatusOK, result)
	}
}

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	writeStatus(w, code, map[string]ErrorBody{"error": {Code: errCode, Message: message}})
}

// NotFound answers unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", "no route for "+r.Method+" "+r.URL.Path)
}

// InternalError answers a recovered panic.
func InternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
}
