package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/schoolbook/schoolbook-core/internal/infrastructure/scheduler"
	httpserver "github.com/schoolbook/schoolbook-core/internal/interface/http"
	"github.com/schoolbook/schoolbook-core/internal/interface/http/handlers"
)

const adminToken = "s3cret"

type fakeJobs struct {
	ran []string
	err map[string]error
}

func (f *fakeJobs) RunNow(_ context.Context, name string) (*scheduler.JobResult, error) {
	if err, ok := f.err[name]; ok {
		if errors.Is(err, scheduler.ErrJobNotFound) || errors.Is(err, scheduler.ErrJobRunning) {
			return nil, err
		}
		return &scheduler.JobResult{JobName: name, Error: err.Error(), Manual: true}, err
	}
	f.ran = append(f.ran, name)
	return &scheduler.JobResult{JobName: name, Success: true, Manual: true}, nil
}

func (f *fakeJobs) ListJobs() []scheduler.JobInfo {
	return []scheduler.JobInfo{{Name: "sweep_overdue_tuition", Enabled: true}}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newServer(t *testing.T, jobs *fakeJobs, dbErr error) http.Handler {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(adminToken), bcrypt.MinCost)
	require.NoError(t, err)
	admin, err := handlers.NewAdminAuth(string(hash))
	require.NoError(t, err)

	health := handlers.NewHealthChecker("test")
	health.AddCheck("postgres", pinger{err: dbErr}.Ping)
	health.AddCheck("redis", handlers.PingCheck(pinger{}))

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "schoolbook_test_total", Help: "test"}))

	cfg := httpserver.DefaultConfig()
	cfg.Version = "test"
	srv := httpserver.NewServer(cfg, httpserver.Dependencies{
		Health:   health,
		Jobs:     handlers.NewJobs(jobs, nil, time.Minute),
		Admin:    admin,
		Gatherer: reg,
	})
	return srv.Handler()
}

func do(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	h := newServer(t, &fakeJobs{}, nil)

	rec := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(h, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Healthy)
	assert.Len(t, status.Checks, 2)
}

func TestReady_FailingDependency(t *testing.T) {
	h := newServer(t, &fakeJobs{}, errors.New("connection refused"))

	rec := do(h, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Healthy)
	assert.Equal(t, "Some checks failed: postgres", status.Message)
	assert.Equal(t, "connection refused", status.Checks["postgres"].Message)
}

func TestMetrics(t *testing.T) {
	h := newServer(t, &fakeJobs{}, nil)

	rec := do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "schoolbook_test_total")
}

func TestAdminJobs_RequiresToken(t *testing.T) {
	jobs := &fakeJobs{}
	h := newServer(t, jobs, nil)

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/admin/jobs/run_payroll/run", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/admin/jobs/run_payroll/run", "wrong").Code)
	assert.Empty(t, jobs.ran)
}

func TestAdminJobs_Run(t *testing.T) {
	jobs := &fakeJobs{err: map[string]error{
		"missing":          fmt.Errorf("%w: missing", scheduler.ErrJobNotFound),
		"busy":             fmt.Errorf("%w: busy", scheduler.ErrJobRunning),
		"generate_tuition": errors.New("db down"),
	}}
	h := newServer(t, jobs, nil)

	rec := do(h, http.MethodPost, "/admin/jobs/run_payroll/run", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var result scheduler.JobResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, []string{"run_payroll"}, jobs.ran)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodPost, "/admin/jobs/missing/run", adminToken).Code)
	assert.Equal(t, http.StatusConflict, do(h, http.MethodPost, "/admin/jobs/busy/run", adminToken).Code)
	assert.Equal(t, http.StatusInternalServerError, do(h, http.MethodPost, "/admin/jobs/generate_tuition/run", adminToken).Code)

	rec = do(h, http.MethodGet, "/admin/jobs", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sweep_overdue_tuition")
}

func TestAdminAuth_RejectsInvalidHash(t *testing.T) {
	_, err := handlers.NewAdminAuth("plain-text")
	assert.Error(t, err)

	auth, err := handlers.NewAdminAuth("")
	require.NoError(t, err)
	assert.False(t, auth.Valid("anything"))
}

func TestUnknownRoute(t *testing.T) {
	h := newServer(t, &fakeJobs{}, nil)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/nope", "").Code)
}
