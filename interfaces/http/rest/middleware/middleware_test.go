package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"blueprint-editor/pkg/common"
	pkgerrors "blueprint-editor/pkg/errors"
	"blueprint-editor/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type denyAfter struct {
	left int
	err  error
}

func (d *denyAfter) Allow(ctx context.Context, key string) (bool, error) {
	if d.err != nil {
		return true, d.err
	}
	d.left--
	return d.left >= 0, nil
}

func (d *denyAfter) Window() time.Duration { return 30 * time.Second }

func ok(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }

func TestRateLimit(t *testing.T) {
	errs := pkgerrors.NewErrorHandler(zap.NewNop(), false)
	h := RateLimit(&denyAfter{left: 1}, errs, zap.NewNop())(http.HandlerFunc(ok))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v2/blueprints", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v2/blueprints", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"retry_after_seconds":30`)
}

func TestRateLimitFailsOpenAndLogs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	errs := pkgerrors.NewErrorHandler(zap.NewNop(), false)
	h := RateLimit(&denyAfter{err: assert.AnError}, errs, zap.New(core))(http.HandlerFunc(ok))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "192.0.2.1", logs.All()[0].ContextMap()["client"])
}

func TestRateLimitNilLimiter(t *testing.T) {
	next := http.HandlerFunc(ok)
	h := RateLimit(nil, nil, zap.NewNop())(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequestAndSessionContext(t *testing.T) {
	var meta common.ContextMetadata
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(RequestContext)
	r.Route("/sessions/{sid}", func(r chi.Router) {
		r.Use(SessionContext)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			meta = common.ExtractMetadata(r.Context())
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/sessions/abc123", nil)
	req.Header.Set("X-Amzn-Trace-Id", "Root=1-5759e988-bd862e3fe1be46a994272793")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotEmpty(t, meta.RequestID)
	assert.Equal(t, "Root=1-5759e988-bd862e3fe1be46a994272793", meta.TraceID)
	assert.Equal(t, "abc123", meta.SessionID)
}

func TestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := RequestContext(Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fine", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.EqualValues(t, 502, entries[1].ContextMap()["status"])
}

func TestMetricsRoutePattern(t *testing.T) {
	m := observability.NewMetrics("blueprint_test")
	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/diagrams/{id}", ok)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/diagrams/7", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/diagrams/8", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `route="/diagrams/{id}"`)
	assert.NotContains(t, rec.Body.String(), `/diagrams/7`)
}
