package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/blobs/{key}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/blobs/{key}", "418"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blobs/abc", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/blobs/{key}", "418"))
	assert.Equal(t, before+1, after)
}

func TestMiddlewareKeepsFlusher(t *testing.T) {
	var flushed bool
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		f, ok := w.(http.Flusher)
		if assert.True(t, ok) {
			f.Flush()
			flushed = true
		}
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.True(t, flushed)
	assert.True(t, rec.Flushed)
}

func TestObserveReference(t *testing.T) {
	before := testutil.ToFloat64(referenceOps.WithLabelValues(OpToggle, OutcomeOK))
	ObserveReference(OpToggle, OutcomeOK)
	assert.Equal(t, before+1, testutil.ToFloat64(referenceOps.WithLabelValues(OpToggle, OutcomeOK)))
}
