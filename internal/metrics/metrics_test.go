package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersWithoutConflict(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { New(reg) })

	// 同一注册表重复注册应当 panic
	assert.Panics(t, func() { New(reg) })
}

func TestObserveClassification(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveClassification("http", "ok", 120*time.Millisecond)
	m.ObserveClassification("http", "ok", 80*time.Millisecond)
	m.ObserveClassification("http", "error", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ClassifyTotal.WithLabelValues("http", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClassifyTotal.WithLabelValues("http", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ClassifyDuration))
}

func TestObserveAnalysis(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveAnalysis(nil, []string{"positive", "negative", "positive"}, 2)
	m.ObserveAnalysis(errors.New("boom"), nil, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SentencesTotal.WithLabelValues("positive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SentencesTotal.WithLabelValues("negative")))
}

func TestMiddleware(t *testing.T) {
	m := New(prometheus.NewRegistry())
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	e.GET("/metrics", func(c echo.Context) error { return c.String(http.StatusOK, "") })

	for _, path := range []string{"/api/ping", "/api/ping", "/metrics"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/ping", "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
}
