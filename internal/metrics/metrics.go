// Package metrics 定义 Prometheus 指标：分类耗时与结果、分析次数、HTTP 请求。
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sentiscope"

// NewRegistry 创建带 Go 运行时和进程指标的注册表。
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler 返回暴露指标的 http.Handler。
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Metrics 汇总业务指标。
type Metrics struct {
	ClassifyDuration *prometheus.HistogramVec
	ClassifyTotal    *prometheus.CounterVec
	AnalysesTotal    *prometheus.CounterVec
	SentencesTotal   *prometheus.CounterVec
	Transitions      prometheus.Histogram

	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	InFlight        prometheus.Gauge
}

// New 创建指标并注册到 reg。
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ClassifyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "duration_seconds",
			Help:      "Duration of single sentence classification calls.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"classifier"}),
		ClassifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "calls_total",
			Help:      "Total classification calls by classifier and outcome.",
		}, []string{"classifier", "outcome"}),
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "analyses_total",
			Help:      "Total analyses by status.",
		}, []string{"status"}),
		SentencesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "sentences_total",
			Help:      "Total classified sentences by label.",
		}, []string{"label"}),
		Transitions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "transitions",
			Help:      "Sentiment transitions per analysis.",
			Buckets:   prometheus.LinearBuckets(0, 2, 10),
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status_code"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being processed.",
		}),
	}

	reg.MustRegister(
		m.ClassifyDuration, m.ClassifyTotal,
		m.AnalysesTotal, m.SentencesTotal, m.Transitions,
		m.RequestDuration, m.RequestsTotal, m.InFlight,
	)
	return m
}

// ObserveClassification 记录一次分类调用。
func (m *Metrics) ObserveClassification(classifier, outcome string, elapsed time.Duration) {
	m.ClassifyDuration.WithLabelValues(classifier).Observe(elapsed.Seconds())
	m.ClassifyTotal.WithLabelValues(classifier, outcome).Inc()
}

// ObserveAnalysis 记录一次分析的结果。labels 为每句的标签，失败时为 nil。
func (m *Metrics) ObserveAnalysis(err error, labels []string, transitions int) {
	if err != nil {
		m.AnalysesTotal.WithLabelValues("error").Inc()
		return
	}
	m.AnalysesTotal.WithLabelValues("ok").Inc()
	for _, l := range labels {
		m.SentencesTotal.WithLabelValues(l).Inc()
	}
	m.Transitions.Observe(float64(transitions))
}

// Middleware 返回记录 HTTP 指标的 echo 中间件，跳过 /metrics 和 /healthz。
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Path()
			if path == "/metrics" || strings.HasPrefix(path, "/healthz") {
				return next(c)
			}

			m.InFlight.Inc()
			defer m.InFlight.Dec()

			timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
				status := strconv.Itoa(c.Response().Status)
				m.RequestDuration.WithLabelValues(c.Request().Method, path, status).Observe(v)
				m.RequestsTotal.WithLabelValues(c.Request().Method, path, status).Inc()
			}))

			err := next(c)
			timer.ObserveDuration()
			return err
		}
	}
}
