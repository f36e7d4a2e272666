package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/penguinmails/tenantcore/internal/common/config"
)

// Metrics holds the Prometheus registry and the collectors for the
// HTTP surface and the access gates.
type Metrics struct {
	registry   *prometheus.Registry
	namespace  string
	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	httpInfl   *prometheus.GaugeVec
	gateCnt    *prometheus.CounterVec
	rateCnt    *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	gateCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "access_gate_decisions_total"}, []string{"gate", "decision"})
	rateCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "rate_limit_rejections_total"}, []string{"route"})
	r.MustRegister(gateCnt, rateCnt)

	return &Metrics{
		registry:   r,
		namespace:  ns,
		httpReqCnt: httpReqCnt,
		httpDur:    httpDur,
		httpInfl:   httpInfl,
		gateCnt:    gateCnt,
		rateCnt:    rateCnt,
	}
}

// GateDecision counts one access-gate verdict. Decision is one of
// allowed, denied, staff_bypass or unavailable.
func (m *Metrics) GateDecision(gate, decision string) {
	m.gateCnt.WithLabelValues(gate, decision).Inc()
}

// RateLimited counts one rejected request on a route.
func (m *Metrics) RateLimited(route string) {
	m.rateCnt.WithLabelValues(route).Inc()
}

// Middleware records request counts, latency and inflight gauges.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

// Handler serves the exposition endpoint from this registry only.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
