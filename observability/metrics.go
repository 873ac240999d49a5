package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bible-memorize/server/models"
)

const namespace = "biblememo"

// Metrics owns a private registry so tests can build as many as they like.
// It implements services.Observer.
type Metrics struct {
	reg *prometheus.Registry

	approvals   prometheus.Counter
	rejected    prometheus.Counter
	checkins    *prometheus.CounterVec
	deductions  prometheus.Counter
	pruned      prometheus.Counter
	httpReqs    *prometheus.CounterVec
	httpLatency *prometheus.HistogramVec
	dbPing      prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		approvals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "approvals_total", Help: "Newly created approvals",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rejected_recordings_total", Help: "Recordings deleted by reject",
		}),
		checkins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "checkins_total", Help: "Newly created check-ins",
		}, []string{"role"}),
		deductions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "deductions_total", Help: "Missing recording deductions",
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "retention_deleted_total", Help: "Recordings removed by retention after check-in",
		}),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		dbPing: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "db_ping_seconds", Help: "DB ping latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.reg.MustRegister(
		m.approvals, m.rejected, m.checkins, m.deductions, m.pruned,
		m.httpReqs, m.httpLatency, m.dbPing,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Approved()      { m.approvals.Inc() }
func (m *Metrics) Rejected(n int) { m.rejected.Add(float64(n)) }
func (m *Metrics) Deducted()      { m.deductions.Inc() }
func (m *Metrics) Pruned(n int)   { m.pruned.Add(float64(n)) }
func (m *Metrics) CheckedIn(role models.Role) {
	m.checkins.WithLabelValues(string(role)).Inc()
}

// ObserveRequest records one finished HTTP request. route is the gin route
// template, never the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	m.httpReqs.WithLabelValues(method, route, status).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ObserveDBPing(d time.Duration) { m.dbPing.Observe(d.Seconds()) }
