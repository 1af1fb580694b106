package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the endpoint's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	served   prometheus.Counter
	latency  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seltable_serve_requests_total",
			Help: "Records requests by envelope code",
		}, []string{"code"}),
		served: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seltable_serve_records_total",
			Help: "Records returned across all pages",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "seltable_serve_request_seconds",
			Help:    "Time to answer a records request",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.requests, m.served, m.latency)
	return m
}

func (m *Metrics) observe(env *Envelope, d time.Duration) {
	if m == nil || env == nil {
		return
	}
	m.requests.WithLabelValues(strconv.Itoa(env.Code)).Inc()
	if env.Data != nil {
		m.served.Add(float64(len(env.Data.List)))
	}
	m.latency.Observe(d.Seconds())
}
