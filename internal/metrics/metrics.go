// Package metrics collects client-side counters with Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the HTTP binding, query cache and autosave controller report to.
type Recorder interface {
	RecordRequest(method string, status int, d time.Duration)
	RecordCacheFetch(key string, outcome string)
	RecordCacheJoin(key string)
	RecordRollback(key string)
	RecordAutosave(outcome string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRequest(string, int, time.Duration) {}
func (Nop) RecordCacheFetch(string, string)          {}
func (Nop) RecordCacheJoin(string)                   {}
func (Nop) RecordRollback(string)                    {}
func (Nop) RecordAutosave(string)                    {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}

type Collector struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	fetches   *prometheus.CounterVec
	joins     *prometheus.CounterVec
	rollbacks *prometheus.CounterVec
	autosaves *prometheus.CounterVec
	gatherer  prometheus.Gatherer
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg *prometheus.Registry) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flow_http_requests_total",
			Help: "Outbound API requests by method and status code (0 = transport error).",
		}, []string{"method", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flow_http_request_duration_seconds",
			Help:    "Outbound API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flow_cache_fetches_total",
			Help: "Network fetches issued by the query cache by outcome.",
		}, []string{"key", "outcome"}),
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flow_cache_joins_total",
			Help: "Fetch calls that attached to an in-flight request instead of issuing one.",
		}, []string{"key"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flow_cache_rollbacks_total",
			Help: "Optimistic mutations rolled back after a failed request.",
		}, []string{"key"}),
		autosaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flow_autosave_total",
			Help: "Autosave persist calls by outcome.",
		}, []string{"outcome"}),
		gatherer: reg,
	}
	reg.MustRegister(c.requests, c.latency, c.fetches, c.joins, c.rollbacks, c.autosaves)
	return c
}

func (c *Collector) RecordRequest(method string, status int, d time.Duration) {
	c.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method).Observe(d.Seconds())
}

func (c *Collector) RecordCacheFetch(key string, outcome string) {
	c.fetches.WithLabelValues(key, outcome).Inc()
}

func (c *Collector) RecordCacheJoin(key string) {
	c.joins.WithLabelValues(key).Inc()
}

func (c *Collector) RecordRollback(key string) {
	c.rollbacks.WithLabelValues(key).Inc()
}

func (c *Collector) RecordAutosave(outcome string) {
	c.autosaves.WithLabelValues(outcome).Inc()
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
