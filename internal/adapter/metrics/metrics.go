package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"chainstack-provider/internal/adapter/fetch"
)

const namespace = "chainstack_gateway"

// Compile-time check
var _ fetch.Observer = (*Collector)(nil)

// Collector holds the gateway's Prometheus collectors. A nil *Collector is valid and records nothing.
type Collector struct {
	httpAttempts  *prometheus.CounterVec
	throttled     *prometheus.CounterVec
	probes        *prometheus.CounterVec
	probeLatency  *prometheus.HistogramVec
	headCacheHits *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		httpAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_http_attempts_total",
			Help:      "HTTP attempts made to upstream JSON-RPC endpoints, by host and status code.",
		}, []string{"host", "code"}),
		throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_throttled_total",
			Help:      "Upstream responses rejected with HTTP 429, by host.",
		}, []string{"host"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Endpoint probes, by network, protocol and result.",
		}, []string{"network", "protocol", "result"}),
		probeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_latency_seconds",
			Help:      "Latency of successful endpoint probes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"network", "protocol"}),
		headCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "head_cache_lookups_total",
			Help:      "Head block cache lookups, by network and outcome.",
		}, []string{"network", "outcome"}),
	}

	for _, col := range []prometheus.Collector{c.httpAttempts, c.throttled, c.probes, c.probeLatency, c.headCacheHits} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveAttempt implements fetch.Observer.
func (c *Collector) ObserveAttempt(host string, statusCode int) {
	if c == nil {
		return
	}
	c.httpAttempts.WithLabelValues(host, strconv.Itoa(statusCode)).Inc()
}

// ObserveThrottled implements fetch.Observer.
func (c *Collector) ObserveThrottled(host string) {
	if c == nil {
		return
	}
	c.throttled.WithLabelValues(host).Inc()
}

// ObserveProbe records a probe outcome.
func (c *Collector) ObserveProbe(network, protocol string, working bool, latency time.Duration) {
	if c == nil {
		return
	}
	result := "fail"
	if working {
		result = "ok"
		c.probeLatency.WithLabelValues(network, protocol).Observe(latency.Seconds())
	}
	c.probes.WithLabelValues(network, protocol, result).Inc()
}

// ObserveHeadLookup records whether a head lookup was served from cache.
func (c *Collector) ObserveHeadLookup(network string, hit bool) {
	if c == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	c.headCacheHits.WithLabelValues(network, outcome).Inc()
}
