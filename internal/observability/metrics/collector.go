package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsDesc = prometheus.NewDesc(
		"motorsport_http_requests_total",
		"Total HTTP requests processed.",
		[]string{"method", "path", "status"}, nil,
	)
	durationSumDesc = prometheus.NewDesc(
		"motorsport_http_request_duration_ms_sum",
		"Total request duration in milliseconds.",
		[]string{"method", "path"}, nil,
	)
	durationCountDesc = prometheus.NewDesc(
		"motorsport_http_request_duration_ms_count",
		"Total number of timed requests.",
		[]string{"method", "path"}, nil,
	)
	inflightDesc = prometheus.NewDesc(
		"motorsport_http_inflight_requests",
		"Current in-flight HTTP requests.",
		nil, nil,
	)
	startTimeDesc = prometheus.NewDesc(
		"motorsport_process_start_time_seconds",
		"Process start time in unix epoch seconds.",
		nil, nil,
	)
)

// Describe implements prometheus.Collector.
func (r *Recorder) Describe(ch chan<- *prometheus.Desc) {
	ch <- requestsDesc
	ch <- durationSumDesc
	ch <- durationCountDesc
	ch <- inflightDesc
	ch <- startTimeDesc
}

// Collect implements prometheus.Collector using the same snapshot as Write.
func (r *Recorder) Collect(ch chan<- prometheus.Metric) {
	snap := r.snapshot()
	for _, s := range snap.requests {
		ch <- prometheus.MustNewConstMetric(requestsDesc, prometheus.CounterValue, float64(s.count),
			s.label.method, s.label.path, s.label.status)
	}
	for _, s := range snap.durations {
		ch <- prometheus.MustNewConstMetric(durationSumDesc, prometheus.CounterValue, s.sum,
			s.label.method, s.label.path)
		ch <- prometheus.MustNewConstMetric(durationCountDesc, prometheus.CounterValue, float64(s.count),
			s.label.method, s.label.path)
	}
	ch <- prometheus.MustNewConstMetric(inflightDesc, prometheus.GaugeValue, float64(snap.inflight))
	ch <- prometheus.MustNewConstMetric(startTimeDesc, prometheus.GaugeValue, snap.startUnixSecs)
}

// Registry bundles a Recorder with a Prometheus registry that also carries the
// Go runtime and process collectors.
type Registry struct {
	Recorder   *Recorder
	Prometheus *prometheus.Registry
}

// NewRegistry creates a Recorder, installs it as the default and registers it
// next to the runtime collectors.
func NewRegistry() *Registry {
	recorder := New()
	SetDefault(recorder)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		recorder,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{Recorder: recorder, Prometheus: reg}
}

// RuntimeHandler serves the full registry through promhttp.
func (r *Registry) RuntimeHandler() http.Handler {
	return promhttp.HandlerFor(r.Prometheus, promhttp.HandlerOpts{})
}
