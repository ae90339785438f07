// Package prometheus exposes Service metrics through client_golang.
//
// [NewCollector] returns a prometheus.Collector that callers register on their own
// registry; [Collector.Handler] serves it standalone. Counters are named
// utsav_*_total and the backend latency histogram is utsav_backend_latency_seconds.
// Nothing is registered globally.
package prometheus
