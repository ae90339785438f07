// Package otel binds Service metrics to OpenTelemetry observable instruments.
//
// [NewExporter] registers an Int64ObservableCounter per counter and an
// Int64ObservableGauge per latency bucket. One callback reads
// [utsavAuth.Service.MetricsSnapshot] each collection cycle. Callers own the
// MeterProvider.
package otel
