// Package metrics provides an observability framework for stashhook API traffic.
//
// The package implements the Null Object pattern: components receive a
// Recorder through dependency injection and default to NoopRecorder, so no
// call site needs nil checks and metrics impose zero overhead when disabled.
//
// To enable metrics, swap NoopRecorder for the Prometheus implementation:
//
//	recorder := metrics.NewPrometheusRecorder(registry)
//	executor := bitbucket.NewHTTPRequestExecutor(bitbucket.WithRecorder(recorder))
package metrics
