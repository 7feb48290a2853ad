// Package metrics provides the observability hooks for pipeline runs.
//
// Components receive a Recorder through dependency injection. NoopRecorder is
// the default so nothing needs a nil check; PrometheusRecorder is swapped in
// when the dev server exposes /metrics:
//
//	reg := prometheus.NewRegistry()
//	recorder := metrics.NewPrometheusRecorder(reg)
//	mux.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics
