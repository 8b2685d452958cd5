// Package tracing is a thin OpenTelemetry wrapper.  Engine operations open a
// span per mutating call (submit, decide, cancel) carrying the workflow id,
// stage order and outcome as attributes; instrumentation lives in its own
// package so applications that do not export traces pay nothing beyond a
// no-op provider.
package tracing
