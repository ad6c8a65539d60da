// Package metrics records Relay's internal statistics with OpenCensus and exports them to
// Prometheus, Datadog, or Stackdriver.
//
// Components record values through the package-level Counter, Timer, and Gauge variables. Nothing
// is exported until a Manager has been created, so recording is always safe.
package metrics
