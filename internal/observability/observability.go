// Package observability provides structured logging and Prometheus metrics
// for sbomscan.
//
// Key features:
// - Structured JSON logging with UTC timestamps and configurable log levels
// - Prometheus metrics for HTTP attempts, status polls, run outcomes and findings
// - Text exposition export for node_exporter textfile collectors
package observability
