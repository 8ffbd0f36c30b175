// Package server provides the monitoring HTTP API. It exposes health,
// status, configuration, device enumeration, and Prometheus metrics
// endpoints; it never controls the recording session, which is driven by
// the process lifecycle.
package server
