// Package metrics registers the engine's Prometheus collectors and exposes
// them over HTTP.
package metrics
