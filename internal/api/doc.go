// Package api exposes the HTTP surface of the autopilot: synchronous and
// asynchronous agent runs, action execution, run history, financial stats
// and the Prometheus scrape endpoint.
package api
