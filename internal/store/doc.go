// Package store declares the persistence contract consumed by the agents and
// the orchestrator, an in-memory implementation used for local runs and tests,
// and YAML fixtures for seeding either backend.
package store
