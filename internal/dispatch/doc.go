// Package dispatch queues asynchronous agent runs. Requests travel through an
// in-memory channel, a Redis list or a RabbitMQ queue, and a Processor runs
// the orchestrator for each one and records the outcome as a RunRecord.
package dispatch
