// Package redis provides Redis-backed coordination for the engine. RunLock
// keeps a single orchestrator run per user across processes using SET NX PX
// with a token-checked release.
package redis
