// Package llm wraps the external text-generation collaborator. Callers never
// depend on it for correctness: every call site supplies a deterministic
// fallback, and Guard enforces a bounded timeout with a single attempt.
package llm
