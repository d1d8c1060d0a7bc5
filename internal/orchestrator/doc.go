// Package orchestrator runs the registered agent units for one user in
// parallel, isolates their failures, and aggregates the produced actions and
// run log. It also executes the actions a human approves afterwards.
package orchestrator
