// Package finance computes the deterministic money figures the agents rely
// on: burn rate, runway, health score, fiscal-year tax liability and the
// smart split of an incoming payment.
package finance
