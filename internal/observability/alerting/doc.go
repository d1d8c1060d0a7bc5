// Package alerting fans agent failure events out to notifiers such as the
// application log and outbound webhooks.
package alerting
