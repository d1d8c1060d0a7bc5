// Package domain holds the records the agents read and write: transactions,
// invoices, tasks, calendar events, notifications, job postings and the
// freelancer profile. Records are plain values; persistence lives behind the
// store package.
package domain
