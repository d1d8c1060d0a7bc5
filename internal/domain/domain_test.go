package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDirection(t *testing.T) {
	d, ok := ParseDirection(" credit ")
	assert.True(t, ok)
	assert.Equal(t, Credit, d)

	_, ok = ParseDirection("")
	assert.False(t, ok)
	_, ok = ParseDirection("REFUND")
	assert.False(t, ok)
}

func TestSmartSplitConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultSplit.Validate())
	assert.Error(t, SmartSplitConfig{TaxPct: 30, SavingsPct: 30, BufferPct: 30}.Validate())
	assert.Error(t, SmartSplitConfig{TaxPct: 110, SavingsPct: -10, BufferPct: 0}.Validate())
}

func TestCapacityWeeklyHours(t *testing.T) {
	assert.InDelta(t, 240.0/52*6, Capacity{BillableDaysPerYear: 240, BillableHoursPerDay: 6}.WeeklyHours(30), 1e-9)
	assert.Equal(t, 30.0, Capacity{BillableDaysPerYear: 240}.WeeklyHours(30))
}

func TestCalendarEventOverlaps(t *testing.T) {
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	event := CalendarEvent{Start: day.Add(8*time.Hour + 30*time.Minute), End: day.Add(10 * time.Hour)}

	assert.True(t, event.Overlaps(day.Add(9*time.Hour), day.Add(11*time.Hour)))
	assert.False(t, event.Overlaps(day.Add(10*time.Hour), day.Add(12*time.Hour)), "touching edges do not overlap")
}

func TestInvoiceStatusUnpaid(t *testing.T) {
	assert.True(t, InvoiceOverdue.Unpaid())
	assert.True(t, InvoiceStatus("pending").Unpaid())
	assert.False(t, InvoicePaid.Unpaid())
}
