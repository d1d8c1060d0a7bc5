package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Freelance-Autopilot/internal/domain"
	xerrors "Freelance-Autopilot/internal/errors"
)

var base = time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

func TestMemoryStoreNotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.GetProfile(ctx, "nobody")
	assert.True(t, xerrors.HasCode(err, xerrors.CodeNotFound))
	_, err = s.FindLatestTransaction(ctx, "nobody")
	assert.True(t, xerrors.HasCode(err, xerrors.CodeNotFound))
	err = s.UpdateTaskPriority(ctx, "u1", "missing", domain.PriorityHigh)
	assert.True(t, xerrors.HasCode(err, xerrors.CodeNotFound))
}

func TestMemoryStoreTransactions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for i, age := range []int{100, 10, 1} {
		require.NoError(t, s.InsertTransaction(ctx, domain.Transaction{
			ID: string(rune('a' + i)), UserID: "u1", Amount: decimal.NewFromInt(1),
			Direction: domain.Debit, OccurredAt: base.AddDate(0, 0, -age),
		}))
	}
	require.NoError(t, s.InsertTransaction(ctx, domain.Transaction{ID: "z", UserID: "u2", OccurredAt: base}))

	recent, err := s.FindRecentTransactions(ctx, "u1", base.AddDate(0, 0, -90))
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].ID)

	latest, err := s.FindLatestTransaction(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "c", latest.ID)
}

func TestCategoryUpdateIsConditional(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.InsertTransaction(ctx, domain.Transaction{ID: "t1", UserID: "u1", Direction: domain.Debit}))

	applied, err := s.UpdateTransactionCategory(ctx, "t1", "Travel", true)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.UpdateTransactionCategory(ctx, "t1", "General", false)
	require.NoError(t, err)
	assert.False(t, applied)

	txn, _ := s.Transaction("t1")
	assert.Equal(t, "Travel", *txn.Category)
	assert.True(t, *txn.Deductible)
}

func TestDraftNudgeSingleWriterUnderContention(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.InsertInvoice(ctx, domain.Invoice{ID: "i1", OwnerID: "u1", Status: domain.InvoiceOverdue, DaysOverdue: 3}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.SetInvoiceDraftNudge(ctx, "i1", domain.DraftNudge{Subject: "s", Body: string(rune('a' + i))})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	invoices, err := s.FindOverdueInvoices(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.NotNil(t, invoices[0].DraftNudge)
}

func TestOverdueInvoicesFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, inv := range []domain.Invoice{
		{ID: "a", OwnerID: "u1", Status: domain.InvoiceOverdue, DaysOverdue: 5},
		{ID: "b", OwnerID: "u1", Status: domain.InvoicePaid, DaysOverdue: 5},
		{ID: "c", OwnerID: "u1", Status: domain.InvoicePending, DaysOverdue: 0},
		{ID: "d", OwnerID: "u2", Status: domain.InvoiceOverdue, DaysOverdue: 5},
	} {
		require.NoError(t, s.InsertInvoice(ctx, inv))
	}
	got, err := s.FindOverdueInvoices(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestOpenJobsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		require.NoError(t, s.InsertJob(ctx, domain.JobPosting{
			ID: string(rune('a' + i)), Open: i != 7, PostedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	jobs, err := s.FindOpenJobs(ctx, 5)
	require.NoError(t, err)
	require.Len(t, jobs, 5)
	assert.Equal(t, "g", jobs[0].ID)
	assert.Equal(t, "c", jobs[4].ID)
}

func TestUpcomingTasksAndEvents(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	due := func(h int) *time.Time { d := base.Add(time.Duration(h) * time.Hour); return &d }
	require.NoError(t, s.InsertTask(ctx, domain.Task{ID: "late", UserID: "u1", DueDate: due(48)}))
	require.NoError(t, s.InsertTask(ctx, domain.Task{ID: "soon", UserID: "u1", DueDate: due(2)}))
	require.NoError(t, s.InsertTask(ctx, domain.Task{ID: "done", UserID: "u1", DueDate: due(3), Done: true}))
	require.NoError(t, s.InsertTask(ctx, domain.Task{ID: "far", UserID: "u1", DueDate: due(24 * 9)}))

	tasks, err := s.FindUpcomingTasks(ctx, "u1", base, base.Add(7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "soon", tasks[0].ID)

	require.NoError(t, s.UpdateTaskPriority(ctx, "u1", "soon", domain.PriorityHigh))
	got, _ := s.Task("soon")
	assert.Equal(t, domain.PriorityHigh, got.Priority)
	assert.Error(t, s.UpdateTaskPriority(ctx, "u2", "soon", domain.PriorityLow))

	require.NoError(t, s.InsertCalendarEvent(ctx, domain.CalendarEvent{ID: "e1", UserID: "u1", Start: base.Add(-time.Hour), End: base.Add(time.Hour)}))
	events, err := s.FindCalendarEvents(ctx, "u1", base, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRunsAndNotificationsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.InsertRun(ctx, domain.RunRecord{ID: "r1", UserID: "u1"}))
	require.NoError(t, s.InsertRun(ctx, domain.RunRecord{ID: "r2", UserID: "u1"}))
	require.NoError(t, s.InsertNotification(ctx, domain.Notification{ID: "n1", RecipientID: "u1"}))

	runs, err := s.ListRuns(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "r2", runs[0].ID)

	notes, err := s.ListNotifications(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}
