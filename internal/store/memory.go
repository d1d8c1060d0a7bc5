package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"Freelance-Autopilot/internal/domain"
	xerrors "Freelance-Autopilot/internal/errors"
)

// MemoryStore 在进程内保存全部数据，条件更新在同一把锁内完成。
type MemoryStore struct {
	mu            sync.RWMutex
	profiles      map[string]domain.FreelancerProfile
	transactions  map[string]domain.Transaction
	invoices      map[string]domain.Invoice
	tasks         map[string]domain.Task
	events        []domain.CalendarEvent
	jobs          map[string]domain.JobPosting
	notifications []domain.Notification
	bids          []domain.Bid
	runs          []domain.RunRecord
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Seeder = (*MemoryStore)(nil)
)

// NewMemoryStore 创建空的内存存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:     make(map[string]domain.FreelancerProfile),
		transactions: make(map[string]domain.Transaction),
		invoices:     make(map[string]domain.Invoice),
		tasks:        make(map[string]domain.Task),
		jobs:         make(map[string]domain.JobPosting),
	}
}

// Ping 实现 Reader 接口。
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close 实现 Store 接口。
func (m *MemoryStore) Close() error { return nil }

// GetProfile 实现 Reader 接口。
func (m *MemoryStore) GetProfile(_ context.Context, userID string) (*domain.FreelancerProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	profile, ok := m.profiles[userID]
	if !ok {
		return nil, xerrors.New(xerrors.CodeNotFound, "用户资料不存在", xerrors.WithMetadata("user_id", userID))
	}
	profile.Skills = append([]string(nil), profile.Skills...)
	return &profile, nil
}

// FindOpenJobs 实现 Reader 接口。
func (m *MemoryStore) FindOpenJobs(_ context.Context, limit int) ([]domain.JobPosting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.JobPosting
	for _, job := range m.jobs {
		if job.Open {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PostedAt.Equal(out[j].PostedAt) {
			return out[i].PostedAt.After(out[j].PostedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit = ClampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FindRecentTransactions 实现 Reader 接口。
func (m *MemoryStore) FindRecentTransactions(_ context.Context, userID string, since time.Time) ([]domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Transaction
	for _, txn := range m.transactions {
		if txn.UserID == userID && !txn.OccurredAt.Before(since) {
			out = append(out, txn)
		}
	}
	sortTransactions(out)
	return out, nil
}

// FindLatestTransaction 实现 Reader 接口。
func (m *MemoryStore) FindLatestTransaction(_ context.Context, userID string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.Transaction
	for _, txn := range m.transactions {
		if txn.UserID != userID {
			continue
		}
		if latest == nil || txn.OccurredAt.After(latest.OccurredAt) ||
			(txn.OccurredAt.Equal(latest.OccurredAt) && txn.ID > latest.ID) {
			t := txn
			latest = &t
		}
	}
	if latest == nil {
		return nil, xerrors.New(xerrors.CodeNotFound, "没有交易记录", xerrors.WithMetadata("user_id", userID))
	}
	return latest, nil
}

// FindOverdueInvoices 实现 Reader 接口。
func (m *MemoryStore) FindOverdueInvoices(_ context.Context, ownerID string) ([]domain.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Invoice
	for _, inv := range m.invoices {
		if inv.OwnerID == ownerID && inv.Status.Unpaid() && inv.DaysOverdue > 0 {
			out = append(out, cloneInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindUpcomingTasks 实现 Reader 接口。
func (m *MemoryStore) FindUpcomingTasks(_ context.Context, userID string, from, to time.Time) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Task
	for _, t := range m.tasks {
		if t.UserID != userID || t.Done || t.DueDate == nil {
			continue
		}
		if t.DueDate.Before(from) || t.DueDate.After(to) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(*out[j].DueDate) {
			return out[i].DueDate.Before(*out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// FindCalendarEvents 实现 Reader 接口。
func (m *MemoryStore) FindCalendarEvents(_ context.Context, userID string, from, to time.Time) ([]domain.CalendarEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.CalendarEvent
	for _, e := range m.events {
		if e.UserID == userID && e.Overlaps(from, to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// ListNotifications 按创建时间倒序返回通知。
func (m *MemoryStore) ListNotifications(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Notification
	for i := len(m.notifications) - 1; i >= 0; i-- {
		if n := m.notifications[i]; n.RecipientID == userID {
			out = append(out, n)
		}
	}
	if limit = ClampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListRuns 按开始时间倒序返回运行记录。
func (m *MemoryStore) ListRuns(_ context.Context, userID string, limit int) ([]domain.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.RunRecord
	for i := len(m.runs) - 1; i >= 0; i-- {
		if r := m.runs[i]; r.UserID == userID {
			r.Logs = append([]string(nil), r.Logs...)
			out = append(out, r)
		}
	}
	if limit = ClampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateTransactionCategory 实现 Writer 接口。
func (m *MemoryStore) UpdateTransactionCategory(_ context.Context, txnID, category string, deductible bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.transactions[txnID]
	if !ok {
		return false, xerrors.New(xerrors.CodeNotFound, "交易不存在", xerrors.WithMetadata("transaction_id", txnID))
	}
	if txn.Categorized() {
		return false, nil
	}
	txn.Category = &category
	txn.Deductible = &deductible
	m.transactions[txnID] = txn
	return true, nil
}

// SetInvoiceDraftNudge 实现 Writer 接口。
func (m *MemoryStore) SetInvoiceDraftNudge(_ context.Context, invoiceID string, draft domain.DraftNudge) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[invoiceID]
	if !ok {
		return false, xerrors.New(xerrors.CodeNotFound, "发票不存在", xerrors.WithMetadata("invoice_id", invoiceID))
	}
	if inv.DraftNudge != nil {
		return false, nil
	}
	inv.DraftNudge = &draft
	m.invoices[invoiceID] = inv
	return true, nil
}

// InsertNotification 实现 Writer 接口。
func (m *MemoryStore) InsertNotification(_ context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
	return nil
}

// InsertCalendarEvent 实现 Writer 接口。
func (m *MemoryStore) InsertCalendarEvent(_ context.Context, event domain.CalendarEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// SeedCalendarEvent 实现 Seeder 接口。
func (m *MemoryStore) SeedCalendarEvent(_ context.Context, event domain.CalendarEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == event.ID {
			return nil
		}
	}
	m.events = append(m.events, event)
	return nil
}

// UpdateTaskPriority 实现 Writer 接口。
func (m *MemoryStore) UpdateTaskPriority(_ context.Context, userID, taskID string, priority domain.Priority) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok || t.UserID != userID {
		return xerrors.New(xerrors.CodeNotFound, "任务不存在", xerrors.WithMetadata("task_id", taskID))
	}
	t.Priority = priority
	m.tasks[taskID] = t
	return nil
}

// InsertBid 实现 Writer 接口。
func (m *MemoryStore) InsertBid(_ context.Context, bid domain.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bids = append(m.bids, bid)
	return nil
}

// InsertRun 实现 Writer 接口。
func (m *MemoryStore) InsertRun(_ context.Context, run domain.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.Logs = append([]string(nil), run.Logs...)
	m.runs = append(m.runs, run)
	return nil
}

// UpsertProfile 实现 Seeder 接口。
func (m *MemoryStore) UpsertProfile(_ context.Context, profile domain.FreelancerProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.UserID] = profile
	return nil
}

// InsertTransaction 实现 Seeder 接口。
func (m *MemoryStore) InsertTransaction(_ context.Context, txn domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[txn.ID] = txn
	return nil
}

// InsertInvoice 实现 Seeder 接口。
func (m *MemoryStore) InsertInvoice(_ context.Context, inv domain.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

// InsertTask 实现 Seeder 接口。
func (m *MemoryStore) InsertTask(_ context.Context, task domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
	return nil
}

// InsertJob 实现 Seeder 接口。
func (m *MemoryStore) InsertJob(_ context.Context, job domain.JobPosting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

// Transaction 返回交易的副本，主要用于测试与调试。
func (m *MemoryStore) Transaction(id string) (domain.Transaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	txn, ok := m.transactions[id]
	return txn, ok
}

// Invoice 返回发票的副本。
func (m *MemoryStore) Invoice(id string) (domain.Invoice, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invoices[id]
	return cloneInvoice(inv), ok
}

// Task 返回任务的副本。
func (m *MemoryStore) Task(id string) (domain.Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	return t, ok
}

// Bids 返回已提交的投标。
func (m *MemoryStore) Bids() []domain.Bid {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Bid(nil), m.bids...)
}

func cloneInvoice(inv domain.Invoice) domain.Invoice {
	if inv.DraftNudge != nil {
		draft := *inv.DraftNudge
		inv.DraftNudge = &draft
	}
	return inv
}

func sortTransactions(txns []domain.Transaction) {
	sort.Slice(txns, func(i, j int) bool {
		if !txns[i].OccurredAt.Equal(txns[j].OccurredAt) {
			return txns[i].OccurredAt.Before(txns[j].OccurredAt)
		}
		return txns[i].ID < txns[j].ID
	})
}
