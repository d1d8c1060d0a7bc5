package store

import (
	"context"
	"time"

	"Freelance-Autopilot/internal/domain"
)

// Reader 汇总编排与分析需要的只读查询。
type Reader interface {
	Ping(ctx context.Context) error
	// GetProfile 在用户不存在时返回 CodeNotFound。
	GetProfile(ctx context.Context, userID string) (*domain.FreelancerProfile, error)
	// FindOpenJobs 按发布时间倒序返回最多 limit 个开放职位。
	FindOpenJobs(ctx context.Context, limit int) ([]domain.JobPosting, error)
	// FindRecentTransactions 返回 occurred_at >= since 的交易，按时间升序。
	FindRecentTransactions(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error)
	// FindLatestTransaction 在没有交易时返回 CodeNotFound。
	FindLatestTransaction(ctx context.Context, userID string) (*domain.Transaction, error)
	// FindOverdueInvoices 返回 ownerID 名下未付且已逾期的发票。
	FindOverdueInvoices(ctx context.Context, ownerID string) ([]domain.Invoice, error)
	// FindUpcomingTasks 返回截止时间在 [from, to] 内的未完成任务，按截止时间升序。
	FindUpcomingTasks(ctx context.Context, userID string, from, to time.Time) ([]domain.Task, error)
	// FindCalendarEvents 返回与 [from, to) 相交的事件，按开始时间升序。
	FindCalendarEvents(ctx context.Context, userID string, from, to time.Time) ([]domain.CalendarEvent, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	ListRuns(ctx context.Context, userID string, limit int) ([]domain.RunRecord, error)
}

// Writer 汇总 Agent 与执行器的写操作。
type Writer interface {
	// UpdateTransactionCategory 仅当交易尚未分类时写入，返回是否写入。
	UpdateTransactionCategory(ctx context.Context, txnID, category string, deductible bool) (bool, error)
	// SetInvoiceDraftNudge 仅当发票尚无草稿时写入，返回是否写入。
	SetInvoiceDraftNudge(ctx context.Context, invoiceID string, draft domain.DraftNudge) (bool, error)
	InsertNotification(ctx context.Context, n domain.Notification) error
	InsertCalendarEvent(ctx context.Context, event domain.CalendarEvent) error
	// UpdateTaskPriority 在任务不属于该用户时返回 CodeNotFound。
	UpdateTaskPriority(ctx context.Context, userID, taskID string, priority domain.Priority) error
	InsertBid(ctx context.Context, bid domain.Bid) error
	InsertRun(ctx context.Context, run domain.RunRecord) error
}

// Store 是完整的存储能力。
type Store interface {
	Reader
	Writer
	Close() error
}

// Seeder 用于导入初始数据。
type Seeder interface {
	UpsertProfile(ctx context.Context, profile domain.FreelancerProfile) error
	InsertTransaction(ctx context.Context, txn domain.Transaction) error
	InsertInvoice(ctx context.Context, inv domain.Invoice) error
	InsertTask(ctx context.Context, task domain.Task) error
	InsertJob(ctx context.Context, job domain.JobPosting) error
	// SeedCalendarEvent 在事件 ID 已存在时不做任何操作。
	SeedCalendarEvent(ctx context.Context, event domain.CalendarEvent) error
}

// 默认的查询上限。
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ClampLimit 将 limit 规范到 [1, MaxListLimit]，非正数使用默认值。
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
