package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction 表示交易的资金方向。
type Direction string

const (
	Credit Direction = "CREDIT"
	Debit  Direction = "DEBIT"
)

// ParseDirection 忽略大小写解析交易方向，无法识别时返回 false。
func ParseDirection(raw string) (Direction, bool) {
	switch Direction(strings.ToUpper(strings.TrimSpace(raw))) {
	case Credit:
		return Credit, true
	case Debit:
		return Debit, true
	default:
		return "", false
	}
}

// Valid 判断方向是否为受支持的取值。
func (d Direction) Valid() bool {
	return d == Credit || d == Debit
}

// Transaction 是银行流水中的一条记录。创建后只有 Category 与 Deductible 可被写入一次。
type Transaction struct {
	ID           string           `json:"id" yaml:"id"`
	UserID       string           `json:"user_id" yaml:"user_id"`
	Amount       decimal.Decimal  `json:"amount" yaml:"amount"`
	Direction    Direction        `json:"direction" yaml:"direction"`
	Narration    string           `json:"narration" yaml:"narration"`
	OccurredAt   time.Time        `json:"occurred_at" yaml:"occurred_at"`
	BalanceAfter *decimal.Decimal `json:"balance_after,omitempty" yaml:"balance_after,omitempty"`
	Category     *string          `json:"category,omitempty" yaml:"category,omitempty"`
	Deductible   *bool            `json:"deductible,omitempty" yaml:"deductible,omitempty"`
}

// Categorized 判断交易是否已经被分类。
func (t Transaction) Categorized() bool {
	return t.Category != nil && strings.TrimSpace(*t.Category) != ""
}

// InvoiceStatus 表示发票的付款状态。
type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "PENDING"
	InvoiceOverdue InvoiceStatus = "OVERDUE"
	InvoicePaid    InvoiceStatus = "PAID"
)

// Unpaid 判断状态是否意味着尚未付款。
func (s InvoiceStatus) Unpaid() bool {
	switch InvoiceStatus(strings.ToUpper(string(s))) {
	case InvoicePending, InvoiceOverdue:
		return true
	default:
		return false
	}
}

// NudgeStatus 表示催款草稿的审批状态。
type NudgeStatus string

const (
	NudgeWaitingApproval NudgeStatus = "waiting_approval"
	NudgeSent            NudgeStatus = "sent"
	NudgeDismissed       NudgeStatus = "dismissed"
)

// DraftNudge 是等待人工审批的催款消息。
type DraftNudge struct {
	Subject   string      `json:"subject" yaml:"subject"`
	Body      string      `json:"body" yaml:"body"`
	Status    NudgeStatus `json:"status" yaml:"status"`
	CreatedAt time.Time   `json:"created_at" yaml:"created_at"`
}

// Invoice 描述一张应收发票。
type Invoice struct {
	ID          string          `json:"id" yaml:"id"`
	ClientID    string          `json:"client_id" yaml:"client_id"`
	OwnerID     string          `json:"owner_id" yaml:"owner_id"`
	AmountDue   decimal.Decimal `json:"amount_due" yaml:"amount_due"`
	Currency    string          `json:"currency" yaml:"currency"`
	Status      InvoiceStatus   `json:"status" yaml:"status"`
	DaysOverdue int             `json:"days_overdue" yaml:"days_overdue"`
	DraftNudge  *DraftNudge     `json:"draft_nudge,omitempty" yaml:"draft_nudge,omitempty"`
}

// Priority 表示任务优先级。
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid 判断优先级是否为已知取值。
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task 是用户待办的工作项。
type Task struct {
	ID             string     `json:"id" yaml:"id"`
	UserID         string     `json:"user_id" yaml:"user_id"`
	Title          string     `json:"title" yaml:"title"`
	DueDate        *time.Time `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	EstimatedHours float64    `json:"estimated_hours" yaml:"estimated_hours"`
	Priority       Priority   `json:"priority" yaml:"priority"`
	Done           bool       `json:"done" yaml:"done"`
}

// EventType 区分日程事件的来源。
type EventType string

const (
	EventMeeting  EventType = "meeting"
	EventDeepWork EventType = "deep_work"
)

// CalendarEvent 是日历中的一个时间段，创建后不再修改。
type CalendarEvent struct {
	ID     string    `json:"id" yaml:"id"`
	UserID string    `json:"user_id" yaml:"user_id"`
	Start  time.Time `json:"start" yaml:"start"`
	End    time.Time `json:"end" yaml:"end"`
	Title  string    `json:"title" yaml:"title"`
	Type   EventType `json:"type" yaml:"type"`
}

// Overlaps 判断事件是否与 [start, end) 区间相交。
func (e CalendarEvent) Overlaps(start, end time.Time) bool {
	return e.Start.Before(end) && e.End.After(start)
}

// NotificationType 区分通知的处理方式。
type NotificationType string

const (
	NotificationActionRequired NotificationType = "action_required"
	NotificationSystem         NotificationType = "system"
)

// Notification 是追加写入的用户通知。
type Notification struct {
	ID              string           `json:"id"`
	RecipientID     string           `json:"recipient_id"`
	Type            NotificationType `json:"type"`
	Message         string           `json:"message"`
	Read            bool             `json:"read"`
	RelatedEntityID string           `json:"related_entity_id"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// JobPosting 是开放中的外包需求。
type JobPosting struct {
	ID             string          `json:"id" yaml:"id"`
	ClientID       string          `json:"client_id" yaml:"client_id"`
	Title          string          `json:"title" yaml:"title"`
	Category       string          `json:"category" yaml:"category"`
	Description    string          `json:"description" yaml:"description"`
	BudgetMin      decimal.Decimal `json:"budget_min" yaml:"budget_min"`
	BudgetMax      decimal.Decimal `json:"budget_max" yaml:"budget_max"`
	Skills         []string        `json:"skills" yaml:"skills"`
	EstimatedHours float64         `json:"estimated_hours" yaml:"estimated_hours"`
	Open           bool            `json:"open" yaml:"open"`
	PostedAt       time.Time       `json:"posted_at" yaml:"posted_at"`
}

// Capacity 描述用户可计费的工作时间。
type Capacity struct {
	BillableDaysPerYear float64 `json:"billable_days_per_year" yaml:"billable_days_per_year"`
	BillableHoursPerDay float64 `json:"billable_hours_per_day" yaml:"billable_hours_per_day"`
}

// WeeklyHours 根据年度可计费天数推导每周容量，配置不完整时返回 fallback。
func (c Capacity) WeeklyHours(fallback float64) float64 {
	if c.BillableDaysPerYear > 0 && c.BillableHoursPerDay > 0 {
		return c.BillableDaysPerYear / 52 * c.BillableHoursPerDay
	}
	return fallback
}

// FreelancerProfile 汇总各 Agent 需要的用户设置。
type FreelancerProfile struct {
	UserID          string            `json:"user_id" yaml:"user_id"`
	Name            string            `json:"name" yaml:"name"`
	Skills          []string          `json:"skills" yaml:"skills"`
	HourlyRate      decimal.Decimal   `json:"hourly_rate" yaml:"hourly_rate"`
	CheckingBalance decimal.Decimal   `json:"checking_balance" yaml:"checking_balance"`
	SmartSplit      *SmartSplitConfig `json:"smart_split,omitempty" yaml:"smart_split,omitempty"`
	Capacity        Capacity          `json:"capacity" yaml:"capacity"`
}

// Bid 是用户确认后提交的投标。
type Bid struct {
	ID           string          `json:"id"`
	JobID        string          `json:"job_id"`
	FreelancerID string          `json:"freelancer_id"`
	Amount       decimal.Decimal `json:"amount"`
	Proposal     string          `json:"proposal"`
	Status       string          `json:"status"`
	SubmittedAt  time.Time       `json:"submitted_at"`
}

// SmartSplitConfig 描述入账资金在税费、储蓄与可支配缓冲之间的分配比例。
type SmartSplitConfig struct {
	TaxPct     int64 `json:"tax_pct" yaml:"tax_pct"`
	SavingsPct int64 `json:"savings_pct" yaml:"savings_pct"`
	BufferPct  int64 `json:"buffer_pct" yaml:"buffer_pct"`
}

// DefaultSplit 是未配置个人比例时使用的分配方案。
var DefaultSplit = SmartSplitConfig{TaxPct: 30, SavingsPct: 20, BufferPct: 50}

// Validate 校验三个比例均非负且总和为 100。
func (c SmartSplitConfig) Validate() error {
	if c.TaxPct < 0 || c.SavingsPct < 0 || c.BufferPct < 0 {
		return fmt.Errorf("split percentages must be non-negative: %+v", c)
	}
	if sum := c.TaxPct + c.SavingsPct + c.BufferPct; sum != 100 {
		return fmt.Errorf("split percentages must sum to 100, got %d", sum)
	}
	return nil
}

// RunStatus 表示一次编排运行的最终状态。
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// RunRecord 记录一次异步编排运行的摘要。
type RunRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Status      RunStatus `json:"status"`
	ActionCount int       `json:"action_count"`
	Logs        []string  `json:"logs"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}
