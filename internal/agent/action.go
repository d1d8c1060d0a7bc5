package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"Freelance-Autopilot/internal/domain"
)

// Kind 是动作在对外载荷中的类型标识。
type Kind string

const (
	KindDraftBid            Kind = "create_bid"
	KindLowBalanceAlert     Kind = "low_balance_alert"
	KindSmartSplit          Kind = "smart_split"
	KindInvoiceNudge        Kind = "invoice_nudge"
	KindExpenseCategorized  Kind = "categorize_expense"
	KindBlockNewJobs        Kind = "block_new_jobs"
	KindCreateDeepWorkBlock Kind = "create_deep_work_block"
	KindReprioritize        Kind = "suggest_reprioritize"
)

// Action 是 Agent 产出的动作，只能是本包定义的几种类型之一。
type Action interface {
	Kind() Kind
	sealed()
}

// DraftBid 是为匹配职位起草的投标，执行前不会持久化。
type DraftBid struct {
	JobID    string          `json:"job_id"`
	JobTitle string          `json:"job_title"`
	Amount   decimal.Decimal `json:"amount"`
	Proposal string          `json:"proposal"`
}

// LowBalanceAlert 表示支出后余额低于阈值。
type LowBalanceAlert struct {
	TransactionID    string          `json:"transaction_id"`
	Balance          decimal.Decimal `json:"balance"`
	Threshold        decimal.Decimal `json:"threshold"`
	Message          string          `json:"message"`
	SuggestedActions []string        `json:"suggested_actions"`
}

// SmartSplit 是一笔入账的建议分配，仅供参考，不会转移资金。
type SmartSplit struct {
	TransactionID string                  `json:"transaction_id"`
	Amount        decimal.Decimal         `json:"amount"`
	Tax           decimal.Decimal         `json:"tax"`
	Savings       decimal.Decimal         `json:"savings"`
	Buffer        decimal.Decimal         `json:"buffer"`
	Config        domain.SmartSplitConfig `json:"config"`
	Message       string                  `json:"message"`
}

// InvoiceNudge 表示已为逾期发票写入催款草稿。
type InvoiceNudge struct {
	InvoiceID string            `json:"invoice_id"`
	ClientID  string            `json:"client_id"`
	Draft     domain.DraftNudge `json:"draft"`
}

// ExpenseCategorized 表示一笔支出已被归类。
type ExpenseCategorized struct {
	TransactionID string `json:"transaction_id"`
	Category      string `json:"category"`
	Deductible    bool   `json:"deductible"`
}

// BlockNewJobs 建议暂停承接新工作。
type BlockNewJobs struct {
	Reason      string  `json:"reason"`
	Utilization float64 `json:"utilization"`
}

// CreateDeepWorkBlock 是待确认的专注时段。
type CreateDeepWorkBlock struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Title string    `json:"title"`
}

// Suggestion 是单个任务的优先级建议。
type Suggestion struct {
	TaskID   string          `json:"task_id"`
	Priority domain.Priority `json:"priority"`
}

// Reprioritize 建议调整若干任务的优先级。
type Reprioritize struct {
	Suggestions []Suggestion `json:"suggestions"`
	Message     string       `json:"message"`
}

func (DraftBid) Kind() Kind            { return KindDraftBid }
func (LowBalanceAlert) Kind() Kind     { return KindLowBalanceAlert }
func (SmartSplit) Kind() Kind          { return KindSmartSplit }
func (InvoiceNudge) Kind() Kind        { return KindInvoiceNudge }
func (ExpenseCategorized) Kind() Kind  { return KindExpenseCategorized }
func (BlockNewJobs) Kind() Kind        { return KindBlockNewJobs }
func (CreateDeepWorkBlock) Kind() Kind { return KindCreateDeepWorkBlock }
func (Reprioritize) Kind() Kind        { return KindReprioritize }

func (DraftBid) sealed()            {}
func (LowBalanceAlert) sealed()     {}
func (SmartSplit) sealed()          {}
func (InvoiceNudge) sealed()        {}
func (ExpenseCategorized) sealed()  {}
func (BlockNewJobs) sealed()        {}
func (CreateDeepWorkBlock) sealed() {}
func (Reprioritize) sealed()        {}

// Entry 将动作与产出它的 Agent 绑定，序列化为 {"agent","type","payload"}。
type Entry struct {
	Agent  Name
	Action Action
}

type wireEntry struct {
	Agent   Name            `json:"agent"`
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalJSON 实现 json.Marshaler。
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Action == nil {
		return nil, fmt.Errorf("entry for %s has no action", e.Agent)
	}
	payload, err := json.Marshal(e.Action)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEntry{Agent: e.Agent, Type: e.Action.Kind(), Payload: payload})
}

// UnmarshalJSON 根据 type 字段还原具体动作类型。
func (e *Entry) UnmarshalJSON(data []byte) error {
	var wire wireEntry
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	action, err := DecodeAction(wire.Type, wire.Payload)
	if err != nil {
		return err
	}
	e.Agent = wire.Agent
	e.Action = action
	return nil
}

// DecodeAction 按类型解析动作载荷。
func DecodeAction(kind Kind, payload []byte) (Action, error) {
	switch kind {
	case KindDraftBid:
		return decode[DraftBid](payload)
	case KindLowBalanceAlert:
		return decode[LowBalanceAlert](payload)
	case KindSmartSplit:
		return decode[SmartSplit](payload)
	case KindInvoiceNudge:
		return decode[InvoiceNudge](payload)
	case KindExpenseCategorized:
		return decode[ExpenseCategorized](payload)
	case KindBlockNewJobs:
		return decode[BlockNewJobs](payload)
	case KindCreateDeepWorkBlock:
		return decode[CreateDeepWorkBlock](payload)
	case KindReprioritize:
		return decode[Reprioritize](payload)
	default:
		return nil, fmt.Errorf("unknown action type %q", kind)
	}
}

func decode[T Action](payload []byte) (Action, error) {
	var v T
	if len(payload) == 0 {
		return nil, fmt.Errorf("missing payload for %s", v.Kind())
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", v.Kind(), err)
	}
	return v, nil
}
