// Package tax classifies uncategorised debits into a small keyword taxonomy
// and records whether each expense is deductible.
package tax

import (
	"context"
	"sort"
	"strings"
	"time"

	"Freelance-Autopilot/internal/agent"
	"Freelance-Autopilot/internal/domain"
)

// 分类名称。
const (
	CategorySoftware = "Software/Tools"
	CategoryTravel   = "Travel"
	CategoryOffice   = "Office"
	CategoryGeneral  = "General"
)

// Category 是一个分类及其关键词。
type Category struct {
	Name       string   `json:"name" yaml:"name"`
	Deductible bool     `json:"deductible" yaml:"deductible"`
	Keywords   []string `json:"keywords" yaml:"keywords"`
}

// DefaultTaxonomy 是内置的分类表，按顺序匹配。
var DefaultTaxonomy = []Category{
	{Name: CategorySoftware, Deductible: true, Keywords: []string{
		"aws", "github", "adobe", "figma", "notion", "slack", "zoom", "google workspace", "jetbrains",
		"software", "subscription", "saas", "hosting", "domain", "digitalocean", "vercel", "openai",
	}},
	{Name: CategoryTravel, Deductible: true, Keywords: []string{
		"uber", "ola cabs", "flight", "airline", "indigo", "train", "irctc", "hotel", "airbnb", "taxi", "cab ride", "fuel",
	}},
	{Name: CategoryOffice, Deductible: true, Keywords: []string{
		"office", "stationery", "printer", "coworking", "wework", "internet", "broadband", "electricity",
		"laptop", "monitor", "furniture", "office rent",
	}},
}

// Classification 是分类结果。
type Classification struct {
	Category   string
	Deductible bool
}

// Classify 根据交易描述中的关键词分类，未命中时归入不可抵扣的 General。
func Classify(narration string, taxonomy []Category) Classification {
	text := strings.ToLower(narration)
	for _, cat := range taxonomy {
		for _, kw := range cat.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(text, kw) {
				return Classification{Category: cat.Name, Deductible: cat.Deductible}
			}
		}
	}
	return Classification{Category: CategoryGeneral, Deductible: false}
}

// Policy 控制每次运行处理的交易数量与分类表。
type Policy struct {
	BatchSize int           `json:"batch_size" yaml:"batch_size"`
	Window    time.Duration `json:"window" yaml:"window"`
	Taxonomy  []Category    `json:"taxonomy,omitempty" yaml:"taxonomy,omitempty"`
}

// DefaultPolicy 返回默认策略。
func DefaultPolicy() Policy {
	return Policy{BatchSize: 20, Window: 90 * 24 * time.Hour, Taxonomy: DefaultTaxonomy}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.BatchSize <= 0 {
		p.BatchSize = def.BatchSize
	}
	if p.Window <= 0 {
		p.Window = def.Window
	}
	if len(p.Taxonomy) == 0 {
		p.Taxonomy = def.Taxonomy
	}
	return p
}

// Store 是 Tax 需要的存储能力。
type Store interface {
	FindRecentTransactions(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error)
	// UpdateTransactionCategory 仅在交易尚未分类时写入，返回是否写入成功。
	UpdateTransactionCategory(ctx context.Context, txnID, category string, deductible bool) (bool, error)
}

// Rule 实现 agent.Rule。
type Rule struct {
	policy Policy
	store  Store
	env    agent.Env
}

// NewRule 构造 Tax 规则。
func NewRule(store Store, policy Policy, env agent.Env) *Rule {
	return &Rule{policy: policy.normalized(), store: store, env: env}
}

// ShouldAct 对尚未分类的支出返回 true。
func (r *Rule) ShouldAct(txn domain.Transaction) bool {
	return txn.Direction == domain.Debit && !txn.Categorized()
}

// Act 分类并写回交易。交易已被其他运行分类时不产出动作。
func (r *Rule) Act(ctx context.Context, txn domain.Transaction) ([]agent.Action, error) {
	result := Classify(txn.Narration, r.policy.Taxonomy)
	applied, err := r.store.UpdateTransactionCategory(ctx, txn.ID, result.Category, result.Deductible)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, nil
	}
	return []agent.Action{agent.ExpenseCategorized{
		TransactionID: txn.ID,
		Category:      result.Category,
		Deductible:    result.Deductible,
	}}, nil
}

// Source 返回窗口内尚未分类的支出，最新的在前，最多 BatchSize 条。
func Source(store Store, policy Policy, env agent.Env) agent.Source[domain.Transaction] {
	policy = policy.normalized()
	return func(ctx context.Context, userID string) ([]domain.Transaction, error) {
		txns, err := store.FindRecentTransactions(ctx, userID, env.Clock().Add(-policy.Window))
		if err != nil {
			return nil, err
		}
		pending := make([]domain.Transaction, 0, len(txns))
		for _, txn := range txns {
			if txn.Direction == domain.Debit && !txn.Categorized() {
				pending = append(pending, txn)
			}
		}
		sort.SliceStable(pending, func(i, j int) bool {
			return pending[i].OccurredAt.After(pending[j].OccurredAt)
		})
		if len(pending) > policy.BatchSize {
			pending = pending[:policy.BatchSize]
		}
		return pending, nil
	}
}

// NewUnit 构造 Tax 的编排单元。
func NewUnit(store Store, policy Policy, env agent.Env) agent.Unit {
	policy = policy.normalized()
	return agent.Capped[domain.Transaction](agent.Tax, Source(store, policy, env), NewRule(store, policy, env), 0,
		func(txn domain.Transaction) string { return "transaction: " + txn.ID })
}
