// Package cfo reacts to the user's latest transaction: incoming payments get
// an advisory smart split, and debits that leave the balance under the
// configured ratio of the checking balance raise a low-balance alert.
package cfo

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"Freelance-Autopilot/internal/agent"
	"Freelance-Autopilot/internal/domain"
	xerrors "Freelance-Autopilot/internal/errors"
	"Freelance-Autopilot/internal/finance"
)

// Policy 控制 CFO 的阈值与默认分配比例。
type Policy struct {
	LowBalanceRatio decimal.Decimal         `json:"low_balance_ratio" yaml:"low_balance_ratio"`
	DefaultSplit    domain.SmartSplitConfig `json:"default_split" yaml:"default_split"`
}

// DefaultPolicy 返回默认策略。
func DefaultPolicy() Policy {
	return Policy{LowBalanceRatio: decimal.RequireFromString("0.15"), DefaultSplit: domain.DefaultSplit}
}

func (p Policy) normalized() Policy {
	if !p.LowBalanceRatio.IsPositive() {
		p.LowBalanceRatio = DefaultPolicy().LowBalanceRatio
	}
	if p.DefaultSplit.Validate() != nil {
		p.DefaultSplit = domain.DefaultSplit
	}
	return p
}

// SuggestedActions 是低余额提醒附带的固定建议，与生成文本无关。
var SuggestedActions = []string{
	"Pause non-essential services",
	"Request early payment",
	"Draw from savings buffer",
}

// Store 是 CFO 需要的存储能力。
type Store interface {
	agent.ProfileGetter
	FindLatestTransaction(ctx context.Context, userID string) (*domain.Transaction, error)
	InsertNotification(ctx context.Context, n domain.Notification) error
}

// Candidate 是一笔交易与用户资料的组合。
type Candidate struct {
	Txn     domain.Transaction
	Profile domain.FreelancerProfile
}

// Rule 实现 agent.Rule。
type Rule struct {
	policy Policy
	store  Store
	env    agent.Env
}

// NewRule 构造 CFO 规则。
func NewRule(store Store, policy Policy, env agent.Env) *Rule {
	return &Rule{policy: policy.normalized(), store: store, env: env}
}

// Threshold 返回低余额阈值。
func (r *Rule) Threshold(profile domain.FreelancerProfile) decimal.Decimal {
	return profile.CheckingBalance.Mul(r.policy.LowBalanceRatio)
}

// ShouldAct 入账金额为正或支出后余额严格低于阈值时返回 true。
// 方向无法识别的交易视为不满足条件。
func (r *Rule) ShouldAct(c Candidate) bool {
	switch c.Txn.Direction {
	case domain.Credit:
		return c.Txn.Amount.IsPositive()
	case domain.Debit:
		return c.Txn.BalanceAfter != nil && c.Txn.BalanceAfter.LessThan(r.Threshold(c.Profile))
	default:
		return false
	}
}

// Act 根据交易方向生成分配建议或低余额提醒，并写入一条通知。
func (r *Rule) Act(ctx context.Context, c Candidate) ([]agent.Action, error) {
	if c.Txn.Direction == domain.Credit {
		return r.smartSplit(ctx, c)
	}
	return r.lowBalance(ctx, c)
}

func (r *Rule) smartSplit(ctx context.Context, c Candidate) ([]agent.Action, error) {
	cfg := finance.ResolveSplit(c.Profile, r.policy.DefaultSplit)
	split, err := finance.SmartSplit(c.Txn.Amount, cfg)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeValidation, err, "分配比例非法")
	}

	fallback := fmt.Sprintf("Incoming %s. Suggested split: Tax %s, Savings %s, Checking %s.",
		money(split.Amount), money(split.Tax), money(split.Savings), money(split.Buffer))
	prompt := fmt.Sprintf(
		"Summarize the following split to the user in two short sentences: incoming payment %s. "+
			"We suggest: Tax %s, Savings %s, Checking %s. Also include one short actionable sentence: "+
			"\"Approve transfers\" or \"Adjust split\".",
		money(split.Amount), money(split.Tax), money(split.Savings), money(split.Buffer))
	message := r.env.Text.TextOr(ctx, prompt, 120, fallback)

	notification := domain.Notification{
		ID:              r.env.ID(),
		RecipientID:     c.Txn.UserID,
		Type:            domain.NotificationActionRequired,
		Message:         message,
		RelatedEntityID: c.Txn.ID,
		Metadata: map[string]any{
			"split": map[string]any{
				"tax":     split.Tax.String(),
				"savings": split.Savings.String(),
				"buffer":  split.Buffer.String(),
			},
			"originalAmount": split.Amount.String(),
		},
		CreatedAt: r.env.Clock().UTC(),
	}
	if err := r.store.InsertNotification(ctx, notification); err != nil {
		return nil, err
	}

	return []agent.Action{agent.SmartSplit{
		TransactionID: c.Txn.ID,
		Amount:        split.Amount,
		Tax:           split.Tax,
		Savings:       split.Savings,
		Buffer:        split.Buffer,
		Config:        cfg,
		Message:       message,
	}}, nil
}

func (r *Rule) lowBalance(ctx context.Context, c Candidate) ([]agent.Action, error) {
	balance := *c.Txn.BalanceAfter
	threshold := r.Threshold(c.Profile)

	fallback := fmt.Sprintf("Low balance alert: %s left after the latest payment (threshold %s).",
		money(balance), money(threshold))
	prompt := fmt.Sprintf(
		"Briefly notify the user that their account balance is low. Balance after transaction: %s. "+
			"Suggest 3 quick actions: (1) pause non-essential services (2) request early payments "+
			"(3) move buffer from savings. Output 3 bullets.",
		money(balance))
	message := r.env.Text.TextOr(ctx, prompt, 120, fallback)

	notification := domain.Notification{
		ID:              r.env.ID(),
		RecipientID:     c.Txn.UserID,
		Type:            domain.NotificationSystem,
		Message:         message,
		RelatedEntityID: c.Txn.ID,
		CreatedAt:       r.env.Clock().UTC(),
	}
	if err := r.store.InsertNotification(ctx, notification); err != nil {
		return nil, err
	}

	return []agent.Action{agent.LowBalanceAlert{
		TransactionID:    c.Txn.ID,
		Balance:          balance,
		Threshold:        threshold,
		Message:          message,
		SuggestedActions: append([]string(nil), SuggestedActions...),
	}}, nil
}

func money(d decimal.Decimal) string {
	return "₹" + d.StringFixed(2)
}

// Source 返回用户最新的一笔交易，没有交易时返回空列表。
func Source(store Store) agent.Source[Candidate] {
	return func(ctx context.Context, userID string) ([]Candidate, error) {
		txn, err := store.FindLatestTransaction(ctx, userID)
		if err != nil {
			if xerrors.HasCode(err, xerrors.CodeNotFound) {
				return nil, nil
			}
			return nil, err
		}
		if txn == nil {
			return nil, nil
		}
		profile, err := agent.ProfileOrDefault(ctx, store, userID)
		if err != nil {
			return nil, err
		}
		return []Candidate{{Txn: *txn, Profile: profile}}, nil
	}
}

// NewUnit 构造 CFO 的编排单元。
func NewUnit(store Store, policy Policy, env agent.Env) agent.Unit {
	return agent.Capped[Candidate](agent.CFO, Source(store), NewRule(store, policy, env), 1,
		func(c Candidate) string { return "transaction: " + c.Txn.ID })
}
