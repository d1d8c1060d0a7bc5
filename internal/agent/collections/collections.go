// Package collections drafts payment reminders for overdue invoices. A draft
// is written at most once per invoice; re-running never overwrites it.
package collections

import (
	"context"
	"fmt"
	"sort"

	"Freelance-Autopilot/internal/agent"
	"Freelance-Autopilot/internal/domain"
)

// Policy 控制催款的资格与频率。
type Policy struct {
	MinDaysOverdue   int `json:"min_days_overdue" yaml:"min_days_overdue"`
	MaxActionsPerRun int `json:"max_actions_per_run" yaml:"max_actions_per_run"`
}

// DefaultPolicy 返回默认策略：逾期至少一天，每次运行最多一条。
func DefaultPolicy() Policy {
	return Policy{MinDaysOverdue: 1, MaxActionsPerRun: 1}
}

func (p Policy) normalized() Policy {
	if p.MinDaysOverdue <= 0 {
		p.MinDaysOverdue = 1
	}
	if p.MaxActionsPerRun <= 0 {
		p.MaxActionsPerRun = 1
	}
	return p
}

// Store 是 Collections 需要的存储能力。
type Store interface {
	FindOverdueInvoices(ctx context.Context, ownerID string) ([]domain.Invoice, error)
	// SetInvoiceDraftNudge 仅在发票尚无草稿时写入，返回是否写入成功。
	SetInvoiceDraftNudge(ctx context.Context, invoiceID string, draft domain.DraftNudge) (bool, error)
}

// Rule 实现 agent.Rule。
type Rule struct {
	policy Policy
	store  Store
	env    agent.Env
}

// NewRule 构造 Collections 规则。
func NewRule(store Store, policy Policy, env agent.Env) *Rule {
	return &Rule{policy: policy.normalized(), store: store, env: env}
}

// ShouldAct 判断发票是否未付、逾期达到阈值且尚无草稿。
func (r *Rule) ShouldAct(inv domain.Invoice) bool {
	return inv.Status.Unpaid() && inv.DaysOverdue >= r.policy.MinDaysOverdue && inv.DraftNudge == nil
}

// Act 生成催款草稿并以条件更新写入。草稿已存在时不产出动作。
func (r *Rule) Act(ctx context.Context, inv domain.Invoice) ([]agent.Action, error) {
	draft := domain.DraftNudge{
		Subject:   Subject(inv),
		Body:      r.env.Text.TextOr(ctx, prompt(inv), 150, FallbackBody(inv)),
		Status:    domain.NudgeWaitingApproval,
		CreatedAt: r.env.Clock().UTC(),
	}

	applied, err := r.store.SetInvoiceDraftNudge(ctx, inv.ID, draft)
	if err != nil {
		return nil, err
	}
	if !applied {
		r.env.Log().Info("发票已有催款草稿，跳过", "invoice_id", inv.ID)
		return nil, nil
	}
	return []agent.Action{agent.InvoiceNudge{InvoiceID: inv.ID, ClientID: inv.ClientID, Draft: draft}}, nil
}

// Subject 返回催款邮件标题。
func Subject(inv domain.Invoice) string {
	return fmt.Sprintf("Payment reminder: invoice %s is %d days overdue", inv.ID, inv.DaysOverdue)
}

// FallbackBody 返回文本生成不可用时的催款正文。
func FallbackBody(inv domain.Invoice) string {
	return fmt.Sprintf(
		"Hi, this is a friendly reminder that invoice %s for %s %s is now %d days overdue. "+
			"Could you let me know when I can expect payment? Thank you!",
		inv.ID, currency(inv), inv.AmountDue.StringFixed(2), inv.DaysOverdue)
}

func prompt(inv domain.Invoice) string {
	return fmt.Sprintf(
		"Write a short, polite payment reminder email body (max 3 sentences) to a client. "+
			"Invoice %s, amount %s %s, %d days overdue. Keep the relationship warm and ask for an expected payment date.",
		inv.ID, currency(inv), inv.AmountDue.StringFixed(2), inv.DaysOverdue)
}

func currency(inv domain.Invoice) string {
	if inv.Currency == "" {
		return "INR"
	}
	return inv.Currency
}

// Source 返回用户名下的未付发票，逾期最久的排在最前。
func Source(store Store) agent.Source[domain.Invoice] {
	return func(ctx context.Context, userID string) ([]domain.Invoice, error) {
		invoices, err := store.FindOverdueInvoices(ctx, userID)
		if err != nil {
			return nil, err
		}
		sorted := append([]domain.Invoice(nil), invoices...)
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].DaysOverdue != sorted[j].DaysOverdue {
				return sorted[i].DaysOverdue > sorted[j].DaysOverdue
			}
			return sorted[i].ID < sorted[j].ID
		})
		return sorted, nil
	}
}

// NewUnit 构造 Collections 的编排单元。
func NewUnit(store Store, policy Policy, env agent.Env) agent.Unit {
	policy = policy.normalized()
	return agent.Capped[domain.Invoice](agent.Collections, Source(store), NewRule(store, policy, env), policy.MaxActionsPerRun,
		func(inv domain.Invoice) string { return "invoice: " + inv.ID })
}
