// Package hunter matches open job postings against the freelancer's skills
// and drafts a bid for the first match.
package hunter

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"Freelance-Autopilot/internal/agent"
	"Freelance-Autopilot/internal/domain"
)

// Policy 控制职位匹配的阈值与扫描范围。
type Policy struct {
	MinSkillOverlap  int `json:"min_skill_overlap" yaml:"min_skill_overlap"`
	JobScanLimit     int `json:"job_scan_limit" yaml:"job_scan_limit"`
	MaxActionsPerRun int `json:"max_actions_per_run" yaml:"max_actions_per_run"`
}

// DefaultPolicy 返回默认策略。
func DefaultPolicy() Policy {
	return Policy{MinSkillOverlap: 1, JobScanLimit: 5, MaxActionsPerRun: 1}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MinSkillOverlap <= 0 {
		p.MinSkillOverlap = def.MinSkillOverlap
	}
	if p.JobScanLimit <= 0 {
		p.JobScanLimit = def.JobScanLimit
	}
	if p.MaxActionsPerRun <= 0 {
		p.MaxActionsPerRun = def.MaxActionsPerRun
	}
	return p
}

// Store 是 Hunter 需要的存储能力。
type Store interface {
	agent.ProfileGetter
	FindOpenJobs(ctx context.Context, limit int) ([]domain.JobPosting, error)
}

// Candidate 是一个职位与用户资料的组合。
type Candidate struct {
	Job     domain.JobPosting
	Profile domain.FreelancerProfile
}

// Rule 实现 agent.Rule。
type Rule struct {
	policy Policy
	env    agent.Env
}

// NewRule 构造 Hunter 规则。
func NewRule(policy Policy, env agent.Env) *Rule {
	return &Rule{policy: policy.normalized(), env: env}
}

// ShouldAct 当职位要求的技能与用户技能的交集达到阈值时返回 true。
func (r *Rule) ShouldAct(c Candidate) bool {
	if !c.Job.Open {
		return false
	}
	return len(SkillOverlap(c.Job.Skills, c.Profile.Skills)) >= r.policy.MinSkillOverlap
}

// Act 计算报价并起草投标说明。投标不会被持久化。
func (r *Rule) Act(ctx context.Context, c Candidate) ([]agent.Action, error) {
	amount := BidAmount(c.Job, c.Profile.HourlyRate)
	matched := SkillOverlap(c.Job.Skills, c.Profile.Skills)

	fallback := fmt.Sprintf(
		"Hi, I'd like to help with %q. I have hands-on experience with %s and can deliver this for %s.",
		c.Job.Title, strings.Join(matched, ", "), amount.StringFixed(2))
	prompt := fmt.Sprintf(
		"Write a concise, friendly freelance proposal (max 4 sentences) for the job %q.\n"+
			"Job description: %s\nMatching skills: %s\nProposed price: %s\nFreelancer name: %s",
		c.Job.Title, truncate(c.Job.Description, 400), strings.Join(matched, ", "), amount.StringFixed(2), c.Profile.Name)

	proposal := r.env.Text.TextOr(ctx, prompt, 200, fallback)
	return []agent.Action{agent.DraftBid{
		JobID:    c.Job.ID,
		JobTitle: c.Job.Title,
		Amount:   amount,
		Proposal: proposal,
	}}, nil
}

// SkillOverlap 返回职位技能中用户具备的部分，忽略大小写与空白，按职位顺序去重。
// 返回值沿用用户档案里的写法。
func SkillOverlap(required, have []string) []string {
	owned := make(map[string]string, len(have))
	for _, s := range have {
		key := normalizeSkill(s)
		if key == "" {
			continue
		}
		if _, ok := owned[key]; !ok {
			owned[key] = strings.TrimSpace(s)
		}
	}
	seen := make(map[string]struct{})
	var matched []string
	for _, s := range required {
		key := normalizeSkill(s)
		spelling, ok := owned[key]
		if key == "" || !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		matched = append(matched, spelling)
	}
	return matched
}

func normalizeSkill(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

// BidAmount 按时薪乘预估工时报价，并限制在预算区间内。
// 时薪或工时未知时取预算中点。
func BidAmount(job domain.JobPosting, hourlyRate decimal.Decimal) decimal.Decimal {
	lo, hi := job.BudgetMin, job.BudgetMax
	if hi.LessThan(lo) {
		lo, hi = hi, lo
	}
	if job.EstimatedHours <= 0 || !hourlyRate.IsPositive() {
		return lo.Add(hi).Div(decimal.NewFromInt(2)).Round(2)
	}
	amount := hourlyRate.Mul(decimal.NewFromFloat(job.EstimatedHours)).Round(2)
	if amount.LessThan(lo) {
		return lo
	}
	if hi.IsPositive() && amount.GreaterThan(hi) {
		return hi
	}
	return amount
}

func truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return text
}

// Source 返回最新发布的若干个职位，按发布时间倒序。
func Source(store Store, policy Policy) agent.Source[Candidate] {
	policy = policy.normalized()
	return func(ctx context.Context, userID string) ([]Candidate, error) {
		profile, err := agent.ProfileOrDefault(ctx, store, userID)
		if err != nil {
			return nil, err
		}
		jobs, err := store.FindOpenJobs(ctx, policy.JobScanLimit)
		if err != nil {
			return nil, err
		}
		candidates := make([]Candidate, 0, len(jobs))
		for _, job := range jobs {
			candidates = append(candidates, Candidate{Job: job, Profile: profile})
		}
		return candidates, nil
	}
}

// NewUnit 构造 Hunter 的编排单元。
func NewUnit(store Store, policy Policy, env agent.Env) agent.Unit {
	policy = policy.normalized()
	return agent.Capped[Candidate](agent.Hunter, Source(store, policy), NewRule(policy, env), policy.MaxActionsPerRun,
		func(c Candidate) string { return "job: " + c.Job.Title })
}
