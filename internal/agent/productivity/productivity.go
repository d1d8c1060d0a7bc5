// Package productivity recomputes the user's seven-day workload on every run.
// It can suggest blocking new jobs, propose a single deep-work slot for
// tomorrow morning and ask for up to three tasks to raise to High priority.
package productivity

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"Freelance-Autopilot/internal/agent"
	"Freelance-Autopilot/internal/domain"
	xerrors "Freelance-Autopilot/internal/errors"
)

// Policy 控制工作负载评估的参数。
type Policy struct {
	UtilizationThreshold float64       `json:"utilization_threshold" yaml:"utilization_threshold"`
	WeeklyCapacityHours  float64       `json:"weekly_capacity_hours" yaml:"weekly_capacity_hours"`
	LookAhead            time.Duration `json:"look_ahead" yaml:"look_ahead"`
	DeepWorkStartHour    int           `json:"deep_work_start_hour" yaml:"deep_work_start_hour"`
	DeepWorkDuration     time.Duration `json:"deep_work_duration" yaml:"deep_work_duration"`
	DeepWorkTitle        string        `json:"deep_work_title" yaml:"deep_work_title"`
	MaxSuggestions       int           `json:"max_suggestions" yaml:"max_suggestions"`
	// Timezone 是计算“明天上午”所用的 IANA 时区，为空时使用服务器本地时区。
	Timezone string `json:"timezone" yaml:"timezone"`
}

// DefaultPolicy 返回默认策略。
func DefaultPolicy() Policy {
	return Policy{
		UtilizationThreshold: 0.75,
		WeeklyCapacityHours:  30,
		LookAhead:            7 * 24 * time.Hour,
		DeepWorkStartHour:    9,
		DeepWorkDuration:     2 * time.Hour,
		DeepWorkTitle:        "Deep Work - Focus Block",
		MaxSuggestions:       3,
	}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.UtilizationThreshold <= 0 {
		p.UtilizationThreshold = def.UtilizationThreshold
	}
	if p.WeeklyCapacityHours <= 0 {
		p.WeeklyCapacityHours = def.WeeklyCapacityHours
	}
	if p.LookAhead <= 0 {
		p.LookAhead = def.LookAhead
	}
	if p.DeepWorkStartHour < 0 || p.DeepWorkStartHour > 23 {
		p.DeepWorkStartHour = def.DeepWorkStartHour
	}
	if p.DeepWorkDuration <= 0 {
		p.DeepWorkDuration = def.DeepWorkDuration
	}
	if strings.TrimSpace(p.DeepWorkTitle) == "" {
		p.DeepWorkTitle = def.DeepWorkTitle
	}
	if p.MaxSuggestions <= 0 {
		p.MaxSuggestions = def.MaxSuggestions
	}
	return p
}

// Location 解析配置的时区，未配置或无法解析时返回 time.Local。
func (p Policy) Location() *time.Location {
	if strings.TrimSpace(p.Timezone) == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Store 是 Productivity 需要的存储能力。
type Store interface {
	agent.ProfileGetter
	FindUpcomingTasks(ctx context.Context, userID string, from, to time.Time) ([]domain.Task, error)
	// FindCalendarEvents 返回与 [from, to) 相交的事件。
	FindCalendarEvents(ctx context.Context, userID string, from, to time.Time) ([]domain.CalendarEvent, error)
	InsertCalendarEvent(ctx context.Context, event domain.CalendarEvent) error
}

// Snapshot 是一次评估的输入。
type Snapshot struct {
	UserID  string
	Profile domain.FreelancerProfile
	Tasks   []domain.Task
	Events  []domain.CalendarEvent
	Now     time.Time
}

// Evaluation 是一次评估的完整结果。
type Evaluation struct {
	DemandHours    float64
	WeeklyCapacity float64
	Utilization    float64
	Upcoming       []domain.Task
	Actions        []agent.Action
}

// Agent 评估日程并执行已确认的专注时段。
type Agent struct {
	policy Policy
	loc    *time.Location
	store  Store
	env    agent.Env
}

// New 构造 Productivity Agent。
func New(store Store, policy Policy, env agent.Env) *Agent {
	policy = policy.normalized()
	return &Agent{policy: policy, loc: policy.Location(), store: store, env: env}
}

// ShouldAct 每次运行都重新评估日程。
func (a *Agent) ShouldAct(Snapshot) bool { return true }

// Act 实现 agent.Rule。
func (a *Agent) Act(ctx context.Context, s Snapshot) ([]agent.Action, error) {
	eval, err := a.Evaluate(ctx, s)
	if err != nil {
		return nil, err
	}
	return eval.Actions, nil
}

// Evaluate 计算利用率并生成建议动作，不产生任何持久化副作用。
func (a *Agent) Evaluate(ctx context.Context, s Snapshot) (*Evaluation, error) {
	upcoming := Upcoming(s.Tasks, s.Now, a.policy.LookAhead)
	eval := &Evaluation{
		DemandHours:    DemandHours(upcoming),
		WeeklyCapacity: math.Max(1, s.Profile.Capacity.WeeklyHours(a.policy.WeeklyCapacityHours)),
		Upcoming:       upcoming,
	}
	eval.Utilization = eval.DemandHours / eval.WeeklyCapacity

	if eval.Utilization >= a.policy.UtilizationThreshold {
		eval.Actions = append(eval.Actions, agent.BlockNewJobs{
			Reason:      fmt.Sprintf("High utilization %d%%", int(math.Round(eval.Utilization*100))),
			Utilization: eval.Utilization,
		})
	}

	if block, ok := a.DeepWorkSlot(s.Now, s.Events); ok {
		eval.Actions = append(eval.Actions, block)
	}

	if len(upcoming) > 0 {
		if suggestions := a.suggest(ctx, upcoming); len(suggestions) > 0 {
			eval.Actions = append(eval.Actions, agent.Reprioritize{
				Suggestions: suggestions,
				Message:     "Auto-prioritized by Productivity Agent.",
			})
		}
	}
	return eval, nil
}

// Upcoming 返回截止时间落在 [now, now+window] 且未完成的任务。
func Upcoming(tasks []domain.Task, now time.Time, window time.Duration) []domain.Task {
	end := now.Add(window)
	var out []domain.Task
	for _, t := range tasks {
		if t.Done || t.DueDate == nil {
			continue
		}
		if t.DueDate.Before(now) || t.DueDate.After(end) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// DemandHours 汇总预估工时，未填写工时的任务按 1 小时计。
func DemandHours(tasks []domain.Task) float64 {
	var total float64
	for _, t := range tasks {
		if t.EstimatedHours > 0 {
			total += t.EstimatedHours
		} else {
			total++
		}
	}
	return total
}

// DeepWorkSlot 返回明天上午的候选专注时段，与已有事件重叠时返回 false。
func (a *Agent) DeepWorkSlot(now time.Time, events []domain.CalendarEvent) (agent.CreateDeepWorkBlock, bool) {
	local := now.In(a.loc)
	start := time.Date(local.Year(), local.Month(), local.Day()+1, a.policy.DeepWorkStartHour, 0, 0, 0, a.loc)
	end := start.Add(a.policy.DeepWorkDuration)
	for _, e := range events {
		if e.Overlaps(start, end) {
			return agent.CreateDeepWorkBlock{}, false
		}
	}
	return agent.CreateDeepWorkBlock{Start: start, End: end, Title: a.policy.DeepWorkTitle}, true
}

type promptTask struct {
	ID       string  `json:"id"`
	Title    string  `json:"title,omitempty"`
	EstHours float64 `json:"est_hours"`
	DueDate  string  `json:"due_date"`
}

func (a *Agent) suggest(ctx context.Context, upcoming []domain.Task) []agent.Suggestion {
	listed := upcoming
	if len(listed) > 20 {
		listed = listed[:20]
	}
	payload := make([]promptTask, 0, len(listed))
	for _, t := range listed {
		payload = append(payload, promptTask{ID: t.ID, Title: t.Title, EstHours: t.EstimatedHours, DueDate: t.DueDate.UTC().Format(time.RFC3339)})
	}
	encoded, _ := json.Marshal(payload)
	prompt := fmt.Sprintf(
		"You are a productivity assistant. Given tasks (id, est_hours, due_date), propose up to %d tasks to mark "+
			"HIGH priority to avoid missed deadlines. Return only a JSON array: [{\"taskId\":\"..\",\"suggestedPriority\":\"High\"}].\n"+
			"Tasks: %s",
		a.policy.MaxSuggestions, encoded)

	text, err := a.env.Text.Generate(ctx, prompt, 200)
	if err != nil {
		a.env.Log().Warn("优先级建议生成失败，使用截止时间排序", "error", err)
		return EarliestDue(upcoming, a.policy.MaxSuggestions)
	}
	suggestions, err := ParseSuggestions(text, upcoming, a.policy.MaxSuggestions)
	if err != nil {
		a.env.Log().Warn("优先级建议格式非法，使用截止时间排序", "error", err)
		return EarliestDue(upcoming, a.policy.MaxSuggestions)
	}
	return suggestions
}

// ParseSuggestions 解析生成的 JSON 数组，只保留已知任务并去重。
// 空数组是合法结果；非空但没有任何有效项时返回错误。
func ParseSuggestions(text string, upcoming []domain.Task, limit int) ([]agent.Suggestion, error) {
	body := stripFences(text)
	if start, end := strings.Index(body, "["), strings.LastIndex(body, "]"); start >= 0 && end > start {
		body = body[start : end+1]
	}

	var raw []struct {
		TaskID    string `json:"taskId"`
		TaskIDAlt string `json:"task_id"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeTextGeneration, err, "优先级建议不是合法的 JSON 数组")
	}
	if len(raw) == 0 {
		return nil, nil
	}

	known := make(map[string]struct{}, len(upcoming))
	for _, t := range upcoming {
		known[t.ID] = struct{}{}
	}
	seen := make(map[string]struct{})
	var out []agent.Suggestion
	for _, item := range raw {
		id := strings.TrimSpace(item.TaskID)
		if id == "" {
			id = strings.TrimSpace(item.TaskIDAlt)
		}
		if _, ok := known[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, agent.Suggestion{TaskID: id, Priority: domain.PriorityHigh})
		if len(out) >= limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, xerrors.New(xerrors.CodeTextGeneration, "优先级建议中没有已知任务")
	}
	return out, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}

// EarliestDue 按截止时间升序取前 limit 个任务并标记为 High。
func EarliestDue(upcoming []domain.Task, limit int) []agent.Suggestion {
	sorted := append([]domain.Task(nil), upcoming...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].DueDate.Equal(*sorted[j].DueDate) {
			return sorted[i].DueDate.Before(*sorted[j].DueDate)
		}
		return sorted[i].ID < sorted[j].ID
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]agent.Suggestion, 0, len(sorted))
	for _, t := range sorted {
		out = append(out, agent.Suggestion{TaskID: t.ID, Priority: domain.PriorityHigh})
	}
	return out
}

// Execute 将已确认的专注时段写入日历。时段已被占用时返回 CodeValidation。
func (a *Agent) Execute(ctx context.Context, userID string, block agent.CreateDeepWorkBlock) (*domain.CalendarEvent, error) {
	if userID == "" {
		return nil, xerrors.New(xerrors.CodeMissingUser, "")
	}
	if !block.End.After(block.Start) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "专注时段的结束时间必须晚于开始时间")
	}
	existing, err := a.store.FindCalendarEvents(ctx, userID, block.Start, block.End)
	if err != nil {
		return nil, err
	}
	for _, e := range existing {
		if e.Overlaps(block.Start, block.End) {
			return nil, xerrors.New(xerrors.CodeValidation, "专注时段与已有日程冲突",
				xerrors.WithMetadata("event_id", e.ID))
		}
	}

	title := strings.TrimSpace(block.Title)
	if title == "" {
		title = a.policy.DeepWorkTitle
	}
	event := domain.CalendarEvent{
		ID:     a.env.ID(),
		UserID: userID,
		Start:  block.Start.UTC(),
		End:    block.End.UTC(),
		Title:  title,
		Type:   domain.EventDeepWork,
	}
	if err := a.store.InsertCalendarEvent(ctx, event); err != nil {
		return nil, err
	}
	return &event, nil
}

// Source 加载评估所需的任务与日程快照。
func (a *Agent) Source() agent.Source[Snapshot] {
	return func(ctx context.Context, userID string) ([]Snapshot, error) {
		now := a.env.Clock()
		profile, err := agent.ProfileOrDefault(ctx, a.store, userID)
		if err != nil {
			return nil, err
		}
		tasks, err := a.store.FindUpcomingTasks(ctx, userID, now, now.Add(a.policy.LookAhead))
		if err != nil {
			return nil, err
		}
		events, err := a.store.FindCalendarEvents(ctx, userID, now, now.Add(a.policy.LookAhead+24*time.Hour))
		if err != nil {
			return nil, err
		}
		return []Snapshot{{UserID: userID, Profile: profile, Tasks: tasks, Events: events, Now: now}}, nil
	}
}

// Unit 返回编排单元。
func (a *Agent) Unit() agent.Unit {
	return agent.Capped[Snapshot](agent.Productivity, a.Source(), a, 0,
		func(Snapshot) string { return "schedule" })
}
