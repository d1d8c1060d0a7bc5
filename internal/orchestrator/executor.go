package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"Freelance-Autopilot/internal/agent"
	"Freelance-Autopilot/internal/domain"
	xerrors "Freelance-Autopilot/internal/errors"
	"Freelance-Autopilot/pkg/logger"
)

// BidStatusSubmitted 是人工确认后的投标状态。
const BidStatusSubmitted = "submitted"

// ExecStore 是执行动作所需的写能力。
type ExecStore interface {
	InsertBid(ctx context.Context, bid domain.Bid) error
	UpdateTaskPriority(ctx context.Context, userID, taskID string, priority domain.Priority) error
}

// DeepWorkScheduler 将专注时段写入日历，由 productivity.Agent 实现。
type DeepWorkScheduler interface {
	Execute(ctx context.Context, userID string, block agent.CreateDeepWorkBlock) (*domain.CalendarEvent, error)
}

// Execution 描述一次动作执行的结果。
type Execution struct {
	Kind    agent.Kind            `json:"kind"`
	Bid     *domain.Bid           `json:"bid,omitempty"`
	Event   *domain.CalendarEvent `json:"event,omitempty"`
	Updated []string              `json:"updated_tasks,omitempty"`
}

// Executor 执行用户确认后的动作。
type Executor struct {
	store    ExecStore
	deepWork DeepWorkScheduler
	env      agent.Env
}

// NewExecutor 构造 Executor。
func NewExecutor(store ExecStore, deepWork DeepWorkScheduler, env agent.Env) *Executor {
	return &Executor{store: store, deepWork: deepWork, env: env}
}

// Execute 执行一个动作。资金拆分、提醒等建议类动作返回 CodeNotExecutable。
func (e *Executor) Execute(ctx context.Context, userID string, entry agent.Entry) (*Execution, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, xerrors.New(xerrors.CodeMissingUser, "")
	}
	if entry.Action == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "缺少动作内容")
	}

	var (
		exec *Execution
		err  error
	)
	switch action := entry.Action.(type) {
	case agent.DraftBid:
		exec, err = e.submitBid(ctx, userID, action)
	case agent.CreateDeepWorkBlock:
		exec, err = e.scheduleDeepWork(ctx, userID, action)
	case agent.Reprioritize:
		exec, err = e.reprioritize(ctx, userID, action)
	default:
		return nil, xerrors.New(xerrors.CodeNotExecutable, "",
			xerrors.WithMetadata("kind", string(entry.Action.Kind())))
	}
	if err != nil {
		return nil, err
	}
	logger.Audit().Info("action executed",
		slog.String("user_id", userID),
		slog.String("agent", string(entry.Agent)),
		slog.String("kind", string(exec.Kind)),
	)
	return exec, nil
}

func (e *Executor) submitBid(ctx context.Context, userID string, draft agent.DraftBid) (*Execution, error) {
	if strings.TrimSpace(draft.JobID) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "投标缺少职位 ID")
	}
	if !draft.Amount.IsPositive() {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "投标金额必须大于 0")
	}
	bid := domain.Bid{
		ID:           e.env.ID(),
		JobID:        draft.JobID,
		FreelancerID: userID,
		Amount:       draft.Amount,
		Proposal:     draft.Proposal,
		Status:       BidStatusSubmitted,
		SubmittedAt:  e.env.Clock().UTC(),
	}
	if err := e.store.InsertBid(ctx, bid); err != nil {
		return nil, err
	}
	return &Execution{Kind: agent.KindDraftBid, Bid: &bid}, nil
}

func (e *Executor) scheduleDeepWork(ctx context.Context, userID string, block agent.CreateDeepWorkBlock) (*Execution, error) {
	if e.deepWork == nil {
		return nil, xerrors.New(xerrors.CodeNotInitialized, "未配置日程执行器")
	}
	event, err := e.deepWork.Execute(ctx, userID, block)
	if err != nil {
		return nil, err
	}
	return &Execution{Kind: agent.KindCreateDeepWorkBlock, Event: event}, nil
}

func (e *Executor) reprioritize(ctx context.Context, userID string, r agent.Reprioritize) (*Execution, error) {
	if len(r.Suggestions) == 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "没有需要调整的任务")
	}
	priorities := make([]domain.Priority, len(r.Suggestions))
	for i, s := range r.Suggestions {
		priority := s.Priority
		if priority == "" {
			priority = domain.PriorityHigh
		}
		if !priority.Valid() {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("未知的任务优先级 %q", priority),
				xerrors.WithMetadata("task_id", s.TaskID))
		}
		priorities[i] = priority
	}
	exec := &Execution{Kind: agent.KindReprioritize}
	for i, s := range r.Suggestions {
		if err := e.store.UpdateTaskPriority(ctx, userID, s.TaskID, priorities[i]); err != nil {
			return nil, err
		}
		exec.Updated = append(exec.Updated, s.TaskID)
	}
	return exec, nil
}
