package orchestrator

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"Freelance-Autopilot/internal/agent"
	xerrors "Freelance-Autopilot/internal/errors"
	"Freelance-Autopilot/internal/observability/alerting"
	"Freelance-Autopilot/internal/observability/metrics"
	"Freelance-Autopilot/pkg/logger"
)

// Pinger 用于在运行前确认存储可达。
type Pinger interface {
	Ping(ctx context.Context) error
}

// Result 是一次运行的汇总结果。
type Result struct {
	Actions []agent.Entry `json:"actions"`
	Logs    []string      `json:"logs"`
	// Partial 表示运行被取消或超时，结果只包含已完成的部分。
	Partial bool         `json:"partial"`
	Failed  []agent.Name `json:"failed,omitempty"`
}

// Orchestrator 按注册顺序调度各 Agent。
type Orchestrator struct {
	units   []agent.Unit
	pinger  Pinger
	lock    RunLock
	workers int
	alerts  alerting.Dispatcher
	logger  *slog.Logger
	now     func() time.Time
}

// Option 定义可选配置。
type Option func(*Orchestrator)

// WithLock 替换默认的进程内锁。
func WithLock(lock RunLock) Option {
	return func(o *Orchestrator) {
		if lock != nil {
			o.lock = lock
		}
	}
}

// WithWorkers 设置并行执行的 Agent 数量。
func WithWorkers(workers int) Option {
	return func(o *Orchestrator) {
		if workers > 0 {
			o.workers = workers
		}
	}
}

// WithAlerts 配置告警派发器。
func WithAlerts(dispatcher alerting.Dispatcher) Option {
	return func(o *Orchestrator) {
		o.alerts = dispatcher
	}
}

// WithLogger 指定日志输出。
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock 替换时钟，主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New 构造 Orchestrator。pinger 为 nil 时跳过可达性检查。
func New(pinger Pinger, units []agent.Unit, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		units:   append([]agent.Unit(nil), units...),
		pinger:  pinger,
		lock:    NewMemoryLock(),
		workers: len(units),
		logger:  logger.Named("orchestrator"),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.workers <= 0 {
		o.workers = 1
	}
	return o
}

// Units 返回已注册 Agent 的名称。
func (o *Orchestrator) Units() []agent.Name {
	names := make([]agent.Name, 0, len(o.units))
	for _, u := range o.units {
		names = append(names, u.Name())
	}
	return names
}

type stepResult struct {
	launched  bool
	outcome   *agent.Outcome
	err       error
	cancelled bool
}

// Run 为用户执行一次完整的 Agent 评估。
// 单个 Agent 的失败不会影响其他 Agent。只有用户缺失、存储不可达或运行冲突时返回错误。
// ctx 在运行开始前已取消时返回所有 Agent 均被跳过的部分结果。
func (o *Orchestrator) Run(ctx context.Context, userID string) (*Result, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, xerrors.New(xerrors.CodeMissingUser, "")
	}
	results := make([]stepResult, len(o.units))
	if ctx.Err() != nil {
		return o.finish(ctx, userID, results), nil
	}
	if o.pinger != nil {
		if err := o.pinger.Ping(ctx); err != nil {
			if interrupted(ctx, err) {
				return o.finish(ctx, userID, results), nil
			}
			if xerrors.CodeOf(err) != xerrors.CodeStoreUnavailable {
				err = xerrors.Wrap(xerrors.CodeStoreUnavailable, err, "")
			}
			return nil, err
		}
	}
	release, err := o.lock.Acquire(ctx, userID)
	if err != nil {
		if interrupted(ctx, err) {
			return o.finish(ctx, userID, results), nil
		}
		return nil, err
	}
	defer release()

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, unit := range o.units {
		if ctx.Err() != nil {
			break
		}
		results[i].launched = true
		g.Go(func() error {
			results[i] = o.step(ctx, userID, unit)
			return nil
		})
	}
	_ = g.Wait()
	return o.finish(ctx, userID, results), nil
}

// interrupted 判断 err 是否只是 ctx 取消或超时的结果。
func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (stdErrors.Is(err, context.Canceled) || stdErrors.Is(err, context.DeadlineExceeded))
}

func (o *Orchestrator) finish(ctx context.Context, userID string, results []stepResult) *Result {
	res := &Result{Actions: []agent.Entry{}, Logs: []string{}}
	for i, unit := range o.units {
		r := results[i]
		name := unit.Name()
		if !r.launched || r.cancelled {
			res.Partial = true
		}
		if r.outcome != nil {
			res.Logs = append(res.Logs, r.outcome.Logs...)
			for _, action := range r.outcome.Actions {
				res.Actions = append(res.Actions, agent.Entry{Agent: name, Action: action})
			}
		}
		switch {
		case !r.launched:
			res.Logs = append(res.Logs, fmt.Sprintf("%s skipped: run cancelled", name))
		case r.err != nil && !r.cancelled:
			res.Failed = append(res.Failed, name)
			res.Logs = append(res.Logs, fmt.Sprintf("%s failed: %s", name, xerrors.CodeOf(r.err)))
		}
	}
	if ctx.Err() != nil {
		res.Partial = true
	}

	status := "succeeded"
	if res.Partial {
		status = "partial"
	}
	metrics.ObserveRun(status)
	o.logger.InfoContext(ctx, "agent run finished",
		slog.String("user_id", userID),
		slog.Int("actions", len(res.Actions)),
		slog.Bool("partial", res.Partial),
		slog.Int("failed", len(res.Failed)),
	)
	return res
}

func (o *Orchestrator) step(ctx context.Context, userID string, unit agent.Unit) (r stepResult) {
	r.launched = true
	name := unit.Name()
	started := o.now()

	defer func() {
		if p := recover(); p != nil {
			r.outcome = nil
			r.err = xerrors.New(xerrors.CodeAgentFailure, fmt.Sprintf("%s panic: %v", name, p),
				xerrors.WithMetadata("agent", string(name)))
			o.logger.ErrorContext(ctx, "agent panicked",
				slog.String("agent", string(name)),
				slog.String("user_id", userID),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)
			metrics.ObserveAgentStep(string(name), metrics.OutcomePanic, o.now().Sub(started))
			o.emitAlert(ctx, name, userID, r.err)
		}
	}()

	if err := ctx.Err(); err != nil {
		r.err, r.cancelled = err, true
		metrics.ObserveAgentStep(string(name), metrics.OutcomeCancelled, 0)
		return r
	}

	out, err := unit.Step(ctx, userID)
	elapsed := o.now().Sub(started)
	r.outcome = out
	switch {
	case err == nil:
		metrics.ObserveAgentStep(string(name), metrics.OutcomeOK, elapsed)
	case interrupted(ctx, err):
		r.err, r.cancelled = err, true
		metrics.ObserveAgentStep(string(name), metrics.OutcomeCancelled, elapsed)
	default:
		r.err, r.outcome = err, nil
		metrics.ObserveAgentStep(string(name), metrics.OutcomeError, elapsed)
		o.logger.WarnContext(ctx, "agent step failed",
			slog.String("agent", string(name)),
			slog.String("user_id", userID),
			slog.String("code", string(xerrors.CodeOf(err))),
			slog.Any("error", err),
		)
		if xerrors.ShouldAlert(err) {
			o.emitAlert(ctx, name, userID, err)
		}
	}
	if r.outcome != nil {
		for _, action := range r.outcome.Actions {
			metrics.ObserveAction(string(name), string(action.Kind()))
		}
	}
	return r
}

func (o *Orchestrator) emitAlert(ctx context.Context, name agent.Name, userID string, cause error) {
	if o.alerts == nil {
		return
	}
	event := alerting.EventFromError(cause, string(name), userID, o.now())
	if err := o.alerts.Notify(context.WithoutCancel(ctx), event); err != nil {
		o.logger.Error("告警通知失败", slog.Any("error", err), slog.String("agent", string(name)))
	}
}
