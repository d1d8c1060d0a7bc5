package dispatch

import (
	"context"
	"log/slog"
	"time"

	"Freelance-Autopilot/internal/domain"
	xerrors "Freelance-Autopilot/internal/errors"
	"Freelance-Autopilot/internal/observability/alerting"
	"Freelance-Autopilot/internal/orchestrator"
	"Freelance-Autopilot/pkg/logger"
)

// Runner 定义了处理器所需的编排能力。
type Runner interface {
	Run(ctx context.Context, userID string) (*orchestrator.Result, error)
}

// RunRecorder 持久化运行记录。
type RunRecorder interface {
	InsertRun(ctx context.Context, run domain.RunRecord) error
}

// Processor 负责从队列消费运行请求并交给编排器执行。
type Processor struct {
	runner      Runner
	recorder    RunRecorder
	consumer    Consumer
	workerCount int
	timeout     time.Duration
	logger      *slog.Logger
	alerter     alerting.Dispatcher
	now         func() time.Time
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithRunTimeout 限制单次运行的最长时间。
func WithRunTimeout(timeout time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.timeout = timeout
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) {
		p.alerter = dispatcher
	}
}

// WithProcessorClock 替换时间来源。
func WithProcessorClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(runner Runner, recorder RunRecorder, consumer Consumer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		runner:      runner,
		recorder:    recorder,
		consumer:    consumer,
		workerCount: 1,
		logger:      logger.Named("dispatch"),
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start 启动请求处理循环，直到 ctx 结束。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeNotInitialized, "未配置运行请求消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.handle)
}

// handle 返回错误时队列会重新投递该请求。
func (p *Processor) handle(ctx context.Context, req RunRequest) error {
	if p.runner == nil || p.recorder == nil {
		return xerrors.New(xerrors.CodeNotInitialized, "处理器未初始化")
	}
	if err := req.Validate(); err != nil {
		p.logger.WarnContext(ctx, "丢弃无效运行请求", slog.Any("error", err))
		return nil
	}

	runCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	started := p.now().UTC()
	result, runErr := p.runner.Run(runCtx, req.UserID)
	record := domain.RunRecord{
		ID:         req.ID,
		UserID:     req.UserID,
		Status:     domain.RunSucceeded,
		Logs:       []string{},
		StartedAt:  started,
		FinishedAt: p.now().UTC(),
	}
	switch {
	case runErr != nil:
		record.Status = domain.RunFailed
		record.Error = runErr.Error()
	case result != nil && result.Partial:
		record.Status = domain.RunPartial
	}
	if result != nil {
		record.ActionCount = len(result.Actions)
		record.Logs = append(record.Logs, result.Logs...)
	}

	if err := p.recorder.InsertRun(ctx, record); err != nil {
		if xerrors.HasCode(err, xerrors.CodeValidation) {
			p.logger.DebugContext(ctx, "运行记录已存在", slog.String("request_id", req.ID))
			return nil
		}
		p.logger.ErrorContext(ctx, "写入运行记录失败",
			slog.String("request_id", req.ID),
			slog.Any("error", err),
		)
		return err
	}

	if runErr != nil {
		p.logger.WarnContext(ctx, "运行失败",
			slog.String("request_id", req.ID),
			slog.String("user_id", req.UserID),
			slog.String("code", string(xerrors.CodeOf(runErr))),
		)
		if xerrors.ShouldAlert(runErr) {
			p.emitAlert(ctx, req, runErr)
		}
		return nil
	}
	logger.Audit().Info("运行完成",
		slog.String("request_id", req.ID),
		slog.String("user_id", req.UserID),
		slog.String("status", string(record.Status)),
		slog.Int("actions", record.ActionCount),
	)
	return nil
}

func (p *Processor) emitAlert(ctx context.Context, req RunRequest, err error) {
	if p.alerter == nil {
		return
	}
	event := alerting.EventFromError(err, "dispatch", req.UserID, p.now().UTC())
	if event.Metadata == nil {
		event.Metadata = map[string]string{}
	}
	event.Metadata["request_id"] = req.ID
	if alertErr := p.alerter.Notify(ctx, event); alertErr != nil {
		p.logger.ErrorContext(ctx, "派发告警失败", slog.Any("error", alertErr))
	}
}
