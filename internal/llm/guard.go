package llm

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	xerrors "Freelance-Autopilot/internal/errors"
)

const defaultTimeout = 8 * time.Second

// Observer 接收每次生成调用的结果，通常由指标模块实现。
type Observer interface {
	ObserveTextGeneration(outcome string, duration time.Duration)
}

// Guard 为文本生成调用加上超时、限流与兜底。
type Guard struct {
	client   Client
	timeout  time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger
	observer Observer
}

// GuardOption 定义可选配置。
type GuardOption func(*Guard)

// WithTimeout 设置单次调用的超时时间。
func WithTimeout(timeout time.Duration) GuardOption {
	return func(g *Guard) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

// WithRateLimit 限制每分钟的调用次数，burst 为允许的突发数量。
func WithRateLimit(perMinute, burst int) GuardOption {
	return func(g *Guard) {
		if perMinute <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst)
	}
}

// WithLogger 指定日志输出。
func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithObserver 注册调用结果观察者。
func WithObserver(observer Observer) GuardOption {
	return func(g *Guard) {
		g.observer = observer
	}
}

// NewGuard 构造 Guard。client 为空时所有调用直接走兜底。
func NewGuard(client Client, opts ...GuardOption) *Guard {
	if client == nil {
		client = Disabled{}
	}
	g := &Guard{client: client, timeout: defaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Generate 调用一次文本生成，返回去除首尾空白的文本。
// 失败、超时或空输出统一包装为 CodeTextGeneration。
func (g *Guard) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	started := time.Now()
	text, err := g.generate(ctx, prompt, maxTokens)
	outcome := "ok"
	if err != nil {
		outcome = "fallback"
		if stdErrors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
	}
	if g.observer != nil {
		g.observer.ObserveTextGeneration(outcome, time.Since(started))
	}
	return text, err
}

func (g *Guard) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if g.limiter != nil && !g.limiter.Allow() {
		return "", xerrors.New(xerrors.CodeTextGeneration, "文本生成调用被限流")
	}

	resp, err := g.client.Generate(callCtx, Request{Prompt: prompt, MaxTokens: maxTokens})
	if err != nil {
		if stdErrors.Is(callCtx.Err(), context.DeadlineExceeded) && !stdErrors.Is(err, context.DeadlineExceeded) {
			err = stdErrors.Join(err, context.DeadlineExceeded)
		}
		return "", xerrors.Wrap(xerrors.CodeTextGeneration, err, "文本生成失败")
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return "", xerrors.New(xerrors.CodeTextGeneration, "文本生成返回空内容")
	}
	return strings.TrimSpace(resp.Text), nil
}

// TextOr 生成文本，任何失败都返回 fallback，错误只记录日志不向上传播。
func (g *Guard) TextOr(ctx context.Context, prompt string, maxTokens int, fallback string) string {
	text, err := g.Generate(ctx, prompt, maxTokens)
	if err != nil {
		g.logger.Warn("文本生成失败，使用兜底文案", slog.Any("error", err))
		return fallback
	}
	return text
}
