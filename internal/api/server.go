package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"Freelance-Autopilot/internal/agent"
	"Freelance-Autopilot/internal/dispatch"
	"Freelance-Autopilot/internal/domain"
	xerrors "Freelance-Autopilot/internal/errors"
	"Freelance-Autopilot/internal/finance"
	"Freelance-Autopilot/internal/observability/metrics"
	"Freelance-Autopilot/internal/orchestrator"
)

// Runner 同步执行一次 Agent 评估。
type Runner interface {
	Run(ctx context.Context, userID string) (*orchestrator.Result, error)
}

// ActionExecutor 执行用户确认的动作。
type ActionExecutor interface {
	Execute(ctx context.Context, userID string, entry agent.Entry) (*orchestrator.Execution, error)
}

// Submitter 提交异步运行请求。
type Submitter interface {
	Submit(ctx context.Context, userID string) (*dispatch.RunRequest, error)
}

// RunHistory 查询运行记录。
type RunHistory interface {
	ListRuns(ctx context.Context, userID string, limit int) ([]domain.RunRecord, error)
}

// Analytics 提供财务指标。
type Analytics interface {
	Metrics(ctx context.Context, userID string, asOf time.Time) (finance.Metrics, error)
	TaxLiability(ctx context.Context, userID string, asOf time.Time) (finance.TaxLiability, error)
}

// Stats 是 /api/v1/finance/stats 的响应体。
type Stats struct {
	finance.Metrics
	Tax finance.TaxLiability `json:"tax"`
}

// Server 负责暴露 REST 接口，供外部驱动 Agent 运行。
type Server struct {
	addr      string
	runner    Runner
	executor  ActionExecutor
	submitter Submitter
	history   RunHistory
	analytics Analytics
	now       func() time.Time

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// Option 定义可选配置。
type Option func(*Server)

// WithExecutor 启用动作执行接口。
func WithExecutor(executor ActionExecutor) Option {
	return func(s *Server) { s.executor = executor }
}

// WithSubmitter 启用异步运行接口。
func WithSubmitter(submitter Submitter) Option {
	return func(s *Server) { s.submitter = submitter }
}

// WithRunHistory 启用运行记录查询。
func WithRunHistory(history RunHistory) Option {
	return func(s *Server) { s.history = history }
}

// WithAnalytics 启用财务指标接口。
func WithAnalytics(analytics Analytics) Option {
	return func(s *Server) { s.analytics = analytics }
}

// WithClock 替换时间来源。
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTimeouts 设置读写超时。
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, runner Runner, opts ...Option) *Server {
	s := &Server{addr: addr, runner: runner, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回注册了全部路由的处理器。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/v1/agents/run", instrument("agents_run", requireUser(s.handleRun)))
	mux.Handle("/api/v1/agents/runs", instrument("agents_runs", requireUser(s.handleRuns)))
	mux.Handle("/api/v1/agents/execute", instrument("agents_execute", requireUser(s.handleExecute)))
	mux.Handle("/api/v1/finance/stats", instrument("finance_stats", requireUser(s.handleStats)))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.readTimeout,
		WriteTimeout:      s.writeTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.runner == nil {
		writeError(w, xerrors.New(xerrors.CodeNotInitialized, "编排器未初始化"))
		return
	}
	result, err := s.runner.Run(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if s.submitter == nil {
			writeError(w, xerrors.New(xerrors.CodeNotInitialized, "异步运行未启用"))
			return
		}
		req, err := s.submitter.Submit(r.Context(), UserFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, req)
	case http.MethodGet:
		if s.history == nil {
			writeError(w, xerrors.New(xerrors.CodeNotInitialized, "运行记录未启用"))
			return
		}
		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		runs, err := s.history.ListRuns(r.Context(), UserFromContext(r.Context()), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if runs == nil {
			runs = []domain.RunRecord{}
		}
		writeJSON(w, http.StatusOK, runs)
	default:
		http.Error(w, "仅支持 GET/POST", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.executor == nil {
		writeError(w, xerrors.New(xerrors.CodeNotInitialized, "执行器未初始化"))
		return
	}
	var entry agent.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}
	execution, err := s.executor.Execute(r.Context(), UserFromContext(r.Context()), entry)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, execution)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.analytics == nil {
		writeError(w, xerrors.New(xerrors.CodeNotInitialized, "财务分析未启用"))
		return
	}
	ctx := r.Context()
	userID := UserFromContext(ctx)
	asOf := s.now().UTC()
	m, err := s.analytics.Metrics(ctx, userID, asOf)
	if err != nil {
		writeError(w, err)
		return
	}
	tax, err := s.analytics.TaxLiability(ctx, userID, asOf)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Stats{Metrics: m, Tax: tax})
}

type errorBody struct {
	Code    xerrors.Code `json:"code"`
	Message string       `json:"message"`
}

// StatusFor 将错误码映射为 HTTP 状态码。
func StatusFor(err error) int {
	switch xerrors.CodeOf(err) {
	case xerrors.CodeMissingUser, xerrors.CodeInvalidArgument, xerrors.CodeValidation:
		return http.StatusBadRequest
	case xerrors.CodeNotFound:
		return http.StatusNotFound
	case xerrors.CodeRunInProgress:
		return http.StatusConflict
	case xerrors.CodeNotExecutable:
		return http.StatusUnprocessableEntity
	case xerrors.CodeStoreUnavailable, xerrors.CodeNotInitialized, xerrors.CodeQueueFailure:
		return http.StatusServiceUnavailable
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Code: xerrors.CodeOf(err), Message: err.Error()}
	if e, ok := xerrors.From(err); ok {
		body.Message = e.Message()
	}
	writeJSON(w, StatusFor(err), body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
