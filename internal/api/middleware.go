package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	xerrors "Freelance-Autopilot/internal/errors"
	"Freelance-Autopilot/internal/observability/metrics"
	"Freelance-Autopilot/pkg/logger"
)

// UserHeader 携带调用方的用户标识。
const UserHeader = "X-User-ID"

type userKey struct{}

// WithUser 将用户标识写入上下文。
func WithUser(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext 读取上下文中的用户标识。
func UserFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	userID, _ := ctx.Value(userKey{}).(string)
	return userID
}

// requireUser 拒绝缺少用户标识的请求。
func requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			writeError(w, xerrors.New(xerrors.CodeMissingUser, ""))
			logger.Audit().Warn("access_denied",
				slog.String("path", r.URL.Path),
				slog.String("method", r.Method),
				slog.String("reason", "missing user"),
			)
			return
		}
		next(w, r.WithContext(WithUser(r.Context(), userID)))
	}
}

// instrument 记录请求指标与审计日志。
func instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		elapsed := time.Since(start)
		metrics.ObserveHTTPRequest(name, r.Method, sw.status, elapsed)
		logger.Audit().Info("api_request",
			slog.String("handler", name),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", sw.status),
			slog.Int64("duration_ms", elapsed.Milliseconds()),
			slog.String("user", strings.TrimSpace(r.Header.Get(UserHeader))),
		)
	})
}

// statusWriter 捕获响应状态码。
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader 捕获响应状态码并调用底层的 WriteHeader 方法。
func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
