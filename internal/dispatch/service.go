package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	xerrors "Freelance-Autopilot/internal/errors"
	"Freelance-Autopilot/pkg/logger"
)

// Service 负责创建运行请求并投递到队列。
type Service struct {
	producer Producer
	now      func() time.Time
	newID    func() string
}

// ServiceOption 定义 Service 的可选配置。
type ServiceOption func(*Service)

// WithServiceClock 替换时间来源。
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator 替换请求 ID 生成函数。
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService 构造运行请求服务。
func NewService(producer Producer, opts ...ServiceOption) *Service {
	s := &Service{producer: producer, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Submit 为用户创建一次异步运行请求。
func (s *Service) Submit(ctx context.Context, userID string) (*RunRequest, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, xerrors.New(xerrors.CodeMissingUser, "")
	}
	if s == nil || s.producer == nil {
		return nil, xerrors.New(xerrors.CodeNotInitialized, "运行请求服务未初始化")
	}
	req := RunRequest{ID: s.newID(), UserID: userID, SubmittedAt: s.now().UTC()}
	if err := s.producer.Publish(ctx, req); err != nil {
		logger.L().Error("运行请求入队失败", slog.Any("error", err), slog.String("request_id", req.ID))
		return nil, xerrors.Wrap(xerrors.CodeQueueFailure, err, "发布运行请求到队列失败",
			xerrors.WithMetadata("request_id", req.ID))
	}
	logger.Audit().Info("运行请求已提交",
		slog.String("request_id", req.ID),
		slog.String("user_id", req.UserID),
	)
	return &req, nil
}
