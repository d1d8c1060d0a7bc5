package orchestrator

import (
	"context"
	"sync"

	xerrors "Freelance-Autopilot/internal/errors"
)

// RunLock 保证同一用户同时只有一次运行。
type RunLock interface {
	Acquire(ctx context.Context, userID string) (release func(), err error)
}

// MemoryLock 是进程内的 RunLock 实现。
type MemoryLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryLock 创建进程内锁。
func NewMemoryLock() *MemoryLock {
	return &MemoryLock{held: make(map[string]struct{})}
}

// Acquire 实现 RunLock。
func (l *MemoryLock) Acquire(_ context.Context, userID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[userID]; ok {
		return nil, xerrors.New(xerrors.CodeRunInProgress, "", xerrors.WithMetadata("user_id", userID))
	}
	l.held[userID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, userID)
			l.mu.Unlock()
		})
	}, nil
}
