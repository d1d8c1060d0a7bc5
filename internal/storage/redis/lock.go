package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	xerrors "Freelance-Autopilot/internal/errors"
)

// LockConfig 描述 Redis 运行锁的连接参数。
type LockConfig struct {
	Address  string        `json:"address" yaml:"address"`
	Password string        `json:"password" yaml:"password"`
	DB       int           `json:"db" yaml:"db"`
	Prefix   string        `json:"prefix" yaml:"prefix"`
	TTL      time.Duration `json:"ttl" yaml:"ttl"`
}

// releaseScript 仅在令牌匹配时删除锁，避免误删其他进程持有的锁。
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock 基于 Redis 的按用户互斥锁。
type RunLock struct {
	client redis.Cmdable
	closer func() error
	prefix string
	ttl    time.Duration
}

// NewRunLock 连接 Redis 并创建运行锁。
func NewRunLock(ctx context.Context, cfg LockConfig) (*RunLock, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	lock := NewRunLockWithClient(client, cfg.Prefix, cfg.TTL)
	lock.closer = client.Close
	return lock, nil
}

// NewRunLockWithClient 复用已有客户端创建运行锁。
func NewRunLockWithClient(client redis.Cmdable, prefix string, ttl time.Duration) *RunLock {
	if prefix == "" {
		prefix = "autopilot:run:"
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RunLock{client: client, prefix: prefix, ttl: ttl}
}

// Acquire 获取用户的运行锁，锁被占用时返回 CodeRunInProgress。
func (l *RunLock) Acquire(ctx context.Context, userID string) (func(), error) {
	key := l.prefix + userID
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStoreFailure, err, "获取运行锁失败", xerrors.WithMetadata("user_id", userID))
	}
	if !ok {
		return nil, xerrors.New(xerrors.CodeRunInProgress, "", xerrors.WithMetadata("user_id", userID))
	}
	return func() {
		// 使用独立上下文，调用方上下文可能已取消。
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}, nil
}

// Close 关闭底层连接。
func (l *RunLock) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer()
}
