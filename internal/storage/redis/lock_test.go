package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "Freelance-Autopilot/internal/errors"
)

func newTestLock(t *testing.T) *RunLock {
	t.Helper()
	addr := os.Getenv("AUTOPILOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AUTOPILOT_TEST_REDIS_ADDR 未设置，跳过 Redis 集成测试")
	}
	lock, err := NewRunLock(context.Background(), LockConfig{
		Address: addr,
		Prefix:  "autopilot:test:" + uuid.NewString() + ":",
		TTL:     5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { lock.Close() })
	return lock
}

func TestRunLockExcludesConcurrentHolder(t *testing.T) {
	lock := newTestLock(t)
	ctx := context.Background()

	release, err := lock.Acquire(ctx, "user_100")
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, "user_100")
	assert.True(t, xerrors.HasCode(err, xerrors.CodeRunInProgress))

	other, err := lock.Acquire(ctx, "user_200")
	require.NoError(t, err)
	other()

	release()
	again, err := lock.Acquire(ctx, "user_100")
	require.NoError(t, err)
	again()
}

func TestNewRunLockRequiresAddress(t *testing.T) {
	_, err := NewRunLock(context.Background(), LockConfig{})
	assert.Error(t, err)
}

func TestNewRunLockWithClientDefaults(t *testing.T) {
	lock := NewRunLockWithClient(nil, "", 0)
	assert.Equal(t, "autopilot:run:", lock.prefix)
	assert.Equal(t, 2*time.Minute, lock.ttl)
	assert.NoError(t, lock.Close())
}
