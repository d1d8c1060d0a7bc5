package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "Freelance-Autopilot/internal/errors"
	"Freelance-Autopilot/pkg/logger"
)

type stubClient struct {
	text string
	err  error
	wait time.Duration
}

func (s *stubClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if s.wait > 0 {
		select {
		case <-time.After(s.wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &Response{Text: s.text}, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) ObserveTextGeneration(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func TestGuardReturnsTrimmedText(t *testing.T) {
	g := NewGuard(&stubClient{text: "  hello \n"}, WithLogger(logger.Discard()))
	assert.Equal(t, "hello", g.TextOr(context.Background(), "p", 50, "fallback"))
}

func TestGuardFallsBackOnFailure(t *testing.T) {
	obs := &recordingObserver{}
	g := NewGuard(&stubClient{err: errors.New("boom")}, WithLogger(logger.Discard()), WithObserver(obs))

	assert.Equal(t, "fallback", g.TextOr(context.Background(), "p", 50, "fallback"))
	_, err := g.Generate(context.Background(), "p", 50)
	assert.True(t, xerrors.HasCode(err, xerrors.CodeTextGeneration))
	assert.Equal(t, []string{"fallback", "fallback"}, obs.outcomes)
}

func TestGuardFallsBackOnEmptyText(t *testing.T) {
	g := NewGuard(&stubClient{text: "   "}, WithLogger(logger.Discard()))
	assert.Equal(t, "fallback", g.TextOr(context.Background(), "p", 50, "fallback"))
}

func TestGuardTimeoutIsBounded(t *testing.T) {
	obs := &recordingObserver{}
	g := NewGuard(&stubClient{wait: time.Second, text: "late"},
		WithTimeout(20*time.Millisecond), WithLogger(logger.Discard()), WithObserver(obs))

	started := time.Now()
	_, err := g.Generate(context.Background(), "p", 50)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(started), 500*time.Millisecond)
	assert.Equal(t, []string{"timeout"}, obs.outcomes)
}

func TestGuardRateLimit(t *testing.T) {
	g := NewGuard(&stubClient{text: "ok"}, WithRateLimit(1, 1), WithLogger(logger.Discard()))

	assert.Equal(t, "ok", g.TextOr(context.Background(), "p", 10, "fallback"))
	assert.Equal(t, "fallback", g.TextOr(context.Background(), "p", 10, "fallback"))
}

func TestGuardIgnoresNilLogger(t *testing.T) {
	g := NewGuard(&stubClient{err: errors.New("boom")}, WithLogger(nil))
	require.NotNil(t, g.logger)
	assert.NotPanics(t, func() {
		assert.Equal(t, "fallback", g.TextOr(context.Background(), "p", 10, "fallback"))
	})
}

func TestNilClientIsDisabled(t *testing.T) {
	g := NewGuard(nil, WithLogger(logger.Discard()))
	_, err := g.Generate(context.Background(), "p", 10)
	assert.ErrorIs(t, err, ErrDisabled)
}
