package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Freelance-Autopilot/internal/agent"
	"Freelance-Autopilot/internal/domain"
	xerrors "Freelance-Autopilot/internal/errors"
	"Freelance-Autopilot/internal/observability/alerting"
	"Freelance-Autopilot/internal/orchestrator"
	"Freelance-Autopilot/internal/store"
)

type fakeRunner struct {
	processed atomic.Int32
	latency   time.Duration
	result    *orchestrator.Result
	err       error
}

func (f *fakeRunner) Run(ctx context.Context, userID string) (*orchestrator.Result, error) {
	if f.latency > 0 {
		select {
		case <-time.After(f.latency):
		case <-ctx.Done():
			return &orchestrator.Result{Logs: []string{"cancelled"}, Partial: true}, nil
		}
	}
	f.processed.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &orchestrator.Result{Logs: []string{"ok " + userID}}, nil
}

type recordingAlerts struct {
	mu     sync.Mutex
	events []alerting.Event
}

func (r *recordingAlerts) Notify(_ context.Context, event alerting.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

type failingProducer struct{}

func (failingProducer) Publish(context.Context, RunRequest) error { return errors.New("broker down") }
func (failingProducer) Close() error                              { return nil }

func TestProcessorHandlesConcurrentRequests(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st := store.NewMemoryStore()
	queue := NewMemoryQueue(256)
	runner := &fakeRunner{latency: 5 * time.Millisecond}

	service := NewService(queue)
	processor := NewProcessor(runner, st, queue, WithWorkerCount(4))

	go func() {
		if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("processor exited: %v", err)
		}
	}()

	total := 40
	for i := 0; i < total; i++ {
		_, err := service.Submit(ctx, fmt.Sprintf("user-%d", i%4))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		count := 0
		for i := 0; i < 4; i++ {
			runs, _ := st.ListRuns(ctx, fmt.Sprintf("user-%d", i), 100)
			count += len(runs)
		}
		return count == total
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(total), runner.processed.Load())
}

func TestHandleRecordsStatus(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		runner *fakeRunner
		status domain.RunStatus
		count  int
		errMsg bool
	}{
		{
			name: "succeeded",
			runner: &fakeRunner{result: &orchestrator.Result{
				Actions: []agent.Entry{{Agent: agent.CFO, Action: agent.LowBalanceAlert{}}},
				Logs:    []string{"CFO done"},
			}},
			status: domain.RunSucceeded,
			count:  1,
		},
		{
			name:   "partial",
			runner: &fakeRunner{result: &orchestrator.Result{Partial: true, Logs: []string{"Tax skipped: run cancelled"}}},
			status: domain.RunPartial,
		},
		{
			name:   "failed",
			runner: &fakeRunner{err: xerrors.New(xerrors.CodeStoreUnavailable, "")},
			status: domain.RunFailed,
			errMsg: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			p := NewProcessor(tc.runner, st, nil, WithProcessorClock(func() time.Time { return fixed }))
			require.NoError(t, p.handle(ctx, RunRequest{ID: "req-1", UserID: "u1", SubmittedAt: fixed}))

			runs, err := st.ListRuns(ctx, "u1", 10)
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.Equal(t, "req-1", runs[0].ID)
			assert.Equal(t, tc.status, runs[0].Status)
			assert.Equal(t, tc.count, runs[0].ActionCount)
			assert.Equal(t, fixed, runs[0].StartedAt)
			assert.Equal(t, tc.errMsg, runs[0].Error != "")
		})
	}
}

func TestHandleAlertsOnFailure(t *testing.T) {
	alerts := &recordingAlerts{}
	st := store.NewMemoryStore()
	p := NewProcessor(&fakeRunner{err: xerrors.New(xerrors.CodeStoreUnavailable, "")}, st, nil,
		WithAlertDispatcher(alerts))
	req := RunRequest{ID: "req-9", UserID: "u1"}

	require.NoError(t, p.handle(context.Background(), req))
	require.Len(t, alerts.events, 1)
	assert.Equal(t, xerrors.CodeStoreUnavailable, alerts.events[0].Code)
	assert.Equal(t, "req-9", alerts.events[0].Metadata["request_id"])

	quiet := &recordingAlerts{}
	p = NewProcessor(&fakeRunner{err: xerrors.New(xerrors.CodeRunInProgress, "")}, st, nil,
		WithAlertDispatcher(quiet))
	require.NoError(t, p.handle(context.Background(), req))
	assert.Empty(t, quiet.events)
}

func TestHandleTimeoutYieldsPartialRun(t *testing.T) {
	st := store.NewMemoryStore()
	p := NewProcessor(&fakeRunner{latency: time.Second}, st, nil, WithRunTimeout(10*time.Millisecond))
	require.NoError(t, p.handle(context.Background(), RunRequest{ID: "req-2", UserID: "u1"}))
	runs, err := st.ListRuns(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunPartial, runs[0].Status)
}

func TestHandleDropsInvalidPayload(t *testing.T) {
	st := store.NewMemoryStore()
	runner := &fakeRunner{}
	p := NewProcessor(runner, st, nil)

	require.NoError(t, p.handle(context.Background(), RunRequest{UserID: "u1"}))
	require.NoError(t, p.handle(context.Background(), RunRequest{ID: "r1", UserID: " "}))
	assert.Zero(t, runner.processed.Load())

	err := NewProcessor(nil, nil, nil).handle(context.Background(), RunRequest{})
	assert.True(t, xerrors.HasCode(err, xerrors.CodeNotInitialized))
}

func TestStartRequiresConsumer(t *testing.T) {
	err := NewProcessor(&fakeRunner{}, store.NewMemoryStore(), nil).Start(context.Background())
	assert.True(t, xerrors.HasCode(err, xerrors.CodeNotInitialized))
}

func TestSubmitValidatesAndPublishes(t *testing.T) {
	ctx := context.Background()
	queue := NewMemoryQueue(1)
	fixed := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	service := NewService(queue,
		WithServiceClock(func() time.Time { return fixed }),
		WithIDGenerator(func() string { return "run-1" }),
	)

	_, err := service.Submit(ctx, "  ")
	assert.True(t, xerrors.HasCode(err, xerrors.CodeMissingUser))

	req, err := service.Submit(ctx, " u1 ")
	require.NoError(t, err)
	assert.Equal(t, RunRequest{ID: "run-1", UserID: "u1", SubmittedAt: fixed}, *req)

	assert.Equal(t, *req, <-queue.ch)

	_, err = NewService(failingProducer{}).Submit(ctx, "u1")
	assert.True(t, xerrors.HasCode(err, xerrors.CodeQueueFailure))
}

func TestMemoryQueueRejectsAfterClose(t *testing.T) {
	queue := NewMemoryQueue(1)
	require.NoError(t, queue.Close())
	require.NoError(t, queue.Close())
	err := queue.Publish(context.Background(), RunRequest{ID: "r1", UserID: "u1"})
	assert.True(t, xerrors.HasCode(err, xerrors.CodeQueueFailure))
}

func TestMemoryQueueRejectsInvalidRequest(t *testing.T) {
	queue := NewMemoryQueue(1)
	err := queue.Publish(context.Background(), RunRequest{ID: "r1"})
	assert.True(t, xerrors.HasCode(err, xerrors.CodeMissingUser))
	assert.Empty(t, queue.ch)
}

func TestRequestWireFormat(t *testing.T) {
	fixed := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	body, err := RunRequest{ID: "run-1", UserID: "u1", SubmittedAt: fixed}.encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"run-1","user_id":"u1","submitted_at":"2026-10-14T08:00:00Z"}`, string(body))

	decoded, err := decodeRequest(body)
	require.NoError(t, err)
	assert.Equal(t, "u1", decoded.UserID)

	_, err = RunRequest{UserID: "u1"}.encode()
	assert.True(t, xerrors.HasCode(err, xerrors.CodeValidation))

	_, err = decodeRequest([]byte("not-json"))
	assert.True(t, xerrors.HasCode(err, xerrors.CodeValidation))
	_, err = decodeRequest([]byte(`{"id":"r1","user_id":" "}`))
	assert.True(t, xerrors.HasCode(err, xerrors.CodeMissingUser))
}
