package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "Freelance-Autopilot/internal/errors"
	"Freelance-Autopilot/pkg/logger"
)

type recordingNotifier struct {
	channel Channel
	events  []Event
	err     error
}

func (r *recordingNotifier) Channel() Channel { return r.channel }

func (r *recordingNotifier) Notify(_ context.Context, event Event) error {
	r.events = append(r.events, event)
	return r.err
}

func TestFanoutDeliversToEveryChannel(t *testing.T) {
	a := &recordingNotifier{channel: "a"}
	b := &recordingNotifier{channel: "b", err: errors.New("down")}
	d := NewFanout(a, nil, b)

	err := d.Notify(context.Background(), Event{Code: xerrors.CodeAgentFailure})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel b")
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)

	var nilDispatcher *FanoutDispatcher
	assert.NoError(t, nilDispatcher.Notify(context.Background(), Event{}))
}

func TestEventFromError(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	err := xerrors.New(xerrors.CodeAgentFailure, "cfo 失败", xerrors.WithMetadata("agent", "CFO"))
	event := EventFromError(err, "CFO", "user_100", at)

	assert.Equal(t, xerrors.CodeAgentFailure, event.Code)
	assert.Equal(t, xerrors.SeverityWarning, event.Severity)
	assert.Equal(t, "CFO", event.Metadata["agent"])
	assert.Equal(t, at, event.OccurredAt)
}

func TestWebhookNotifierPostsJSON(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := &WebhookNotifier{URL: srv.URL, Client: srv.Client()}
	require.NoError(t, n.Notify(context.Background(), Event{Code: xerrors.CodeStoreFailure, Agent: "Tax"}))
	assert.Equal(t, "Tax", got.Agent)
}

func TestWebhookNotifierReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := &WebhookNotifier{URL: srv.URL}
	assert.Error(t, n.Notify(context.Background(), Event{}))
	assert.NoError(t, (&WebhookNotifier{}).Notify(context.Background(), Event{}))
}

func TestLogNotifierNeverFails(t *testing.T) {
	n := &LogNotifier{Logger: logger.Discard()}
	assert.NoError(t, n.Notify(context.Background(), Event{Message: "x", Metadata: map[string]string{"k": "v"}}))
}
