package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHandlerExposesObservedSeries(t *testing.T) {
	ObserveHTTPRequest("/api/v1/agents/run", http.MethodPost, 500, 30*time.Millisecond)
	ObserveAgentStep("CFO", OutcomeOK, 10*time.Millisecond)
	ObserveAction("CFO", "smart_split")
	ObserveRun("succeeded")
	TextGeneration{}.ObserveTextGeneration("fallback", time.Second)

	body := scrape(t)
	assert.Contains(t, body, `autopilot_http_requests_total{code="500",handler="/api/v1/agents/run",method="POST"}`)
	assert.Contains(t, body, `autopilot_http_request_errors_total{handler="/api/v1/agents/run",method="POST"}`)
	assert.Contains(t, body, `autopilot_agent_steps_total{agent="CFO",outcome="ok"}`)
	assert.Contains(t, body, `autopilot_actions_total{agent="CFO",kind="smart_split"}`)
	assert.Contains(t, body, `autopilot_runs_total{status="succeeded"}`)
	assert.Contains(t, body, `autopilot_text_generation_total{outcome="fallback"}`)
}

func TestStartServerRequiresAddress(t *testing.T) {
	assert.Error(t, StartServer(t.Context(), ""))
}
