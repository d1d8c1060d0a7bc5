// Package autopilot is a small HTTP client for the autopilotd REST API.
package autopilot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client.
const DefaultHTTPTimeout = 15 * time.Second

// UserHeader identifies the freelancer on every request.
const UserHeader = "X-User-ID"

// Client wraps the HTTP interactions with the autopilot API for one user.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userID     string
}

// ActionEntry is one action produced by a run. Payload is left raw so callers
// can decode only the kinds they care about and send entries back verbatim.
type ActionEntry struct {
	Agent   string          `json:"agent"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RunResult is the aggregated output of a synchronous run.
type RunResult struct {
	Actions []ActionEntry `json:"actions"`
	Logs    []string      `json:"logs"`
	Partial bool          `json:"partial"`
	Failed  []string      `json:"failed,omitempty"`
}

// RunRequest acknowledges an asynchronous run.
type RunRequest struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// RunRecord summarises a finished asynchronous run.
type RunRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Status      string    `json:"status"`
	ActionCount int       `json:"action_count"`
	Logs        []string  `json:"logs"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Execution describes the side effect of an executed action.
type Execution struct {
	Kind    string          `json:"kind"`
	Bid     json.RawMessage `json:"bid,omitempty"`
	Event   json.RawMessage `json:"event,omitempty"`
	Updated []string        `json:"updated_tasks,omitempty"`
}

// TaxLiability is the fiscal-year tax estimate.
type TaxLiability struct {
	FiscalYearStart time.Time       `json:"fiscal_year_start"`
	TotalIncome     decimal.Decimal `json:"total_income"`
	EstimatedTaxDue decimal.Decimal `json:"estimated_tax_due"`
}

// Stats is the cash position of the user.
type Stats struct {
	Liquidity   decimal.Decimal `json:"liquidity"`
	MonthlyBurn decimal.Decimal `json:"monthly_burn"`
	RunwayDays  float64         `json:"runway_days"`
	HealthScore int             `json:"health_score"`
	Tax         TaxLiability    `json:"tax"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("autopilot api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("autopilot api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client acting as userID. When httpClient is nil, a
// default client with DefaultHTTPTimeout is used.
func NewClient(rawURL, userID string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if userID == "" {
		return nil, errors.New("autopilot: user id is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient, userID: userID}, nil
}

// Run evaluates every agent for the user and returns the proposed actions.
func (c *Client) Run(ctx context.Context) (RunResult, error) {
	var result RunResult
	if err := c.send(ctx, http.MethodPost, "/api/v1/agents/run", nil, &result); err != nil {
		return RunResult{}, err
	}
	return result, nil
}

// SubmitRun queues an asynchronous run.
func (c *Client) SubmitRun(ctx context.Context) (RunRequest, error) {
	var req RunRequest
	if err := c.send(ctx, http.MethodPost, "/api/v1/agents/runs", nil, &req); err != nil {
		return RunRequest{}, err
	}
	return req, nil
}

// ListRuns returns the most recent asynchronous runs.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	endpoint := "/api/v1/agents/runs"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	var runs []RunRecord
	if err := c.send(ctx, http.MethodGet, endpoint, nil, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// Execute applies an action previously returned by Run.
func (c *Client) Execute(ctx context.Context, entry ActionEntry) (Execution, error) {
	var exec Execution
	if err := c.send(ctx, http.MethodPost, "/api/v1/agents/execute", entry, &exec); err != nil {
		return Execution{}, err
	}
	return exec, nil
}

// Stats fetches liquidity, burn, runway and the tax estimate.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := c.send(ctx, http.MethodGet, "/api/v1/finance/stats", nil, &stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (c *Client) send(ctx context.Context, method, endpoint string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	ref.Path = path.Join(c.baseURL.Path, ref.Path)
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.ResolveReference(ref).String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(UserHeader, c.userID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		_ = json.Unmarshal(data, &apiErr)
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
