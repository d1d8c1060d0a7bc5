package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Freelance-Autopilot/internal/domain"
)

func TestLoadFixture(t *testing.T) {
	fx, err := LoadFixture(filepath.Join("testdata", "fixture.yaml"))
	require.NoError(t, err)

	require.Len(t, fx.Profiles, 1)
	assert.True(t, fx.Profiles[0].HourlyRate.Equal(decimal.NewFromInt(2500)))
	assert.Equal(t, int64(30), fx.Profiles[0].SmartSplit.TaxPct)

	require.Len(t, fx.Transactions, 2)
	assert.Equal(t, domain.Credit, fx.Transactions[0].Direction, "direction is normalised")
	assert.True(t, fx.Transactions[0].Amount.Equal(decimal.RequireFromString("45000.50")))
	require.NotNil(t, fx.Transactions[0].BalanceAfter)
}

func TestFixtureShiftAndSeed(t *testing.T) {
	fx, err := LoadFixture(filepath.Join("testdata", "fixture.yaml"))
	require.NoError(t, err)

	now := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	delta := now.Sub(*fx.Anchor)
	original := fx.Tasks[0].DueDate.Add(0)
	fx.Shift(now)
	assert.True(t, fx.Tasks[0].DueDate.Equal(original.Add(delta)))

	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, fx.Seed(ctx, s))

	latest, err := s.FindLatestTransaction(ctx, "user_100")
	require.NoError(t, err)
	assert.Equal(t, "txn_2", latest.ID)

	jobs, err := s.FindOpenJobs(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	require.NoError(t, fx.Seed(ctx, s))
	events, err := s.FindCalendarEvents(ctx, "user_100", time.Unix(0, 0), now.AddDate(10, 0, 0))
	require.NoError(t, err)
	assert.Len(t, events, len(fx.Events))
}

func TestParseFixtureRejectsBadInput(t *testing.T) {
	_, err := ParseFixture([]byte("transactions:\n  - id: t\n    user_id: u\n    direction: sideways\n"))
	assert.Error(t, err)

	_, err = ParseFixture([]byte("profiles:\n  - user_id: u\n    smart_split: {tax_pct: 50, savings_pct: 50, buffer_pct: 50}\n"))
	assert.Error(t, err)
}
