package finance

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Freelance-Autopilot/internal/domain"
	xerrors "Freelance-Autopilot/internal/errors"
)

var asOf = time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)

func txn(dir domain.Direction, amount int64, daysAgo int) domain.Transaction {
	return domain.Transaction{
		ID:         "t",
		UserID:     "u1",
		Amount:     decimal.NewFromInt(amount),
		Direction:  dir,
		OccurredAt: asOf.AddDate(0, 0, -daysAgo),
	}
}

func withBalance(t domain.Transaction, balance int64) *domain.Transaction {
	b := decimal.NewFromInt(balance)
	t.BalanceAfter = &b
	return &t
}

func TestComputeMetrics(t *testing.T) {
	window := []domain.Transaction{
		txn(domain.Debit, 3000, 10),
		txn(domain.Debit, 6000, 40),
		txn(domain.Credit, 50000, 5),
		txn(domain.Debit, 100000, 120), // outside the window
	}
	latest := withBalance(txn(domain.Credit, 50000, 5), 18000)

	m := ComputeMetrics(window, latest, asOf)
	assert.True(t, m.Liquidity.Equal(decimal.NewFromInt(18000)))
	assert.True(t, m.MonthlyBurn.Equal(decimal.NewFromInt(3000)))
	assert.InDelta(t, 180.0, m.RunwayDays, 1e-9)
	assert.Equal(t, 100, m.HealthScore)
}

func TestComputeMetricsNoBurnNoDivision(t *testing.T) {
	m := ComputeMetrics([]domain.Transaction{txn(domain.Credit, 500, 1)}, withBalance(txn(domain.Credit, 500, 1), 900), asOf)
	assert.Zero(t, m.RunwayDays)
	assert.Equal(t, 0, m.HealthScore)
	assert.False(t, math.IsNaN(m.RunwayDays))

	empty := ComputeMetrics(nil, nil, asOf)
	assert.True(t, empty.Liquidity.IsZero())
	assert.Zero(t, empty.RunwayDays)
}

func TestHealthScoreBounds(t *testing.T) {
	for _, runway := range []float64{-50, 0, 1, 89.9, 90, 179, 180, 5000, math.Inf(1), math.NaN()} {
		score := HealthScore(runway)
		assert.GreaterOrEqual(t, score, 0, "runway %v", runway)
		assert.LessOrEqual(t, score, 100, "runway %v", runway)
	}
	assert.Equal(t, 50, HealthScore(90))
}

func TestFiscalYearStart(t *testing.T) {
	assert.Equal(t, time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC), FiscalYearStart(asOf))
	assert.Equal(t, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		FiscalYearStart(time.Date(2026, time.March, 31, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
		FiscalYearStart(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)))
}

func TestComputeTaxLiabilityFiscalYearIncome(t *testing.T) {
	txns := []domain.Transaction{
		txn(domain.Credit, 120000, 100),
		txn(domain.Credit, 80000, 3),
		txn(domain.Debit, 40000, 3),
		txn(domain.Credit, 70000, 250), // previous fiscal year
	}
	liability := ComputeTaxLiability(txns, asOf, DefaultTaxRate)
	assert.True(t, liability.TotalIncome.Equal(decimal.NewFromInt(200000)))
	assert.True(t, liability.EstimatedTaxDue.Equal(decimal.NewFromInt(60000)), liability.EstimatedTaxDue.String())
}

type fakeReader struct {
	window []domain.Transaction
	latest *domain.Transaction
	since  time.Time
}

func (f *fakeReader) FindRecentTransactions(_ context.Context, _ string, since time.Time) ([]domain.Transaction, error) {
	f.since = since
	return f.window, nil
}

func (f *fakeReader) FindLatestTransaction(context.Context, string) (*domain.Transaction, error) {
	if f.latest == nil {
		return nil, xerrors.New(xerrors.CodeNotFound, "")
	}
	return f.latest, nil
}

func TestAnalyticsUsesStoreWindows(t *testing.T) {
	reader := &fakeReader{window: []domain.Transaction{txn(domain.Debit, 900, 2)}}
	a := NewAnalytics(reader, 0)

	m, err := a.Metrics(context.Background(), "u1", asOf)
	require.NoError(t, err)
	assert.True(t, m.Liquidity.IsZero())
	assert.Equal(t, asOf.Add(-MetricsWindow), reader.since)

	_, err = a.TaxLiability(context.Background(), "u1", asOf)
	require.NoError(t, err)
	assert.Equal(t, FiscalYearStart(asOf), reader.since)

	_, err = a.Metrics(context.Background(), "", asOf)
	assert.True(t, xerrors.HasCode(err, xerrors.CodeMissingUser))
}
