package tax

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Freelance-Autopilot/internal/agent"
	"Freelance-Autopilot/internal/domain"
	"Freelance-Autopilot/pkg/logger"
)

var now = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	txns   []domain.Transaction
	since  time.Time
	writes int
}

func (f *fakeStore) FindRecentTransactions(_ context.Context, _ string, since time.Time) ([]domain.Transaction, error) {
	f.since = since
	var out []domain.Transaction
	for _, t := range f.txns {
		if !t.OccurredAt.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateTransactionCategory(_ context.Context, id, category string, deductible bool) (bool, error) {
	for i := range f.txns {
		if f.txns[i].ID != id {
			continue
		}
		if f.txns[i].Categorized() {
			return false, nil
		}
		f.writes++
		f.txns[i].Category = &category
		f.txns[i].Deductible = &deductible
		return true, nil
	}
	return false, nil
}

func txn(id string, dir domain.Direction, narration string, age time.Duration) domain.Transaction {
	return domain.Transaction{
		ID: id, UserID: "u1", Amount: decimal.NewFromInt(100), Direction: dir,
		Narration: narration, OccurredAt: now.Add(-age),
	}
}

func testEnv() agent.Env {
	return agent.Env{Logger: logger.Discard(), Now: func() time.Time { return now }}
}

func TestClassify(t *testing.T) {
	cases := map[string]Classification{
		"AWS invoice #123":         {CategorySoftware, true},
		"Uber trip to client":      {CategoryTravel, true},
		"WeWork monthly pass":      {CategoryOffice, true},
		"Grocery store":            {CategoryGeneral, false},
		"GitHub Copilot subscribe": {CategorySoftware, true},
		"":                         {CategoryGeneral, false},
	}
	for narration, want := range cases {
		assert.Equal(t, want, Classify(narration, DefaultTaxonomy), narration)
	}
}

func TestShouldAct(t *testing.T) {
	rule := NewRule(&fakeStore{}, DefaultPolicy(), testEnv())
	assert.True(t, rule.ShouldAct(txn("a", domain.Debit, "aws", 0)))
	assert.False(t, rule.ShouldAct(txn("b", domain.Credit, "client payment", 0)))

	done := txn("c", domain.Debit, "aws", 0)
	cat := CategorySoftware
	done.Category = &cat
	assert.False(t, rule.ShouldAct(done))
}

func TestUnitCategorizesWindowNewestFirst(t *testing.T) {
	store := &fakeStore{txns: []domain.Transaction{
		txn("old", domain.Debit, "uber", 100*24*time.Hour),
		txn("a", domain.Debit, "figma", 5*24*time.Hour),
		txn("b", domain.Debit, "lunch", 1*24*time.Hour),
		txn("c", domain.Credit, "payment", 2*24*time.Hour),
	}}
	unit := NewUnit(store, Policy{BatchSize: 5}, testEnv())

	out, err := unit.Step(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, store.since.Equal(now.Add(-90*24*time.Hour)))
	require.Len(t, out.Actions, 2)
	assert.Equal(t, agent.ExpenseCategorized{TransactionID: "b", Category: CategoryGeneral, Deductible: false}, out.Actions[0])
	assert.Equal(t, agent.ExpenseCategorized{TransactionID: "a", Category: CategorySoftware, Deductible: true}, out.Actions[1])

	out, err = unit.Step(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, out.Actions)
	assert.Equal(t, 2, store.writes)
}

func TestBatchSizeCapsWork(t *testing.T) {
	store := &fakeStore{txns: []domain.Transaction{
		txn("a", domain.Debit, "x", time.Hour),
		txn("b", domain.Debit, "y", 2*time.Hour),
		txn("c", domain.Debit, "z", 3*time.Hour),
	}}
	out, err := NewUnit(store, Policy{BatchSize: 2}, testEnv()).Step(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, out.Actions, 2)
	assert.Nil(t, store.txns[2].Category)
}
