package cfo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Freelance-Autopilot/internal/agent"
	"Freelance-Autopilot/internal/domain"
	xerrors "Freelance-Autopilot/internal/errors"
	"Freelance-Autopilot/internal/llm"
	"Freelance-Autopilot/pkg/logger"
)

type fakeStore struct {
	profile       *domain.FreelancerProfile
	latest        *domain.Transaction
	notifications []domain.Notification
	insertErr     error
}

func (f *fakeStore) GetProfile(context.Context, string) (*domain.FreelancerProfile, error) {
	if f.profile == nil {
		return nil, xerrors.New(xerrors.CodeNotFound, "")
	}
	return f.profile, nil
}

func (f *fakeStore) FindLatestTransaction(context.Context, string) (*domain.Transaction, error) {
	if f.latest == nil {
		return nil, xerrors.New(xerrors.CodeNotFound, "")
	}
	return f.latest, nil
}

func (f *fakeStore) InsertNotification(_ context.Context, n domain.Notification) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.notifications = append(f.notifications, n)
	return nil
}

func testEnv() agent.Env {
	client := llm.ClientFunc(func(context.Context, llm.Request) (*llm.Response, error) {
		return nil, errors.New("down")
	})
	return agent.Env{
		Text:   llm.NewGuard(client, llm.WithLogger(logger.Discard())),
		Logger: logger.Discard(),
		Now:    func() time.Time { return time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC) },
		NewID:  func() string { return "n-1" },
	}
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func debit(balance int64) domain.Transaction {
	b := dec(balance)
	return domain.Transaction{ID: "t-debit", UserID: "u1", Amount: dec(500), Direction: domain.Debit, BalanceAfter: &b}
}

func TestSmartSplitScenario(t *testing.T) {
	store := &fakeStore{latest: &domain.Transaction{ID: "t1", UserID: "u1", Amount: dec(10000), Direction: domain.Credit}}
	out, err := NewUnit(store, DefaultPolicy(), testEnv()).Step(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, out.Actions, 1)

	split, ok := out.Actions[0].(agent.SmartSplit)
	require.True(t, ok)
	assert.True(t, split.Tax.Equal(dec(3000)))
	assert.True(t, split.Savings.Equal(dec(2000)))
	assert.True(t, split.Buffer.Equal(dec(5000)))

	require.Len(t, store.notifications, 1)
	n := store.notifications[0]
	assert.Equal(t, domain.NotificationActionRequired, n.Type)
	assert.Equal(t, "t1", n.RelatedEntityID)
	assert.Equal(t, map[string]any{"tax": "3000", "savings": "2000", "buffer": "5000"}, n.Metadata["split"])
	assert.Equal(t, "10000", n.Metadata["originalAmount"])
	assert.Contains(t, n.Message, "Tax ₹3000.00")
}

func TestProfileSplitOverride(t *testing.T) {
	store := &fakeStore{
		profile: &domain.FreelancerProfile{UserID: "u1", SmartSplit: &domain.SmartSplitConfig{TaxPct: 25, SavingsPct: 25, BufferPct: 50}},
		latest:  &domain.Transaction{ID: "t1", UserID: "u1", Amount: decimal.RequireFromString("999"), Direction: domain.Credit},
	}
	out, err := NewUnit(store, DefaultPolicy(), testEnv()).Step(context.Background(), "u1")
	require.NoError(t, err)
	split := out.Actions[0].(agent.SmartSplit)
	assert.True(t, split.Tax.Add(split.Savings).Add(split.Buffer).Equal(decimal.RequireFromString("999")))
	assert.Equal(t, int64(25), split.Config.TaxPct)
}

func TestLowBalanceScenario(t *testing.T) {
	profile := &domain.FreelancerProfile{UserID: "u1", CheckingBalance: dec(10000)}

	low := debit(1000)
	store := &fakeStore{profile: profile, latest: &low}
	out, err := NewUnit(store, DefaultPolicy(), testEnv()).Step(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, out.Actions, 1)
	alert := out.Actions[0].(agent.LowBalanceAlert)
	assert.True(t, alert.Threshold.Equal(dec(1500)))
	assert.Equal(t, SuggestedActions, alert.SuggestedActions)
	require.Len(t, store.notifications, 1)
	assert.Equal(t, domain.NotificationSystem, store.notifications[0].Type)

	healthy := debit(2000)
	store = &fakeStore{profile: profile, latest: &healthy}
	out, err = NewUnit(store, DefaultPolicy(), testEnv()).Step(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, out.Actions)
	assert.Empty(t, store.notifications)
}

func TestLowBalanceBoundaryIsStrict(t *testing.T) {
	rule := NewRule(&fakeStore{}, DefaultPolicy(), testEnv())
	profile := domain.FreelancerProfile{CheckingBalance: dec(10000)}

	assert.False(t, rule.ShouldAct(Candidate{Txn: debit(1500), Profile: profile}))
	just := decimal.RequireFromString("1499.99")
	below := debit(0)
	below.BalanceAfter = &just
	assert.True(t, rule.ShouldAct(Candidate{Txn: below, Profile: profile}))
}

func TestShouldActEdgeCases(t *testing.T) {
	rule := NewRule(&fakeStore{}, DefaultPolicy(), testEnv())
	profile := domain.FreelancerProfile{CheckingBalance: dec(10000)}

	unknown := debit(1)
	unknown.BalanceAfter = nil
	assert.False(t, rule.ShouldAct(Candidate{Txn: unknown, Profile: profile}), "unknown balance")

	zeroCredit := domain.Transaction{Direction: domain.Credit, Amount: decimal.Zero}
	assert.False(t, rule.ShouldAct(Candidate{Txn: zeroCredit, Profile: profile}))

	malformed := debit(1)
	malformed.Direction = ""
	assert.False(t, rule.ShouldAct(Candidate{Txn: malformed, Profile: profile}))
}

func TestNoTransactionsNoAction(t *testing.T) {
	out, err := NewUnit(&fakeStore{}, DefaultPolicy(), testEnv()).Step(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, out.Actions)
}

func TestNotificationFailureFailsStep(t *testing.T) {
	store := &fakeStore{
		latest:    &domain.Transaction{ID: "t1", UserID: "u1", Amount: dec(100), Direction: domain.Credit},
		insertErr: xerrors.New(xerrors.CodeStoreFailure, ""),
	}
	_, err := NewUnit(store, DefaultPolicy(), testEnv()).Step(context.Background(), "u1")
	assert.True(t, xerrors.HasCode(err, xerrors.CodeStoreFailure))
}
