package finance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"Freelance-Autopilot/internal/domain"
)

func TestSmartSplitDefaultConfig(t *testing.T) {
	split, err := SmartSplit(decimal.NewFromInt(10000), domain.DefaultSplit)
	require.NoError(t, err)
	require.True(t, split.Tax.Equal(decimal.NewFromInt(3000)), split.Tax.String())
	require.True(t, split.Savings.Equal(decimal.NewFromInt(2000)), split.Savings.String())
	require.True(t, split.Buffer.Equal(decimal.NewFromInt(5000)), split.Buffer.String())
}

func TestSmartSplitReconstructsAmount(t *testing.T) {
	configs := []domain.SmartSplitConfig{
		domain.DefaultSplit,
		{TaxPct: 33, SavingsPct: 33, BufferPct: 34},
		{TaxPct: 0, SavingsPct: 0, BufferPct: 100},
		{TaxPct: 100, SavingsPct: 0, BufferPct: 0},
		{TaxPct: 17, SavingsPct: 41, BufferPct: 42},
	}
	amounts := []string{"0", "1", "3", "7.77", "999.99", "10001", "12345.67", "0.5"}

	for _, cfg := range configs {
		for _, raw := range amounts {
			amount := decimal.RequireFromString(raw)
			split, err := SmartSplit(amount, cfg)
			require.NoError(t, err)
			sum := split.Tax.Add(split.Savings).Add(split.Buffer)
			require.Truef(t, sum.Equal(amount), "cfg=%+v amount=%s sum=%s", cfg, raw, sum)
		}
	}
}

func TestSmartSplitRejectsInvalidConfig(t *testing.T) {
	_, err := SmartSplit(decimal.NewFromInt(100), domain.SmartSplitConfig{TaxPct: 50, SavingsPct: 50, BufferPct: 50})
	require.Error(t, err)
}

func TestResolveSplit(t *testing.T) {
	custom := domain.SmartSplitConfig{TaxPct: 25, SavingsPct: 25, BufferPct: 50}
	require.Equal(t, custom, ResolveSplit(domain.FreelancerProfile{SmartSplit: &custom}, domain.DefaultSplit))

	broken := domain.SmartSplitConfig{TaxPct: 90, SavingsPct: 90}
	require.Equal(t, domain.DefaultSplit, ResolveSplit(domain.FreelancerProfile{SmartSplit: &broken}, domain.DefaultSplit))
	require.Equal(t, domain.DefaultSplit, ResolveSplit(domain.FreelancerProfile{}, domain.SmartSplitConfig{}))
}
