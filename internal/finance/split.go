package finance

import (
	"github.com/shopspring/decimal"

	"Freelance-Autopilot/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Split 是一笔入账按比例拆分后的三个部分。
type Split struct {
	Amount  decimal.Decimal `json:"amount"`
	Tax     decimal.Decimal `json:"tax"`
	Savings decimal.Decimal `json:"savings"`
	Buffer  decimal.Decimal `json:"buffer"`
}

// SmartSplit 按配置拆分金额。税费与储蓄四舍五入到整数，缓冲部分用减法得到，
// 因此三者之和始终精确等于原金额。
func SmartSplit(amount decimal.Decimal, cfg domain.SmartSplitConfig) (Split, error) {
	if err := cfg.Validate(); err != nil {
		return Split{}, err
	}
	tax := decimal.NewFromInt(cfg.TaxPct).Div(hundred).Mul(amount).Round(0)
	savings := decimal.NewFromInt(cfg.SavingsPct).Div(hundred).Mul(amount).Round(0)
	return Split{
		Amount:  amount,
		Tax:     tax,
		Savings: savings,
		Buffer:  amount.Sub(tax).Sub(savings),
	}, nil
}

// ResolveSplit 返回用户自定义的比例，未配置或配置非法时使用默认值。
func ResolveSplit(profile domain.FreelancerProfile, fallback domain.SmartSplitConfig) domain.SmartSplitConfig {
	if profile.SmartSplit != nil && profile.SmartSplit.Validate() == nil {
		return *profile.SmartSplit
	}
	if fallback.Validate() != nil {
		return domain.DefaultSplit
	}
	return fallback
}
