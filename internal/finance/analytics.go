package finance

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"Freelance-Autopilot/internal/domain"
	xerrors "Freelance-Autopilot/internal/errors"
)

const (
	// MetricsWindow 是计算燃烧率的回溯窗口。
	MetricsWindow = 90 * 24 * time.Hour
	// TargetRunwayDays 是健康分满分对应的跑道天数。
	TargetRunwayDays = 180.0
	// DefaultTaxRate 是估算税负时使用的统一税率。
	DefaultTaxRate = 0.30
)

var (
	three  = decimal.NewFromInt(3)
	thirty = decimal.NewFromInt(30)
)

// Metrics 汇总用户当前的现金状况。
type Metrics struct {
	Liquidity   decimal.Decimal `json:"liquidity"`
	MonthlyBurn decimal.Decimal `json:"monthly_burn"`
	RunwayDays  float64         `json:"runway_days"`
	HealthScore int             `json:"health_score"`
}

// TaxLiability 是当前财年的税负估算。
type TaxLiability struct {
	FiscalYearStart time.Time       `json:"fiscal_year_start"`
	TotalIncome     decimal.Decimal `json:"total_income"`
	EstimatedTaxDue decimal.Decimal `json:"estimated_tax_due"`
}

// ComputeMetrics 基于窗口内的交易与最近一笔交易计算现金指标。
// latest 为空或没有 BalanceAfter 时流动资金记为 0。
func ComputeMetrics(window []domain.Transaction, latest *domain.Transaction, asOf time.Time) Metrics {
	liquidity := decimal.Zero
	if latest != nil && latest.BalanceAfter != nil {
		liquidity = *latest.BalanceAfter
	}

	since := asOf.Add(-MetricsWindow)
	debits := decimal.Zero
	for _, txn := range window {
		if txn.Direction != domain.Debit {
			continue
		}
		if txn.OccurredAt.Before(since) || txn.OccurredAt.After(asOf) {
			continue
		}
		debits = debits.Add(txn.Amount)
	}
	burn := debits.Div(three)

	runway := 0.0
	if burn.IsPositive() {
		runway = liquidity.Mul(thirty).Div(burn).InexactFloat64()
	}
	return Metrics{
		Liquidity:   liquidity,
		MonthlyBurn: burn,
		RunwayDays:  runway,
		HealthScore: HealthScore(runway),
	}
}

// HealthScore 将跑道天数映射到 [0, 100]，180 天为满分。
func HealthScore(runwayDays float64) int {
	if math.IsNaN(runwayDays) || runwayDays <= 0 {
		return 0
	}
	score := math.Round(runwayDays / TargetRunwayDays * 100)
	if score > 100 {
		return 100
	}
	return int(score)
}

// FiscalYearStart 返回 asOf 所在财年的开始日期（4 月 1 日）。
func FiscalYearStart(asOf time.Time) time.Time {
	year := asOf.Year()
	if asOf.Month() < time.April {
		year--
	}
	return time.Date(year, time.April, 1, 0, 0, 0, 0, asOf.Location())
}

// ComputeTaxLiability 汇总财年开始至 asOf 的入账并按 rate 估算税负。
func ComputeTaxLiability(txns []domain.Transaction, asOf time.Time, rate float64) TaxLiability {
	start := FiscalYearStart(asOf)
	income := decimal.Zero
	for _, txn := range txns {
		if txn.Direction != domain.Credit {
			continue
		}
		if txn.OccurredAt.Before(start) || txn.OccurredAt.After(asOf) {
			continue
		}
		income = income.Add(txn.Amount)
	}
	return TaxLiability{
		FiscalYearStart: start,
		TotalIncome:     income,
		EstimatedTaxDue: income.Mul(decimal.NewFromFloat(rate)).Round(0),
	}
}

// TransactionReader 是分析所需的最小只读存储能力。
type TransactionReader interface {
	FindRecentTransactions(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error)
	FindLatestTransaction(ctx context.Context, userID string) (*domain.Transaction, error)
}

// Analytics 从存储读取交易并计算指标。
type Analytics struct {
	reader  TransactionReader
	taxRate float64
}

// NewAnalytics 构造 Analytics，rate 非正时使用 DefaultTaxRate。
func NewAnalytics(reader TransactionReader, taxRate float64) *Analytics {
	if taxRate <= 0 {
		taxRate = DefaultTaxRate
	}
	return &Analytics{reader: reader, taxRate: taxRate}
}

// Metrics 计算用户在 asOf 时刻的现金指标。
func (a *Analytics) Metrics(ctx context.Context, userID string, asOf time.Time) (Metrics, error) {
	if userID == "" {
		return Metrics{}, xerrors.New(xerrors.CodeMissingUser, "")
	}
	window, err := a.reader.FindRecentTransactions(ctx, userID, asOf.Add(-MetricsWindow))
	if err != nil {
		return Metrics{}, err
	}
	latest, err := a.reader.FindLatestTransaction(ctx, userID)
	if err != nil && !xerrors.HasCode(err, xerrors.CodeNotFound) {
		return Metrics{}, err
	}
	return ComputeMetrics(window, latest, asOf), nil
}

// TaxLiability 估算用户当前财年的税负。
func (a *Analytics) TaxLiability(ctx context.Context, userID string, asOf time.Time) (TaxLiability, error) {
	if userID == "" {
		return TaxLiability{}, xerrors.New(xerrors.CodeMissingUser, "")
	}
	txns, err := a.reader.FindRecentTransactions(ctx, userID, FiscalYearStart(asOf))
	if err != nil {
		return TaxLiability{}, err
	}
	return ComputeTaxLiability(txns, asOf, a.taxRate), nil
}
