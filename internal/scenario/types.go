package scenario

import (
	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/finmodel/internal/domain"
	"github.com/rgehrsitz/finmodel/internal/kpi"
)

// Spec names one scenario: a label plus the scalar assumption overrides
// it applies on top of the base assumption set.
type Spec struct {
	Label     string
	Overrides map[string]decimal.Decimal
}

// Result is the outcome of one isolated scenario run.
type Result struct {
	Label string `json:"label"`

	// Per-period forecasted values for every ruled item.
	Forecasted map[string]map[domain.Period]decimal.Decimal `json:"forecasted"`

	// Per-period KPI values computed during the run.
	KPIs map[string]kpi.Series `json:"kpis"`

	IntrinsicValueTotal decimal.Decimal `json:"intrinsic_value_total"`
	FairValuePerShare   decimal.Decimal `json:"fair_value_per_share"`
	MarketPrice         decimal.Decimal `json:"market_price"`

	// MarginOfSafety = (fair value - market price) / fair value.
	MarginOfSafety decimal.Decimal `json:"margin_of_safety"`
}

// ComparisonSet aggregates the results of every scenario run against
// one base company, in the order the scenarios were requested.
type ComparisonSet struct {
	Company string   `json:"company"`
	Results []Result `json:"results"`
}
