// Package valuation implements the dividend discount model: a pure
// reduction from a forecasted dividend stream to a present value.
package valuation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/finmodel/internal/domain"
)

// InvalidValuationInputError reports a numerically invalid valuation
// parameter, rejected before anything is discounted.
type InvalidValuationInputError struct {
	Field   string
	Message string
}

func (e *InvalidValuationInputError) Error() string {
	return fmt.Sprintf("invalid valuation input %s: %s", e.Field, e.Message)
}

var one = decimal.NewFromInt(1)

// PresentValue discounts a dividend stream at a constant per-period
// rate: the sum over periods of dividend[p] / (1+rate)^p, with p
// starting at 1. If terminalGrowth is supplied, a terminal-value term
// (Gordon growth on the final dividend) is discounted from the horizon
// and added.
func PresentValue(dividends []decimal.Decimal, discountRate decimal.Decimal, terminalGrowth *decimal.Decimal) (decimal.Decimal, error) {
	if discountRate.LessThanOrEqual(one.Neg()) {
		return decimal.Zero, &InvalidValuationInputError{Field: "discount_rate",
			Message: "must be greater than -100%"}
	}
	if terminalGrowth != nil && terminalGrowth.GreaterThanOrEqual(discountRate) {
		return decimal.Zero, &InvalidValuationInputError{Field: "terminal_growth",
			Message: "must be below the discount rate"}
	}
	if len(dividends) == 0 {
		return decimal.Zero, &InvalidValuationInputError{Field: "dividends",
			Message: "empty dividend stream"}
	}

	pv := decimal.Zero
	for i, dividend := range dividends {
		factor := one.Add(discountRate).Pow(decimal.NewFromInt(int64(i + 1)))
		pv = pv.Add(dividend.Div(factor))
	}

	if terminalGrowth != nil {
		finalDividend := dividends[len(dividends)-1]
		terminalValue := finalDividend.Mul(one.Add(*terminalGrowth)).
			Div(discountRate.Sub(*terminalGrowth))
		horizon := one.Add(discountRate).Pow(decimal.NewFromInt(int64(len(dividends))))
		pv = pv.Add(terminalValue.Div(horizon))
	}
	return pv, nil
}

// DividendDiscountModel derives a dividend stream from a forecasted
// base item (net income times payout ratio per period) and discounts it.
type DividendDiscountModel struct {
	Company        *domain.Company
	BaseItem       string // item whose forecast drives dividends, e.g. Net_Income
	DiscountRate   decimal.Decimal
	PayoutRatio    decimal.Decimal
	TerminalGrowth *decimal.Decimal
	Periods        int
}

// CalculateValue computes the intrinsic total equity value from the
// base item's forecasted stream.
func (m *DividendDiscountModel) CalculateValue() (decimal.Decimal, error) {
	if m.PayoutRatio.IsNegative() || m.PayoutRatio.GreaterThan(one) {
		return decimal.Zero, &InvalidValuationInputError{Field: "payout_ratio",
			Message: "must be between 0 and 1"}
	}
	item, err := m.Company.FindItem(m.BaseItem)
	if err != nil {
		return decimal.Zero, err
	}
	periods := item.ForecastedPeriods()
	if m.Periods > 0 && len(periods) > m.Periods {
		periods = periods[:m.Periods]
	}
	if len(periods) == 0 {
		return decimal.Zero, &InvalidValuationInputError{Field: "dividends",
			Message: fmt.Sprintf("item %q has no forecasted values", m.BaseItem)}
	}

	dividends := make([]decimal.Decimal, len(periods))
	for i, p := range periods {
		dividends[i] = item.Forecasted[p].Mul(m.PayoutRatio)
	}
	return PresentValue(dividends, m.DiscountRate, m.TerminalGrowth)
}

// PerShare divides the intrinsic total value by shares outstanding.
func (m *DividendDiscountModel) PerShare(sharesOutstanding decimal.Decimal) (decimal.Decimal, error) {
	if sharesOutstanding.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, &InvalidValuationInputError{Field: "shares_outstanding",
			Message: "must be positive"}
	}
	total, err := m.CalculateValue()
	if err != nil {
		return decimal.Zero, err
	}
	return total.Div(sharesOutstanding), nil
}
