package valuation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgehrsitz/finmodel/internal/domain"
)

func dec(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

func TestPresentValueDiscountsStream(t *testing.T) {
	dividends := []decimal.Decimal{decimal.NewFromInt(100), decimal.NewFromInt(100)}
	pv, err := PresentValue(dividends, decimal.NewFromFloat(0.10), nil)
	require.NoError(t, err)
	// 100/1.1 + 100/1.21
	assert.InDelta(t, 173.553719, pv.InexactFloat64(), 1e-4)
}

func TestPresentValueWithTerminalValue(t *testing.T) {
	dividends := []decimal.Decimal{decimal.NewFromInt(100)}
	pv, err := PresentValue(dividends, decimal.NewFromFloat(0.08), dec(0.02))
	require.NoError(t, err)
	// (100 + 100*1.02/0.06) / 1.08 = 1800/1.08
	assert.InDelta(t, 1666.6667, pv.InexactFloat64(), 1e-3)
}

func TestPresentValueRejectsBadInputs(t *testing.T) {
	var inputErr *InvalidValuationInputError
	one := []decimal.Decimal{decimal.NewFromInt(100)}

	_, err := PresentValue(one, decimal.NewFromInt(-1), nil)
	assert.ErrorAs(t, err, &inputErr)

	_, err = PresentValue(one, decimal.NewFromFloat(0.05), dec(0.05))
	assert.ErrorAs(t, err, &inputErr)

	_, err = PresentValue(one, decimal.NewFromFloat(0.05), dec(0.08))
	assert.ErrorAs(t, err, &inputErr)

	_, err = PresentValue(nil, decimal.NewFromFloat(0.05), nil)
	assert.ErrorAs(t, err, &inputErr)
}

func forecastedCompany(t *testing.T) *domain.Company {
	t.Helper()
	company := domain.NewCompany("ExampleCo", "EXC", "USD")
	netIncome := domain.NewFinancialItem("Net_Income", domain.ItemTypeResult)
	netIncome.AddHistorical("2023", decimal.NewFromInt(90))
	netIncome.AddForecasted("2024", decimal.NewFromInt(100))
	netIncome.AddForecasted("2025", decimal.NewFromInt(110))
	company.IncomeStatement.AddItem(netIncome)
	require.NoError(t, company.BuildIndex())
	return company
}

func TestCalculateValueFromForecast(t *testing.T) {
	ddm := &DividendDiscountModel{
		Company:      forecastedCompany(t),
		BaseItem:     "Net_Income",
		DiscountRate: decimal.NewFromFloat(0.10),
		PayoutRatio:  decimal.NewFromFloat(0.5),
	}
	total, err := ddm.CalculateValue()
	require.NoError(t, err)
	// 50/1.1 + 55/1.21
	assert.InDelta(t, 90.909091, total.InexactFloat64(), 1e-4)
}

func TestCalculateValueRejectsPayoutOutOfRange(t *testing.T) {
	var inputErr *InvalidValuationInputError
	for _, payout := range []float64{-0.1, 1.1} {
		ddm := &DividendDiscountModel{
			Company:      forecastedCompany(t),
			BaseItem:     "Net_Income",
			DiscountRate: decimal.NewFromFloat(0.10),
			PayoutRatio:  decimal.NewFromFloat(payout),
		}
		_, err := ddm.CalculateValue()
		assert.ErrorAs(t, err, &inputErr, "payout %v", payout)
	}
}

func TestCalculateValueRequiresForecast(t *testing.T) {
	company := domain.NewCompany("ExampleCo", "EXC", "USD")
	netIncome := domain.NewFinancialItem("Net_Income", domain.ItemTypeResult)
	netIncome.AddHistorical("2023", decimal.NewFromInt(90))
	company.IncomeStatement.AddItem(netIncome)
	require.NoError(t, company.BuildIndex())

	ddm := &DividendDiscountModel{
		Company:      company,
		BaseItem:     "Net_Income",
		DiscountRate: decimal.NewFromFloat(0.10),
		PayoutRatio:  decimal.NewFromInt(1),
	}
	_, err := ddm.CalculateValue()
	var inputErr *InvalidValuationInputError
	assert.ErrorAs(t, err, &inputErr)
}

func TestCalculateValueTruncatesToHorizon(t *testing.T) {
	ddm := &DividendDiscountModel{
		Company:      forecastedCompany(t),
		BaseItem:     "Net_Income",
		DiscountRate: decimal.Zero,
		PayoutRatio:  decimal.NewFromInt(1),
		Periods:      1,
	}
	total, err := ddm.CalculateValue()
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(100)), "only the first forecasted period counts")
}

func TestPerShare(t *testing.T) {
	ddm := &DividendDiscountModel{
		Company:      forecastedCompany(t),
		BaseItem:     "Net_Income",
		DiscountRate: decimal.Zero,
		PayoutRatio:  decimal.NewFromInt(1),
	}
	perShare, err := ddm.PerShare(decimal.NewFromInt(100))
	require.NoError(t, err)
	// (100 + 110) / 100 shares
	assert.True(t, perShare.Equal(decimal.NewFromFloat(2.1)))

	_, err = ddm.PerShare(decimal.Zero)
	var inputErr *InvalidValuationInputError
	assert.ErrorAs(t, err, &inputErr)
}
