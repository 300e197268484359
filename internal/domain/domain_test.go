package domain

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeItemName(t *testing.T) {
	assert.Equal(t, "Net_Income", SanitizeItemName("Net Income"))
	assert.Equal(t, "Gross_Margin_%", SanitizeItemName("Gross Margin %"))
	assert.Equal(t, "P/E", SanitizeItemName("P/E"))
	assert.Equal(t, "Free_Cash_Flow", SanitizeItemName("Free-Cash-Flow"))
	assert.Equal(t, "_3M_Revenue", SanitizeItemName("3M Revenue"))
	assert.Equal(t, "Capex", SanitizeItemName("Capex!"))

	// Non-ASCII letters are dropped, not preserved: formula identifiers
	// are ASCII-only and every sanitized name must be referenceable.
	assert.Equal(t, "Caf", SanitizeItemName("Café"))
	assert.Equal(t, "berschuss", SanitizeItemName("Überschuss"))
	assert.Equal(t, "_3_Mrd", SanitizeItemName("3€ Mrd"))
}

func TestFinancialItemValuePrefersForecasted(t *testing.T) {
	item := NewFinancialItem("Revenue", ItemTypeRevenue)
	item.AddHistorical("2023", decimal.NewFromInt(900))
	item.AddForecasted("2024", decimal.NewFromInt(1000))

	v, ok := item.Value("2023")
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromInt(900)))

	v, ok = item.Value("2024")
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromInt(1000)))

	_, ok = item.Value("2025")
	assert.False(t, ok)
}

func TestFinancialItemLastHistoricalPeriod(t *testing.T) {
	item := NewFinancialItem("Revenue", ItemTypeRevenue)
	_, ok := item.LastHistoricalPeriod()
	assert.False(t, ok)

	item.AddHistorical("2021", decimal.NewFromInt(800))
	item.AddHistorical("2023", decimal.NewFromInt(1000))
	item.AddHistorical("2022", decimal.NewFromInt(900))

	last, ok := item.LastHistoricalPeriod()
	require.True(t, ok)
	assert.Equal(t, Period("2023"), last)
}

func TestStatementGetItem(t *testing.T) {
	stmt := NewStatement("Income Statement")
	stmt.AddItem(NewFinancialItem("Revenue", ItemTypeRevenue))

	_, err := stmt.GetItem("Revenue")
	assert.NoError(t, err)

	_, err = stmt.GetItem("COGS")
	var notFound *ItemNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "COGS", notFound.Name)
}

func TestCompanyFlatNamespace(t *testing.T) {
	company := NewCompany("ExampleCo", "EXC", "USD")
	company.IncomeStatement.AddItem(NewFinancialItem("Revenue", ItemTypeRevenue))
	company.BalanceSheet.AddItem(NewFinancialItem("Cash", ItemTypeAsset))

	require.NoError(t, company.BuildIndex())

	item, err := company.FindItem("Cash")
	require.NoError(t, err)
	assert.Equal(t, ItemTypeAsset, item.Type)

	_, err = company.FindItem("Goodwill")
	var notFound *ItemNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestCompanyIndexRejectsCollision(t *testing.T) {
	company := NewCompany("ExampleCo", "EXC", "USD")
	company.IncomeStatement.AddItem(NewFinancialItem("Dividends", ItemTypeDividend))
	company.CashFlowStatement.AddItem(NewFinancialItem("Dividends", ItemTypeCashFlowFinancing))

	err := company.BuildIndex()
	var dup *DuplicateItemNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "Dividends", dup.Name)
}

func TestCompanyCloneIsIndependent(t *testing.T) {
	company := NewCompany("ExampleCo", "EXC", "USD")
	revenue := NewFinancialItem("Revenue", ItemTypeRevenue)
	revenue.AddHistorical("2023", decimal.NewFromInt(1000))
	company.IncomeStatement.AddItem(revenue)

	clone := company.Clone()
	cloned, err := clone.FindItem("Revenue")
	require.NoError(t, err)
	cloned.AddForecasted("2024", decimal.NewFromInt(1100))

	base, err := company.FindItem("Revenue")
	require.NoError(t, err)
	assert.Empty(t, base.Forecasted, "mutating a clone must not touch the base")
}

func TestAssumptionSetOverrideDoesNotMutate(t *testing.T) {
	base := NewAssumptionSet()
	base.Set("revenue_growth", decimal.NewFromFloat(0.05))

	override := base.Override(map[string]decimal.Decimal{
		"revenue_growth": decimal.NewFromFloat(0.10),
	})

	v, ok := base.Get("revenue_growth")
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromFloat(0.05)))

	v, ok = override.Get("revenue_growth")
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromFloat(0.10)))
}

func TestAssumptionScheduleWinsOverScalar(t *testing.T) {
	as := NewAssumptionSet()
	as.Set("growth", decimal.NewFromFloat(0.05))
	as.SetSchedule("growth", map[Period]decimal.Decimal{
		"2025": decimal.NewFromFloat(0.08),
	})

	v, ok := as.GetForPeriod("growth", "2025")
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromFloat(0.08)))

	v, ok = as.GetForPeriod("growth", "2026")
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromFloat(0.05)))
}

func TestCompanySnapshotRoundTrip(t *testing.T) {
	company := NewCompany("ExampleCo", "EXC", "USD")
	revenue := NewFinancialItem("Revenue", ItemTypeRevenue)
	revenue.AddHistorical("2023", decimal.NewFromInt(1000))
	revenue.AddForecasted("2024", decimal.NewFromFloat(1050))
	company.IncomeStatement.AddItem(revenue)
	company.BalanceSheet.AddItem(NewFinancialItem("Cash", ItemTypeAsset))

	path := filepath.Join(t.TempDir(), "exampleco.json")
	require.NoError(t, company.SaveSnapshot(path))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, "ExampleCo", loaded.Name)

	item, err := loaded.FindItem("Revenue")
	require.NoError(t, err)
	v, ok := item.Value("2024")
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromFloat(1050)))

	v, ok = item.Value("2023")
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromInt(1000)))
}
