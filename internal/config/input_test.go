package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgehrsitz/finmodel/internal/domain"
	"github.com/rgehrsitz/finmodel/internal/forecast"
	"github.com/rgehrsitz/finmodel/internal/kpi"
)

func writeModel(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	model, err := NewInputParser().LoadFromFile("testdata/exampleco.yaml")
	require.NoError(t, err)

	assert.Equal(t, "ExampleCo", model.Company.Name)
	assert.Equal(t, "EXC", model.Company.Ticker)
	assert.Equal(t, 2, model.Periods)

	// Display names are sanitized into formula-safe identifiers.
	item, err := model.Company.FindItem("Net_Income")
	require.NoError(t, err)
	v, ok := item.Value("2023")
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromInt(200)))

	require.Len(t, model.Rules, 3)
	assert.Equal(t, "Net_Income", model.Rules[2].Target)
	assert.Equal(t, forecast.MethodKPIDriven, model.Rules[1].Method)
	assert.Equal(t, []string{"Revenue"}, model.Rules[1].DependsOn)

	require.Len(t, model.KPIs, 2)
	assert.Equal(t, "Net_Margin", model.KPIs[1].Name)

	growth, ok := model.Assumptions.GetForPeriod("revenue_growth", "2025")
	require.True(t, ok)
	assert.True(t, growth.Equal(decimal.NewFromFloat(0.04)), "schedule overrides the scalar for 2025")

	assert.Equal(t, "Net_Income", model.Valuation.DividendBaseItem)
	require.NotNil(t, model.Valuation.TerminalGrowth)
	assert.True(t, model.SharesOutstanding.Equal(decimal.NewFromInt(100)))
	assert.True(t, model.MarketPrice.Equal(decimal.NewFromFloat(1.5)))

	require.Len(t, model.Scenarios, 2)
	assert.Equal(t, "bull", model.Scenarios[1].Label)
}

func TestLoadedModelRuns(t *testing.T) {
	model, err := NewInputParser().LoadFromFile("testdata/exampleco.yaml")
	require.NoError(t, err)

	fm, err := forecast.NewForecastModel(model.Company, model.Assumptions, model.Periods)
	require.NoError(t, err)
	for _, rule := range model.Rules {
		require.NoError(t, fm.AddForecastRule(rule))
	}
	for _, def := range model.KPIs {
		require.NoError(t, fm.AddKPI(def.Name, def.Formula))
	}
	require.NoError(t, fm.Run(context.Background()))

	revenue, err := model.Company.FindItem("Revenue")
	require.NoError(t, err)
	v, ok := revenue.Value("2024")
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromInt(1050)))

	// 2025 uses the scheduled 4% instead of the scalar 5%.
	v, ok = revenue.Value("2025")
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromInt(1092)))

	// complement_of holds gross margin at 60%, so COGS is 40% of Revenue.
	cogs, err := model.Company.FindItem("COGS")
	require.NoError(t, err)
	v, ok = cogs.Value("2024")
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromInt(420)))
}

func TestLoadFromFileMissingFile(t *testing.T) {
	_, err := NewInputParser().LoadFromFile("testdata/nope.yaml")
	assert.ErrorContains(t, err, "failed to read file")
}

const minimalHeader = `
company:
  name: ExampleCo
income_statement:
  - name: Revenue
    type: Revenue
    historical:
      "2023": 1000
periods: 1
`

func TestLoadFromFileValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing company name",
			yaml: `
periods: 1
`,
			wantErr: "company name is required",
		},
		{
			name: "nonpositive periods",
			yaml: `
company:
  name: ExampleCo
periods: 0
`,
			wantErr: "periods must be positive",
		},
		{
			name: "unknown item type",
			yaml: `
company:
  name: ExampleCo
income_statement:
  - name: Revenue
    type: Turnover
periods: 1
`,
			wantErr: "unknown type",
		},
		{
			name: "malformed period",
			yaml: `
company:
  name: ExampleCo
income_statement:
  - name: Revenue
    type: Revenue
    historical:
      "2023Q5": 1000
periods: 1
`,
			wantErr: "2023Q5",
		},
		{
			name: "unknown rule method",
			yaml: minimalHeader + `
rules:
  - target: Revenue
    method: extrapolate
`,
			wantErr: "unknown method",
		},
		{
			name: "custom function not allowed in model file",
			yaml: minimalHeader + `
rules:
  - target: Revenue
    method: custom_function
`,
			wantErr: "registered through the API",
		},
		{
			name: "unknown kpi transform",
			yaml: minimalHeader + `
rules:
  - target: Revenue
    method: kpi_driven
    kpi: Ratio
    source: Revenue
    transform: inverse_of
`,
			wantErr: "unknown transform",
		},
		{
			name: "valuation base item not found",
			yaml: minimalHeader + `
valuation:
  discount_rate: 0.1
  payout_ratio: 0.5
  shares_outstanding: 100
  market_price: 1
`,
			wantErr: `"Net_Income" not found`,
		},
		{
			name: "scenario without label",
			yaml: minimalHeader + `
scenarios:
  - overrides:
      revenue_growth: 0.1
`,
			wantErr: "scenario without a label",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewInputParser().LoadFromFile(writeModel(t, tc.yaml))
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadFromFileDuplicateRuleTarget(t *testing.T) {
	path := writeModel(t, minimalHeader+`
rules:
  - target: Revenue
    method: growth_rate
    rate: 0.05
  - target: Revenue
    method: growth_rate
    rate: 0.10
`)
	_, err := NewInputParser().LoadFromFile(path)
	var dup *forecast.DuplicateTargetError
	assert.ErrorAs(t, err, &dup)
}

func TestLoadFromFileItemNameCollision(t *testing.T) {
	path := writeModel(t, `
company:
  name: ExampleCo
income_statement:
  - name: Dividends
    type: Result
cash_flow_statement:
  - name: Dividends
    type: Financing Cash Flow Item
periods: 1
`)
	_, err := NewInputParser().LoadFromFile(path)
	var dup *domain.DuplicateItemNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "Dividends", dup.Name)
}

func TestLoadFromFileBadFormula(t *testing.T) {
	path := writeModel(t, minimalHeader+`
kpis:
  - name: Broken
    formula: "Revenue +"
`)
	_, err := NewInputParser().LoadFromFile(path)
	var syntaxErr *kpi.InvalidFormulaSyntaxError
	assert.ErrorAs(t, err, &syntaxErr)
}

func TestLoadFromFileUnknownKPIIdentifier(t *testing.T) {
	path := writeModel(t, minimalHeader+`
kpis:
  - name: Broken
    formula: Revenue - Typo
`)
	_, err := NewInputParser().LoadFromFile(path)
	var unknown *kpi.UnknownIdentifierError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "Typo", unknown.Identifier)
}
