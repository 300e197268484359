package scenario

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgehrsitz/finmodel/internal/domain"
	"github.com/rgehrsitz/finmodel/internal/kpi"
)

func formatterFixture() *ComparisonSet {
	return &ComparisonSet{
		Company: "ExampleCo",
		Results: []Result{
			{
				Label: "base",
				Forecasted: map[string]map[domain.Period]decimal.Decimal{
					"Revenue": {
						"2024": decimal.NewFromInt(1050),
						"2025": decimal.NewFromFloat(1102.5),
					},
				},
				KPIs: map[string]kpi.Series{
					"Net_Margin": {
						"2024": kpi.Value{Amount: decimal.NewFromFloat(0.2)},
						"2025": kpi.Value{Undefined: true},
					},
				},
				IntrinsicValueTotal: decimal.NewFromInt(210),
				FairValuePerShare:   decimal.NewFromFloat(2.1),
				MarketPrice:         decimal.NewFromFloat(1.4),
				MarginOfSafety:      decimal.NewFromFloat(0.25),
			},
		},
	}
}

func TestTableFormatter(t *testing.T) {
	out := (&TableFormatter{}).Format(formatterFixture())

	assert.Contains(t, out, "SCENARIO COMPARISON")
	assert.Contains(t, out, "Company: ExampleCo")
	assert.Contains(t, out, "base")
	assert.Contains(t, out, "2.10")
	assert.Contains(t, out, "25.0%")
	assert.Contains(t, out, "BASE FORECAST")
	assert.Contains(t, out, "Revenue")
	assert.Contains(t, out, "1050.0")
	assert.Contains(t, out, "n/a", "undefined KPI periods render as n/a")
}

func TestFormatSeriesWithoutForecast(t *testing.T) {
	out := FormatSeries(Result{Label: "empty"})
	assert.Equal(t, "(no forecasted values)\n", out)
}

func TestCSVFormatter(t *testing.T) {
	out, err := (&CSVFormatter{}).Format(formatterFixture())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "scenario,intrinsic_value_total,fair_value_per_share,market_price,margin_of_safety", lines[0])
	assert.Equal(t, "base,210,2.1,1.4,0.25", lines[1])
	assert.Contains(t, out, "base,Revenue,2024,1050")
	assert.Contains(t, out, "base,Net_Margin,2025,undefined")
}

func TestJSONFormatterRoundTrip(t *testing.T) {
	out, err := (&JSONFormatter{}).Format(formatterFixture())
	require.NoError(t, err)

	var decoded ComparisonSet
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded.Results, 1)
	assert.Equal(t, "base", decoded.Results[0].Label)
	assert.True(t, decoded.Results[0].FairValuePerShare.Equal(decimal.NewFromFloat(2.1)))
	assert.True(t, decoded.Results[0].KPIs["Net_Margin"]["2025"].Undefined)
}
