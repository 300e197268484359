package scenario

import (
	"encoding/csv"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CSVFormatter formats a comparison set as CSV, one row per scenario
// plus one row per item/period value.
type CSVFormatter struct{}

// Format renders the comparison set to CSV.
func (cf *CSVFormatter) Format(compSet *ComparisonSet) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write([]string{"scenario", "intrinsic_value_total", "fair_value_per_share", "market_price", "margin_of_safety"}); err != nil {
		return "", err
	}
	for _, result := range compSet.Results {
		record := []string{
			result.Label,
			result.IntrinsicValueTotal.String(),
			result.FairValuePerShare.String(),
			result.MarketPrice.String(),
			result.MarginOfSafety.String(),
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}

	if err := w.Write([]string{}); err != nil {
		return "", err
	}
	if err := w.Write([]string{"scenario", "name", "period", "value"}); err != nil {
		return "", err
	}
	for _, result := range compSet.Results {
		periods := collectPeriods(result)
		for _, name := range sortedKeys(result.Forecasted) {
			for _, p := range periods {
				if v, ok := result.Forecasted[name][p]; ok {
					if err := w.Write([]string{result.Label, name, string(p), v.String()}); err != nil {
						return "", err
					}
				}
			}
		}
		for _, name := range sortedKeys(result.KPIs) {
			for _, p := range periods {
				v, ok := result.KPIs[name][p]
				if !ok {
					continue
				}
				text := v.Amount.String()
				if v.Undefined {
					text = "undefined"
				}
				if err := w.Write([]string{result.Label, name, string(p), text}); err != nil {
					return "", err
				}
			}
		}
	}

	w.Flush()
	return sb.String(), w.Error()
}
