package scenario

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rgehrsitz/finmodel/internal/domain"
)

// TableFormatter formats a comparison set as a console table.
type TableFormatter struct{}

// Format generates a formatted table comparing scenario valuations.
func (tf *TableFormatter) Format(compSet *ComparisonSet) string {
	var sb strings.Builder

	sb.WriteString("SCENARIO COMPARISON\n")
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	sb.WriteString(fmt.Sprintf("Company: %s\n", compSet.Company))
	sb.WriteString("\n")

	nameWidth := 20
	numWidth := 18

	sb.WriteString(fmt.Sprintf("%-*s %*s %*s %*s\n",
		nameWidth, "Scenario",
		numWidth, "Intrinsic Value",
		numWidth, "Fair Value/Share",
		numWidth, "Margin of Safety"))
	sb.WriteString(strings.Repeat("-", 80) + "\n")

	for _, result := range compSet.Results {
		sb.WriteString(fmt.Sprintf("%-*s %*s %*s %*s\n",
			nameWidth, result.Label,
			numWidth, result.IntrinsicValueTotal.StringFixed(0),
			numWidth, result.FairValuePerShare.StringFixed(2),
			numWidth, result.MarginOfSafety.Mul(hundred).StringFixed(1)+"%"))
	}
	sb.WriteString(strings.Repeat("=", 80) + "\n")

	// Per-scenario forecast details
	for _, result := range compSet.Results {
		sb.WriteString(fmt.Sprintf("\n%s FORECAST\n", strings.ToUpper(result.Label)))
		sb.WriteString(strings.Repeat("-", 80) + "\n")
		sb.WriteString(formatSeriesTable(result))
	}

	return sb.String()
}

// FormatSeries renders one result's item and KPI series as a plain
// table, one row per name, one column per period. The forecast command
// uses it directly for single-run output.
func FormatSeries(result Result) string {
	return formatSeriesTable(result)
}

// formatSeriesTable renders one scenario's item and KPI series, one row
// per name, one column per period.
func formatSeriesTable(result Result) string {
	var sb strings.Builder

	periods := collectPeriods(result)
	if len(periods) == 0 {
		return "(no forecasted values)\n"
	}

	sb.WriteString(fmt.Sprintf("%-24s", "Item"))
	for _, p := range periods {
		sb.WriteString(fmt.Sprintf(" %12s", string(p)))
	}
	sb.WriteString("\n")

	for _, name := range sortedKeys(result.Forecasted) {
		sb.WriteString(fmt.Sprintf("%-24s", name))
		for _, p := range periods {
			if v, ok := result.Forecasted[name][p]; ok {
				sb.WriteString(fmt.Sprintf(" %12s", v.StringFixed(1)))
			} else {
				sb.WriteString(fmt.Sprintf(" %12s", "-"))
			}
		}
		sb.WriteString("\n")
	}

	kpiNames := make([]string, 0, len(result.KPIs))
	for name := range result.KPIs {
		kpiNames = append(kpiNames, name)
	}
	sort.Strings(kpiNames)
	for _, name := range kpiNames {
		sb.WriteString(fmt.Sprintf("%-24s", name))
		for _, p := range periods {
			v, ok := result.KPIs[name][p]
			switch {
			case !ok:
				sb.WriteString(fmt.Sprintf(" %12s", "-"))
			case v.Undefined:
				sb.WriteString(fmt.Sprintf(" %12s", "n/a"))
			default:
				sb.WriteString(fmt.Sprintf(" %12s", v.Amount.StringFixed(3)))
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func collectPeriods(result Result) []domain.Period {
	seen := make(map[domain.Period]bool)
	for _, series := range result.Forecasted {
		for p := range series {
			seen[p] = true
		}
	}
	periods := make([]domain.Period, 0, len(seen))
	for p := range seen {
		periods = append(periods, p)
	}
	domain.SortPeriods(periods)
	return periods
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
