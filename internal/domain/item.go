package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ItemType classifies a financial line item by the statement role it plays.
type ItemType string

const (
	// Balance sheet
	ItemTypeAsset     ItemType = "Asset"
	ItemTypeLiability ItemType = "Liability"
	ItemTypeEquity    ItemType = "Equity"

	// Income statement
	ItemTypeRevenue ItemType = "Revenue"
	ItemTypeExpense ItemType = "Expense"
	ItemTypeResult  ItemType = "Result"

	// Cash flow statement
	ItemTypeCashFlowOperating ItemType = "Operating Cash Flow Item"
	ItemTypeCashFlowInvesting ItemType = "Investing Cash Flow Item"
	ItemTypeCashFlowFinancing ItemType = "Financing Cash Flow Item"
	ItemTypeCashFlowSummary   ItemType = "Net Cash Flow (Summary)"

	// Distributions and everything else
	ItemTypeDividend ItemType = "Dividends Paid"
	ItemTypeOther    ItemType = "Other"
)

var knownItemTypes = map[ItemType]bool{
	ItemTypeAsset: true, ItemTypeLiability: true, ItemTypeEquity: true,
	ItemTypeRevenue: true, ItemTypeExpense: true, ItemTypeResult: true,
	ItemTypeCashFlowOperating: true, ItemTypeCashFlowInvesting: true,
	ItemTypeCashFlowFinancing: true, ItemTypeCashFlowSummary: true,
	ItemTypeDividend: true, ItemTypeOther: true,
}

// ParseItemType validates an item type label from configuration.
func ParseItemType(s string) (ItemType, bool) {
	t := ItemType(s)
	return t, knownItemTypes[t]
}

// SanitizeItemName converts a display name into an identifier-safe form
// usable inside KPI formulas: spaces and hyphens become underscores,
// anything outside [A-Za-z0-9_%/] is dropped, and a leading digit gets
// an underscore prefix. The alphabet matches the formula grammar
// exactly, so every sanitized name is referenceable in a formula.
func SanitizeItemName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == ' ' || r == '-':
			b.WriteByte('_')
		case r == '_' || r == '%' || r == '/',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return s
}

// FinancialItem is a named time series of monetary values split into
// historical and forecasted periods. A period key lives in at most one
// of the two maps: forecasted periods are strictly after the last
// historical period by construction.
type FinancialItem struct {
	Name       string                     `json:"name"`
	Type       ItemType                   `json:"type"`
	Historical map[Period]decimal.Decimal `json:"historical"`
	Forecasted map[Period]decimal.Decimal `json:"forecasted"`
}

// NewFinancialItem creates an empty item with a sanitized name.
func NewFinancialItem(name string, itemType ItemType) *FinancialItem {
	return &FinancialItem{
		Name:       SanitizeItemName(name),
		Type:       itemType,
		Historical: make(map[Period]decimal.Decimal),
		Forecasted: make(map[Period]decimal.Decimal),
	}
}

// AddHistorical records an actual value for a period.
func (fi *FinancialItem) AddHistorical(period Period, value decimal.Decimal) {
	if fi.Historical == nil {
		fi.Historical = make(map[Period]decimal.Decimal)
	}
	fi.Historical[period] = value
}

// AddForecasted records a computed value for a future period.
func (fi *FinancialItem) AddForecasted(period Period, value decimal.Decimal) {
	if fi.Forecasted == nil {
		fi.Forecasted = make(map[Period]decimal.Decimal)
	}
	fi.Forecasted[period] = value
}

// Value returns the item's value for a period, preferring forecasted
// over historical, and reports whether any value exists.
func (fi *FinancialItem) Value(period Period) (decimal.Decimal, bool) {
	if v, ok := fi.Forecasted[period]; ok {
		return v, true
	}
	v, ok := fi.Historical[period]
	return v, ok
}

// LastHistoricalPeriod returns the most recent historical period, or
// false if the item has no historical data.
func (fi *FinancialItem) LastHistoricalPeriod() (Period, bool) {
	var last Period
	found := false
	for p := range fi.Historical {
		if !found || last.Before(p) {
			last = p
			found = true
		}
	}
	return last, found
}

// HistoricalPeriods returns the historical period keys in calendar order.
func (fi *FinancialItem) HistoricalPeriods() []Period {
	periods := make([]Period, 0, len(fi.Historical))
	for p := range fi.Historical {
		periods = append(periods, p)
	}
	SortPeriods(periods)
	return periods
}

// ForecastedPeriods returns the forecasted period keys in calendar order.
func (fi *FinancialItem) ForecastedPeriods() []Period {
	periods := make([]Period, 0, len(fi.Forecasted))
	for p := range fi.Forecasted {
		periods = append(periods, p)
	}
	SortPeriods(periods)
	return periods
}

// AllPeriods returns every period with a value, historical before
// forecasted, in calendar order.
func (fi *FinancialItem) AllPeriods() []Period {
	periods := make([]Period, 0, len(fi.Historical)+len(fi.Forecasted))
	for p := range fi.Historical {
		periods = append(periods, p)
	}
	for p := range fi.Forecasted {
		periods = append(periods, p)
	}
	SortPeriods(periods)
	return periods
}

// ClearForecasted drops all forecasted values, leaving historicals intact.
func (fi *FinancialItem) ClearForecasted() {
	fi.Forecasted = make(map[Period]decimal.Decimal)
}

// Clone returns a deep copy sharing no mutable state with the receiver.
func (fi *FinancialItem) Clone() *FinancialItem {
	clone := &FinancialItem{
		Name:       fi.Name,
		Type:       fi.Type,
		Historical: make(map[Period]decimal.Decimal, len(fi.Historical)),
		Forecasted: make(map[Period]decimal.Decimal, len(fi.Forecasted)),
	}
	for p, v := range fi.Historical {
		clone.Historical[p] = v
	}
	for p, v := range fi.Forecasted {
		clone.Forecasted[p] = v
	}
	return clone
}
