package forecast

import (
	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/finmodel/internal/domain"
)

// RuleMethod identifies how a forecast rule computes its target. The
// set is closed: unknown methods are rejected at construction, not at
// evaluation.
type RuleMethod string

const (
	MethodGrowthRate     RuleMethod = "growth_rate"
	MethodMarginOf       RuleMethod = "margin_of"
	MethodLinkTo         RuleMethod = "link_to"
	MethodCustomFunction RuleMethod = "custom_function"
	MethodKPIDriven      RuleMethod = "kpi_driven"
)

// ParseRuleMethod validates a method tag from configuration.
func ParseRuleMethod(s string) (RuleMethod, bool) {
	switch m := RuleMethod(s); m {
	case MethodGrowthRate, MethodMarginOf, MethodLinkTo, MethodCustomFunction, MethodKPIDriven:
		return m, true
	default:
		return "", false
	}
}

// PeriodComputable is the capability a custom rule supplies: compute
// the target's value for one period from the company snapshot. The
// engine trusts it to be pure with respect to already-computed values
// and wraps its failures and latency uniformly.
type PeriodComputable interface {
	ComputeForPeriod(company *domain.Company, period domain.Period) (decimal.Decimal, error)
}

// PeriodFunc adapts a plain function to PeriodComputable.
type PeriodFunc func(company *domain.Company, period domain.Period) (decimal.Decimal, error)

// ComputeForPeriod implements PeriodComputable.
func (f PeriodFunc) ComputeForPeriod(company *domain.Company, period domain.Period) (decimal.Decimal, error) {
	return f(company, period)
}

// KPITransform inverts a KPI's defining relationship into the target
// item's value for a period (e.g. hold Gross Margin % constant and
// derive COGS from Revenue).
type KPITransform interface {
	Apply(kpiValue decimal.Decimal, company *domain.Company, period domain.Period) (decimal.Decimal, error)
}

// KPITransformFunc adapts a plain function to KPITransform.
type KPITransformFunc func(kpiValue decimal.Decimal, company *domain.Company, period domain.Period) (decimal.Decimal, error)

// Apply implements KPITransform.
func (f KPITransformFunc) Apply(kpiValue decimal.Decimal, company *domain.Company, period domain.Period) (decimal.Decimal, error) {
	return f(kpiValue, company, period)
}

// ForecastRule declares how one item's value is computed in each future
// period. Build rules through the constructors; they validate the
// parameter set the method needs.
type ForecastRule struct {
	Target string
	Method RuleMethod

	// growth_rate: literal rate and/or assumption key. When both are
	// present the assumption key takes precedence.
	Rate          *decimal.Decimal
	AssumptionKey string

	// margin_of / link_to source item; margin resolved like Rate.
	Source              string
	Margin              *decimal.Decimal
	MarginAssumptionKey string

	// custom_function
	Compute   PeriodComputable
	DependsOn []string

	// kpi_driven
	KPIName   string
	Transform KPITransform
}

// GrowthRate builds a rule compounding the target's previous-period
// value by a rate, literal or looked up in the assumption set.
func GrowthRate(target string, rate *decimal.Decimal, assumptionKey string) (*ForecastRule, error) {
	if rate == nil && assumptionKey == "" {
		return nil, &RuleConfigError{Target: target, Message: "growth_rate requires a rate or an assumption key"}
	}
	return &ForecastRule{
		Target:        target,
		Method:        MethodGrowthRate,
		Rate:          rate,
		AssumptionKey: assumptionKey,
	}, nil
}

// MarginOf builds a rule setting the target to a margin of another
// item's same-period value.
func MarginOf(target, source string, margin *decimal.Decimal, marginAssumptionKey string) (*ForecastRule, error) {
	if source == "" {
		return nil, &RuleConfigError{Target: target, Message: "margin_of requires a source item"}
	}
	if margin == nil && marginAssumptionKey == "" {
		return nil, &RuleConfigError{Target: target, Message: "margin_of requires a margin or an assumption key"}
	}
	return &ForecastRule{
		Target:              target,
		Method:              MethodMarginOf,
		Source:              source,
		Margin:              margin,
		MarginAssumptionKey: marginAssumptionKey,
	}, nil
}

// LinkTo builds a pass-through rule copying another item's same-period
// value.
func LinkTo(target, source string) (*ForecastRule, error) {
	if source == "" {
		return nil, &RuleConfigError{Target: target, Message: "link_to requires a source item"}
	}
	return &ForecastRule{Target: target, Method: MethodLinkTo, Source: source}, nil
}

// Custom builds a rule delegating to a caller-supplied computation.
// dependsOn declares the item and KPI names the function reads, so the
// resolver can order it; the declared set must not vary by period.
func Custom(target string, compute PeriodComputable, dependsOn ...string) (*ForecastRule, error) {
	if compute == nil {
		return nil, &RuleConfigError{Target: target, Message: "custom_function requires a computation"}
	}
	return &ForecastRule{
		Target:    target,
		Method:    MethodCustomFunction,
		Compute:   compute,
		DependsOn: dependsOn,
	}, nil
}

// KPIDriven builds a rule deriving the target from a same-period KPI
// value through a transform.
func KPIDriven(target, kpiName string, transform KPITransform) (*ForecastRule, error) {
	if kpiName == "" {
		return nil, &RuleConfigError{Target: target, Message: "kpi_driven requires a KPI name"}
	}
	if transform == nil {
		return nil, &RuleConfigError{Target: target, Message: "kpi_driven requires a transform"}
	}
	return &ForecastRule{Target: target, Method: MethodKPIDriven, KPIName: kpiName, Transform: transform}, nil
}

// dependencies returns the names this rule reads in the same period.
// A growth_rate rule reads only its own previous-period value, which
// imposes no same-period ordering constraint.
func (r *ForecastRule) dependencies() []string {
	switch r.Method {
	case MethodMarginOf, MethodLinkTo:
		return []string{r.Source}
	case MethodCustomFunction:
		return r.DependsOn
	case MethodKPIDriven:
		// DependsOn lets a transform declare the items it reads.
		return append([]string{r.KPIName}, r.DependsOn...)
	default:
		return nil
	}
}
