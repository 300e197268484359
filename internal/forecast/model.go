package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/finmodel/internal/depgraph"
	"github.com/rgehrsitz/finmodel/internal/domain"
	"github.com/rgehrsitz/finmodel/internal/kpi"
)

// ForecastModel applies forecast rules to a company's items across a
// number of future periods, resolving rule-to-rule and rule-to-KPI
// dependencies. Evaluation is interleaved per period: every ruled item
// and every KPI for period p is computed before p+1 begins, since later
// periods read previous-period values.
type ForecastModel struct {
	company     *domain.Company
	assumptions *domain.AssumptionSet
	periods     int

	rules    []*ForecastRule
	byTarget map[string]*ForecastRule
	kpis     *kpi.Manager

	// CustomRuleTimeout bounds each custom rule invocation; zero means
	// no deadline beyond the run context.
	CustomRuleTimeout time.Duration

	kpiResults map[string]kpi.Series
	logger     zerolog.Logger
}

// NewForecastModel creates a model over a company and an assumption
// set, generating the given number of future period slots. The company
// index is built here, so cross-statement name collisions fail fast.
func NewForecastModel(company *domain.Company, assumptions *domain.AssumptionSet, periods int) (*ForecastModel, error) {
	if periods <= 0 {
		return nil, fmt.Errorf("periods must be positive, got %d", periods)
	}
	if err := company.BuildIndex(); err != nil {
		return nil, err
	}
	return &ForecastModel{
		company:     company,
		assumptions: assumptions,
		periods:     periods,
		byTarget:    make(map[string]*ForecastRule),
		kpis:        kpi.NewManager(company),
		logger:      zerolog.Nop(),
	}, nil
}

// SetLogger attaches a logger for rule-by-rule debug traces.
func (m *ForecastModel) SetLogger(logger zerolog.Logger) {
	m.logger = logger
}

// Company returns the company the model forecasts into.
func (m *ForecastModel) Company() *domain.Company {
	return m.company
}

// KPIs returns the model's KPI manager.
func (m *ForecastModel) KPIs() *kpi.Manager {
	return m.kpis
}

// AddForecastRule registers a rule. The target must resolve to exactly
// one item across the company's statements, and only one rule may
// target a given item.
func (m *ForecastModel) AddForecastRule(rule *ForecastRule) error {
	if _, dup := m.byTarget[rule.Target]; dup {
		return &DuplicateTargetError{Target: rule.Target}
	}
	if _, err := m.company.FindItem(rule.Target); err != nil {
		return err
	}
	m.rules = append(m.rules, rule)
	m.byTarget[rule.Target] = rule
	return nil
}

// AddKPI registers a KPI formula on the model's manager.
func (m *ForecastModel) AddKPI(name, formula string) error {
	return m.kpis.AddKPI(name, formula)
}

// KPIResults returns the per-period KPI values computed by the last
// Run, keyed by KPI name.
func (m *ForecastModel) KPIResults() map[string]kpi.Series {
	return m.kpiResults
}

// FuturePeriods returns the period slots the model forecasts, starting
// immediately after the company's last historical period.
func (m *ForecastModel) FuturePeriods() ([]domain.Period, error) {
	last, ok := m.company.LastHistoricalPeriod()
	if !ok {
		return nil, fmt.Errorf("company %q has no historical data to forecast from", m.company.Name)
	}
	periods := make([]domain.Period, m.periods)
	p := last
	for i := 0; i < m.periods; i++ {
		p = p.Next()
		periods[i] = p
	}
	return periods, nil
}

// evaluationOrder builds the shared dependency order over rule targets
// and KPI names. Dependencies are structural (derived from rule and
// formula definitions, never from period values), so the order is
// computed once and reused for every period; rules and formulas must
// not change which names they reference from one period to another.
func (m *ForecastModel) evaluationOrder() ([]string, error) {
	graph := depgraph.New()
	for _, rule := range m.rules {
		graph.AddNode(rule.Target, rule.dependencies()...)
	}
	for _, name := range m.kpis.Names() {
		idents, err := m.kpis.Identifiers(name)
		if err != nil {
			return nil, err
		}
		graph.AddNode(name, idents...)
	}
	return graph.Order()
}

// Run executes the forecast: for each future period in calendar order,
// every ruled item and every KPI is evaluated in dependency order and
// the computed values are written into the company's forecasted maps.
// Any rule failure aborts the whole run. Running twice on unchanged
// inputs produces identical output.
func (m *ForecastModel) Run(ctx context.Context) error {
	if err := m.kpis.Validate(); err != nil {
		return err
	}
	order, err := m.evaluationOrder()
	if err != nil {
		return err
	}
	futures, err := m.FuturePeriods()
	if err != nil {
		return err
	}

	// Re-runs overwrite, never compound: drop stale forecasts for every
	// ruled target before computing.
	for _, rule := range m.rules {
		item, err := m.company.FindItem(rule.Target)
		if err != nil {
			return err
		}
		item.ClearForecasted()
	}

	m.kpiResults = make(map[string]kpi.Series, len(m.kpis.Names()))
	for _, name := range m.kpis.Names() {
		m.kpiResults[name] = make(kpi.Series, len(futures))
	}

	last, _ := m.company.LastHistoricalPeriod()
	previous := last
	for _, period := range futures {
		if err := ctx.Err(); err != nil {
			return err
		}
		kpiCache := make(map[string]kpi.Value)
		for _, node := range order {
			if rule, isRule := m.byTarget[node]; isRule {
				if err := m.applyRule(ctx, rule, period, previous, kpiCache); err != nil {
					return err
				}
				continue
			}
			value, err := m.kpis.EvaluateAt(node, period, kpiCache)
			if err != nil {
				return fmt.Errorf("KPI %q failed at period %s: %w", node, period, err)
			}
			kpiCache[node] = value
			m.kpiResults[node][period] = value
			m.logger.Debug().Str("kpi", node).Str("period", string(period)).
				Bool("undefined", value.Undefined).Msg("computed KPI")
		}
		previous = period
	}
	return nil
}

// applyRule computes one rule for one period and writes the result into
// the target item.
func (m *ForecastModel) applyRule(ctx context.Context, rule *ForecastRule, period, previous domain.Period, kpiCache map[string]kpi.Value) error {
	item, err := m.company.FindItem(rule.Target)
	if err != nil {
		return err
	}

	var value decimal.Decimal
	switch rule.Method {
	case MethodGrowthRate:
		prev, ok := item.Value(previous)
		if !ok {
			return &RuleEvaluationError{Target: rule.Target, Period: period,
				Cause: fmt.Errorf("no value for preceding period %s", previous)}
		}
		rate, err := m.resolveRate(rule.Target, rule.AssumptionKey, rule.Rate, period)
		if err != nil {
			return &RuleEvaluationError{Target: rule.Target, Period: period, Cause: err}
		}
		value = prev.Mul(decimal.NewFromInt(1).Add(rate))

	case MethodMarginOf:
		source, err := m.sourceValue(rule, period)
		if err != nil {
			return err
		}
		margin, err := m.resolveRate(rule.Target, rule.MarginAssumptionKey, rule.Margin, period)
		if err != nil {
			return &RuleEvaluationError{Target: rule.Target, Period: period, Cause: err}
		}
		value = source.Mul(margin)

	case MethodLinkTo:
		value, err = m.sourceValue(rule, period)
		if err != nil {
			return err
		}

	case MethodCustomFunction:
		value, err = m.runCustom(ctx, rule, period)
		if err != nil {
			return err
		}

	case MethodKPIDriven:
		kpiValue, ok := kpiCache[rule.KPIName]
		if !ok {
			return &RuleEvaluationError{Target: rule.Target, Period: period,
				Cause: fmt.Errorf("KPI %q has no value yet", rule.KPIName)}
		}
		if kpiValue.Undefined {
			return &RuleEvaluationError{Target: rule.Target, Period: period,
				Cause: fmt.Errorf("KPI %q is undefined for this period", rule.KPIName)}
		}
		value, err = rule.Transform.Apply(kpiValue.Amount, m.company, period)
		if err != nil {
			return &RuleEvaluationError{Target: rule.Target, Period: period, Cause: err}
		}
	}

	item.AddForecasted(period, value)
	m.logger.Debug().Str("item", rule.Target).Str("method", string(rule.Method)).
		Str("period", string(period)).Str("value", value.String()).Msg("applied rule")
	return nil
}

// sourceValue reads a rule's source item for the same period. A source
// with no value here is a configuration error: a ruled source is
// guaranteed by dependency order, so a miss means the source is
// historical-only beyond the forecast horizon.
func (m *ForecastModel) sourceValue(rule *ForecastRule, period domain.Period) (decimal.Decimal, error) {
	source, err := m.company.FindItem(rule.Source)
	if err != nil {
		return decimal.Zero, &RuleEvaluationError{Target: rule.Target, Period: period, Cause: err}
	}
	v, ok := source.Value(period)
	if !ok {
		return decimal.Zero, &RuleEvaluationError{Target: rule.Target, Period: period,
			Cause: fmt.Errorf("source item %q has no value for this period", rule.Source)}
	}
	return v, nil
}

// resolveRate resolves a literal-or-assumption-key parameter. The
// assumption key takes precedence when both are given.
func (m *ForecastModel) resolveRate(target, assumptionKey string, literal *decimal.Decimal, period domain.Period) (decimal.Decimal, error) {
	if assumptionKey != "" {
		if v, ok := m.assumptions.GetForPeriod(assumptionKey, period); ok {
			return v, nil
		}
		if literal == nil {
			return decimal.Zero, fmt.Errorf("assumption %q not found", assumptionKey)
		}
	}
	if literal != nil {
		return *literal, nil
	}
	return decimal.Zero, &RuleConfigError{Target: target, Message: "no rate or assumption key"}
}

// runCustom invokes a caller-supplied computation, bounding it with the
// configured deadline and wrapping failures with the rule's target and
// period.
func (m *ForecastModel) runCustom(ctx context.Context, rule *ForecastRule, period domain.Period) (decimal.Decimal, error) {
	if m.CustomRuleTimeout <= 0 {
		value, err := rule.Compute.ComputeForPeriod(m.company, period)
		if err != nil {
			return decimal.Zero, &CustomRuleExecutionError{Target: rule.Target, Period: period, Cause: err}
		}
		return value, nil
	}

	type outcome struct {
		value decimal.Decimal
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := rule.Compute.ComputeForPeriod(m.company, period)
		done <- outcome{value: v, err: err}
	}()

	timer := time.NewTimer(m.CustomRuleTimeout)
	defer timer.Stop()
	select {
	case out := <-done:
		if out.err != nil {
			return decimal.Zero, &CustomRuleExecutionError{Target: rule.Target, Period: period, Cause: out.err}
		}
		return out.value, nil
	case <-timer.C:
		return decimal.Zero, &CustomRuleTimeoutError{Target: rule.Target, Period: period, Timeout: m.CustomRuleTimeout}
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	}
}
