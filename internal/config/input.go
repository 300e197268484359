// Package config loads and validates the YAML model file describing a
// company, its historicals, assumptions, forecast rules, KPIs,
// valuation inputs, and named scenarios. Structural problems (duplicate
// rule targets, colliding item names, malformed formulas, unknown
// methods) surface here, before any period is computed.
package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rgehrsitz/finmodel/internal/domain"
	"github.com/rgehrsitz/finmodel/internal/forecast"
	"github.com/rgehrsitz/finmodel/internal/scenario"
)

// Model is the fully validated in-memory form of a model file.
type Model struct {
	Company     *domain.Company
	Assumptions *domain.AssumptionSet
	Periods     int
	Rules       []*forecast.ForecastRule
	KPIs        []scenario.KPIDef
	Valuation   scenario.ValuationInputs

	SharesOutstanding decimal.Decimal
	MarketPrice       decimal.Decimal

	Scenarios []scenario.Spec
}

type modelFile struct {
	Company struct {
		Name     string `yaml:"name"`
		Ticker   string `yaml:"ticker"`
		Currency string `yaml:"currency"`
	} `yaml:"company"`

	IncomeStatement   []itemDef `yaml:"income_statement"`
	BalanceSheet      []itemDef `yaml:"balance_sheet"`
	CashFlowStatement []itemDef `yaml:"cash_flow_statement"`

	Assumptions         map[string]decimal.Decimal            `yaml:"assumptions"`
	AssumptionSchedules map[string]map[string]decimal.Decimal `yaml:"assumption_schedules"`

	Periods int       `yaml:"periods"`
	Rules   []ruleDef `yaml:"rules"`
	KPIs    []kpiDef  `yaml:"kpis"`

	Valuation *valuationDef `yaml:"valuation"`

	Scenarios []scenarioDef `yaml:"scenarios"`
}

type itemDef struct {
	Name       string                     `yaml:"name"`
	Type       string                     `yaml:"type"`
	Historical map[string]decimal.Decimal `yaml:"historical"`
}

type ruleDef struct {
	Target              string           `yaml:"target"`
	Method              string           `yaml:"method"`
	Rate                *decimal.Decimal `yaml:"rate"`
	AssumptionKey       string           `yaml:"assumption_key"`
	Source              string           `yaml:"source"`
	Margin              *decimal.Decimal `yaml:"margin"`
	MarginAssumptionKey string           `yaml:"margin_assumption_key"`
	KPI                 string           `yaml:"kpi"`
	Transform           string           `yaml:"transform"`
}

type kpiDef struct {
	Name    string `yaml:"name"`
	Formula string `yaml:"formula"`
}

type valuationDef struct {
	DividendBaseItem  string           `yaml:"dividend_base_item"`
	DiscountRate      decimal.Decimal  `yaml:"discount_rate"`
	PayoutRatio       decimal.Decimal  `yaml:"payout_ratio"`
	TerminalGrowth    *decimal.Decimal `yaml:"terminal_growth"`
	SharesOutstanding decimal.Decimal  `yaml:"shares_outstanding"`
	MarketPrice       decimal.Decimal  `yaml:"market_price"`
}

type scenarioDef struct {
	Label     string                     `yaml:"label"`
	Overrides map[string]decimal.Decimal `yaml:"overrides"`
}

// InputParser handles parsing of model files.
type InputParser struct{}

// NewInputParser creates a new input parser.
func NewInputParser() *InputParser {
	return &InputParser{}
}

// LoadFromFile loads and validates a model from a YAML file.
func (ip *InputParser) LoadFromFile(filename string) (*Model, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	var file modelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	model, err := ip.build(&file)
	if err != nil {
		return nil, fmt.Errorf("model validation failed: %w", err)
	}
	return model, nil
}

func (ip *InputParser) build(file *modelFile) (*Model, error) {
	if file.Company.Name == "" {
		return nil, fmt.Errorf("company name is required")
	}
	if file.Periods <= 0 {
		return nil, fmt.Errorf("periods must be positive, got %d", file.Periods)
	}

	company := domain.NewCompany(file.Company.Name, file.Company.Ticker, file.Company.Currency)
	statements := []struct {
		target *domain.Statement
		defs   []itemDef
	}{
		{company.IncomeStatement, file.IncomeStatement},
		{company.BalanceSheet, file.BalanceSheet},
		{company.CashFlowStatement, file.CashFlowStatement},
	}
	for _, stmt := range statements {
		for _, def := range stmt.defs {
			item, err := ip.buildItem(def)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", stmt.target.Name, err)
			}
			stmt.target.AddItem(item)
		}
	}
	// Cross-statement collisions fail the load, not the first lookup.
	if err := company.BuildIndex(); err != nil {
		return nil, err
	}

	assumptions := domain.NewAssumptionSet()
	for key, value := range file.Assumptions {
		assumptions.Set(key, value)
	}
	for key, rawSchedule := range file.AssumptionSchedules {
		schedule := make(map[domain.Period]decimal.Decimal, len(rawSchedule))
		for rawPeriod, value := range rawSchedule {
			period, err := domain.ParsePeriod(rawPeriod)
			if err != nil {
				return nil, fmt.Errorf("assumption schedule %q: %w", key, err)
			}
			schedule[period] = value
		}
		assumptions.SetSchedule(key, schedule)
	}

	rules, err := ip.buildRules(file.Rules)
	if err != nil {
		return nil, err
	}

	// A throwaway model run-through rejects duplicate targets and
	// unresolvable names, and forces every KPI formula through parse and
	// identifier validation.
	probe, err := forecast.NewForecastModel(company.Clone(), assumptions, file.Periods)
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		if err := probe.AddForecastRule(rule); err != nil {
			return nil, err
		}
	}
	kpis := make([]scenario.KPIDef, 0, len(file.KPIs))
	for _, def := range file.KPIs {
		if def.Name == "" {
			return nil, fmt.Errorf("KPI with formula %q has no name", def.Formula)
		}
		if err := probe.AddKPI(def.Name, def.Formula); err != nil {
			return nil, err
		}
		kpis = append(kpis, scenario.KPIDef{Name: def.Name, Formula: def.Formula})
	}
	if err := probe.KPIs().Validate(); err != nil {
		return nil, err
	}

	model := &Model{
		Company:     company,
		Assumptions: assumptions,
		Periods:     file.Periods,
		Rules:       rules,
		KPIs:        kpis,
	}

	if file.Valuation != nil {
		model.Valuation = scenario.ValuationInputs{
			DividendBaseItem: domain.SanitizeItemName(file.Valuation.DividendBaseItem),
			DiscountRate:     file.Valuation.DiscountRate,
			PayoutRatio:      file.Valuation.PayoutRatio,
			TerminalGrowth:   file.Valuation.TerminalGrowth,
		}
		model.SharesOutstanding = file.Valuation.SharesOutstanding
		model.MarketPrice = file.Valuation.MarketPrice
		if model.Valuation.DividendBaseItem == "" {
			model.Valuation.DividendBaseItem = "Net_Income"
		}
		if !company.HasItem(model.Valuation.DividendBaseItem) {
			return nil, fmt.Errorf("valuation dividend base item %q not found", model.Valuation.DividendBaseItem)
		}
	}

	for _, def := range file.Scenarios {
		if def.Label == "" {
			return nil, fmt.Errorf("scenario without a label")
		}
		model.Scenarios = append(model.Scenarios, scenario.Spec{
			Label:     def.Label,
			Overrides: def.Overrides,
		})
	}

	return model, nil
}

func (ip *InputParser) buildItem(def itemDef) (*domain.FinancialItem, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("item without a name")
	}
	itemType, ok := domain.ParseItemType(def.Type)
	if !ok {
		return nil, fmt.Errorf("item %q has unknown type %q", def.Name, def.Type)
	}
	item := domain.NewFinancialItem(def.Name, itemType)
	for rawPeriod, value := range def.Historical {
		period, err := domain.ParsePeriod(rawPeriod)
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", def.Name, err)
		}
		item.AddHistorical(period, value)
	}
	return item, nil
}

func (ip *InputParser) buildRules(defs []ruleDef) ([]*forecast.ForecastRule, error) {
	rules := make([]*forecast.ForecastRule, 0, len(defs))
	for _, def := range defs {
		if def.Target == "" {
			return nil, fmt.Errorf("rule without a target")
		}
		method, ok := forecast.ParseRuleMethod(def.Method)
		if !ok {
			return nil, fmt.Errorf("rule for %q has unknown method %q", def.Target, def.Method)
		}

		target := domain.SanitizeItemName(def.Target)
		source := domain.SanitizeItemName(def.Source)

		var rule *forecast.ForecastRule
		var err error
		switch method {
		case forecast.MethodGrowthRate:
			rule, err = forecast.GrowthRate(target, def.Rate, def.AssumptionKey)
		case forecast.MethodMarginOf:
			rule, err = forecast.MarginOf(target, source, def.Margin, def.MarginAssumptionKey)
		case forecast.MethodLinkTo:
			rule, err = forecast.LinkTo(target, source)
		case forecast.MethodKPIDriven:
			transform, terr := ip.buildTransform(def)
			if terr != nil {
				return nil, terr
			}
			rule, err = forecast.KPIDriven(target, def.KPI, transform)
			if err == nil {
				// The transform reads the source item in the same period.
				rule.DependsOn = []string{source}
			}
		case forecast.MethodCustomFunction:
			return nil, fmt.Errorf("rule for %q: custom_function rules are registered through the API, not the model file", def.Target)
		}
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// buildTransform maps a declarative transform tag to a KPI transform.
// scale_of sets target = kpi * source; complement_of sets
// target = source * (1 - kpi), the usual inversion for margin KPIs.
func (ip *InputParser) buildTransform(def ruleDef) (forecast.KPITransform, error) {
	source := domain.SanitizeItemName(def.Source)
	if source == "" {
		return nil, fmt.Errorf("rule for %q: kpi_driven requires a source item", def.Target)
	}
	samePeriodValue := func(company *domain.Company, period domain.Period) (decimal.Decimal, error) {
		item, err := company.FindItem(source)
		if err != nil {
			return decimal.Zero, err
		}
		v, ok := item.Value(period)
		if !ok {
			return decimal.Zero, fmt.Errorf("source item %q has no value for period %s", source, period)
		}
		return v, nil
	}

	switch def.Transform {
	case "scale_of":
		return forecast.KPITransformFunc(func(kpiValue decimal.Decimal, company *domain.Company, period domain.Period) (decimal.Decimal, error) {
			v, err := samePeriodValue(company, period)
			if err != nil {
				return decimal.Zero, err
			}
			return v.Mul(kpiValue), nil
		}), nil
	case "complement_of":
		one := decimal.NewFromInt(1)
		return forecast.KPITransformFunc(func(kpiValue decimal.Decimal, company *domain.Company, period domain.Period) (decimal.Decimal, error) {
			v, err := samePeriodValue(company, period)
			if err != nil {
				return decimal.Zero, err
			}
			return v.Mul(one.Sub(kpiValue)), nil
		}), nil
	default:
		return nil, fmt.Errorf("rule for %q: unknown transform %q", def.Target, def.Transform)
	}
}
