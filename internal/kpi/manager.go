package kpi

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/finmodel/internal/depgraph"
	"github.com/rgehrsitz/finmodel/internal/domain"
)

// Value is one period's KPI result. Undefined marks a period whose
// formula hit a zero denominator; the rest of the series stays valid.
type Value struct {
	Amount    decimal.Decimal `json:"amount"`
	Undefined bool            `json:"undefined,omitempty"`
}

// Series maps periods to KPI values.
type Series map[domain.Period]Value

// Manager owns named KPI formulas over item and KPI identifiers and
// evaluates them period by period against a company's resolved values.
type Manager struct {
	company  *domain.Company
	formulas map[string]*Formula
	order    []string
}

// NewManager creates a KPI manager bound to a company.
func NewManager(company *domain.Company) *Manager {
	return &Manager{
		company:  company,
		formulas: make(map[string]*Formula),
	}
}

// AddKPI parses and registers a formula under a name. Syntax errors
// surface here, before anything is calculated. Identifiers are not
// required to resolve yet: a formula may reference a KPI registered
// later. Validate catches leftovers once registration is complete.
func (m *Manager) AddKPI(name, formula string) error {
	if _, exists := m.formulas[name]; exists {
		return &DuplicateKPIError{Name: name}
	}
	parsed, err := ParseFormula(formula)
	if err != nil {
		return err
	}
	m.formulas[name] = parsed
	m.order = append(m.order, name)
	return nil
}

// Names returns registered KPI names in registration order.
func (m *Manager) Names() []string {
	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

// IsKPI reports whether a name is a registered KPI.
func (m *Manager) IsKPI(name string) bool {
	_, ok := m.formulas[name]
	return ok
}

// Identifiers returns the identifier tokens of a KPI's formula.
func (m *Manager) Identifiers(name string) ([]string, error) {
	formula, ok := m.formulas[name]
	if !ok {
		return nil, &UndefinedKPIError{Name: name}
	}
	return formula.Identifiers(), nil
}

// Validate checks that every formula identifier resolves to a KPI or a
// financial item now that all registrations are in.
func (m *Manager) Validate() error {
	for _, name := range m.order {
		for _, ident := range m.formulas[name].Identifiers() {
			if m.IsKPI(ident) || m.company.HasItem(ident) {
				continue
			}
			return &UnknownIdentifierError{KPI: name, Identifier: ident}
		}
	}
	return nil
}

// dependencyOrder returns the KPI names needed to compute target, in
// evaluation order. Item identifiers are external leaves and impose no
// ordering; KPI identifiers are graph nodes.
func (m *Manager) dependencyOrder(target string) ([]string, error) {
	graph := depgraph.New()
	var add func(name string) error
	add = func(name string) error {
		if graph.Has(name) {
			return nil
		}
		formula := m.formulas[name]
		idents := formula.Identifiers()
		var kpiDeps []string
		for _, ident := range idents {
			if m.IsKPI(ident) {
				kpiDeps = append(kpiDeps, ident)
			}
		}
		graph.AddNode(name, kpiDeps...)
		for _, dep := range kpiDeps {
			if err := add(dep); err != nil {
				return err
			}
		}
		return nil
	}
	if err := add(target); err != nil {
		return nil, err
	}
	return graph.Order()
}

// CalculateKPI evaluates a KPI for every period the referenced items
// and KPIs all have values for, returning a period-keyed series.
// Division by zero in one period marks that period undefined without
// aborting the rest.
func (m *Manager) CalculateKPI(name string) (Series, error) {
	if !m.IsKPI(name) {
		return nil, &UndefinedKPIError{Name: name}
	}
	order, err := m.dependencyOrder(name)
	if err != nil {
		return nil, err
	}

	computed := make(map[string]Series, len(order))
	for _, kpiName := range order {
		series, err := m.calculateOne(kpiName, computed)
		if err != nil {
			return nil, err
		}
		computed[kpiName] = series
	}
	return computed[name], nil
}

// calculateOne evaluates a single KPI across the intersection of its
// operands' available periods, with dependency KPIs already computed.
func (m *Manager) calculateOne(name string, computed map[string]Series) (Series, error) {
	formula := m.formulas[name]

	periods, err := m.availablePeriods(name, formula, computed)
	if err != nil {
		return nil, err
	}

	series := make(Series, len(periods))
	for _, period := range periods {
		value, err := m.EvaluateAt(name, period, m.cacheAt(computed, period))
		if err != nil {
			return nil, err
		}
		series[period] = value
	}
	return series, nil
}

// availablePeriods intersects the period sets of every operand. A
// formula with no identifiers (a constant) is defined wherever the
// company has data at all.
func (m *Manager) availablePeriods(name string, formula *Formula, computed map[string]Series) ([]domain.Period, error) {
	if len(formula.Identifiers()) == 0 {
		return m.companyPeriods(), nil
	}

	var periods map[domain.Period]bool
	intersect := func(available map[domain.Period]bool) {
		if periods == nil {
			periods = available
			return
		}
		for p := range periods {
			if !available[p] {
				delete(periods, p)
			}
		}
	}

	for _, ident := range formula.Identifiers() {
		switch {
		case m.IsKPI(ident):
			series, ok := computed[ident]
			if !ok {
				return nil, &UndefinedKPIError{Name: ident}
			}
			available := make(map[domain.Period]bool, len(series))
			for p := range series {
				available[p] = true
			}
			intersect(available)
		case m.company.HasItem(ident):
			item, err := m.company.FindItem(ident)
			if err != nil {
				return nil, err
			}
			available := make(map[domain.Period]bool)
			for _, p := range item.AllPeriods() {
				available[p] = true
			}
			intersect(available)
		default:
			return nil, &UnknownIdentifierError{KPI: name, Identifier: ident}
		}
	}

	sorted := make([]domain.Period, 0, len(periods))
	for p := range periods {
		sorted = append(sorted, p)
	}
	domain.SortPeriods(sorted)
	return sorted, nil
}

// companyPeriods returns every period any item has a value for.
func (m *Manager) companyPeriods() []domain.Period {
	seen := make(map[domain.Period]bool)
	for _, stmt := range m.company.Statements() {
		for _, name := range stmt.ItemNames() {
			for _, p := range stmt.Items[name].AllPeriods() {
				seen[p] = true
			}
		}
	}
	periods := make([]domain.Period, 0, len(seen))
	for p := range seen {
		periods = append(periods, p)
	}
	domain.SortPeriods(periods)
	return periods
}

func (m *Manager) cacheAt(computed map[string]Series, period domain.Period) map[string]Value {
	cache := make(map[string]Value, len(computed))
	for name, series := range computed {
		if v, ok := series[period]; ok {
			cache[name] = v
		}
	}
	return cache
}

// EvaluateAt computes a KPI for a single period. kpiValues supplies
// already-computed same-period KPI values; identifiers resolve against
// KPI names first, then item names, case-sensitively. An undefined
// operand, an operand with no value for the period, or a zero
// denominator makes the result undefined rather than an error.
func (m *Manager) EvaluateAt(name string, period domain.Period, kpiValues map[string]Value) (Value, error) {
	formula, ok := m.formulas[name]
	if !ok {
		return Value{}, &UndefinedKPIError{Name: name}
	}

	undefined := false
	result, err := formula.Evaluate(func(ident string) (decimal.Decimal, error) {
		if m.IsKPI(ident) {
			v, ok := kpiValues[ident]
			if !ok {
				return decimal.Zero, &UndefinedKPIError{Name: ident}
			}
			if v.Undefined {
				undefined = true
				return decimal.Zero, nil
			}
			return v.Amount, nil
		}
		item, itemErr := m.company.FindItem(ident)
		if itemErr != nil {
			return decimal.Zero, &UnknownIdentifierError{KPI: name, Identifier: ident}
		}
		v, ok := item.Value(period)
		if !ok {
			undefined = true
			return decimal.Zero, nil
		}
		return v, nil
	})
	if err != nil {
		if errors.Is(err, errDivisionByZero) {
			return Value{Undefined: true}, nil
		}
		return Value{}, err
	}
	if undefined {
		return Value{Undefined: true}, nil
	}
	return Value{Amount: result}, nil
}
