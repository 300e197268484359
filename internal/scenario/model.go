// Package scenario replays the whole forecast and valuation under
// substituted assumption sets. Every run operates on its own deep clone
// of the base company, so scenarios never mutate the base state and are
// safe to execute concurrently.
package scenario

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rgehrsitz/finmodel/internal/domain"
	"github.com/rgehrsitz/finmodel/internal/forecast"
	"github.com/rgehrsitz/finmodel/internal/valuation"
)

// KPIDef pairs a KPI name with its formula, kept in declaration order
// so re-registration on scenario clones stays deterministic.
type KPIDef struct {
	Name    string
	Formula string
}

// ValuationInputs carries the dividend discount parameters a scenario
// run feeds the valuation model.
type ValuationInputs struct {
	DividendBaseItem string
	DiscountRate     decimal.Decimal
	PayoutRatio      decimal.Decimal
	TerminalGrowth   *decimal.Decimal
}

// ScenarioModel drives fresh forecast + valuation runs against a frozen
// base company under alternative assumption sets.
type ScenarioModel struct {
	company           *domain.Company
	baseAssumptions   *domain.AssumptionSet
	periods           int
	rules             []*forecast.ForecastRule
	kpis              []KPIDef
	valuation         ValuationInputs
	sharesOutstanding decimal.Decimal
	marketPrice       decimal.Decimal

	logger zerolog.Logger
}

// NewScenarioModel creates a scenario model. Shares outstanding and
// market price must both be positive.
func NewScenarioModel(
	company *domain.Company,
	baseAssumptions *domain.AssumptionSet,
	periods int,
	rules []*forecast.ForecastRule,
	kpis []KPIDef,
	val ValuationInputs,
	sharesOutstanding, marketPrice decimal.Decimal,
) (*ScenarioModel, error) {
	if sharesOutstanding.LessThanOrEqual(decimal.Zero) {
		return nil, &valuation.InvalidValuationInputError{Field: "shares_outstanding", Message: "must be positive"}
	}
	if marketPrice.LessThanOrEqual(decimal.Zero) {
		return nil, &valuation.InvalidValuationInputError{Field: "market_price", Message: "must be positive"}
	}
	return &ScenarioModel{
		company:           company,
		baseAssumptions:   baseAssumptions,
		periods:           periods,
		rules:             rules,
		kpis:              kpis,
		valuation:         val,
		sharesOutstanding: sharesOutstanding,
		marketPrice:       marketPrice,
		logger:            zerolog.Nop(),
	}, nil
}

// SetLogger attaches a logger propagated to each run's forecast model.
func (sm *ScenarioModel) SetLogger(logger zerolog.Logger) {
	sm.logger = logger
}

// RunScenario executes one isolated forecast + valuation run. The base
// company and base assumption set are read-only for the duration: all
// forecasted values land in a private clone and the overrides produce a
// new assumption set.
func (sm *ScenarioModel) RunScenario(ctx context.Context, overrides map[string]decimal.Decimal, label string) (*Result, error) {
	assumptions := sm.baseAssumptions.Override(overrides)
	clone := sm.company.Clone()

	model, err := forecast.NewForecastModel(clone, assumptions, sm.periods)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", label, err)
	}
	model.SetLogger(sm.logger)
	for _, rule := range sm.rules {
		if err := model.AddForecastRule(rule); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", label, err)
		}
	}
	for _, def := range sm.kpis {
		if err := model.AddKPI(def.Name, def.Formula); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", label, err)
		}
	}
	if err := model.Run(ctx); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", label, err)
	}

	ddm := &valuation.DividendDiscountModel{
		Company:        clone,
		BaseItem:       sm.valuation.DividendBaseItem,
		DiscountRate:   sm.valuation.DiscountRate,
		PayoutRatio:    sm.valuation.PayoutRatio,
		TerminalGrowth: sm.valuation.TerminalGrowth,
		Periods:        sm.periods,
	}
	total, err := ddm.CalculateValue()
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", label, err)
	}
	perShare, err := ddm.PerShare(sm.sharesOutstanding)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", label, err)
	}

	result := &Result{
		Label:               label,
		Forecasted:          make(map[string]map[domain.Period]decimal.Decimal, len(sm.rules)),
		KPIs:                model.KPIResults(),
		IntrinsicValueTotal: total,
		FairValuePerShare:   perShare,
		MarketPrice:         sm.marketPrice,
	}
	for _, rule := range sm.rules {
		item, err := clone.FindItem(rule.Target)
		if err != nil {
			return nil, err
		}
		series := make(map[domain.Period]decimal.Decimal, len(item.Forecasted))
		for p, v := range item.Forecasted {
			series[p] = v
		}
		result.Forecasted[rule.Target] = series
	}
	if !perShare.IsZero() {
		result.MarginOfSafety = perShare.Sub(sm.marketPrice).Div(perShare)
	}
	return result, nil
}

// RunScenarios executes independent scenarios concurrently, each on its
// own clone, and returns results in request order.
func (sm *ScenarioModel) RunScenarios(ctx context.Context, specs []Spec) (*ComparisonSet, error) {
	results := make([]Result, len(specs))
	g, ctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			result, err := sm.RunScenario(ctx, spec.Overrides, spec.Label)
			if err != nil {
				return err
			}
			results[i] = *result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ComparisonSet{Company: sm.company.Name, Results: results}, nil
}
