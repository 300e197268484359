package domain

import (
	"github.com/shopspring/decimal"
)

// AssumptionSet holds the named scalar parameters a forecast run reads:
// growth rates, margins, tax and discount rates. An assumption is either
// a single scalar or a per-period schedule. Sets handed to a forecast
// run are treated as read-only; scenario overrides produce a new set.
type AssumptionSet struct {
	scalars   map[string]decimal.Decimal
	schedules map[string]map[Period]decimal.Decimal
}

// NewAssumptionSet creates an empty assumption set.
func NewAssumptionSet() *AssumptionSet {
	return &AssumptionSet{
		scalars:   make(map[string]decimal.Decimal),
		schedules: make(map[string]map[Period]decimal.Decimal),
	}
}

// Set records a scalar assumption.
func (as *AssumptionSet) Set(key string, value decimal.Decimal) {
	as.scalars[key] = value
}

// SetSchedule records a per-period assumption schedule. Periods absent
// from the schedule fall back to the scalar of the same key, if any.
func (as *AssumptionSet) SetSchedule(key string, schedule map[Period]decimal.Decimal) {
	copied := make(map[Period]decimal.Decimal, len(schedule))
	for p, v := range schedule {
		copied[p] = v
	}
	as.schedules[key] = copied
}

// Get returns the scalar assumption for a key.
func (as *AssumptionSet) Get(key string) (decimal.Decimal, bool) {
	v, ok := as.scalars[key]
	return v, ok
}

// GetForPeriod resolves an assumption for a specific period: the
// schedule entry wins when present, otherwise the scalar.
func (as *AssumptionSet) GetForPeriod(key string, period Period) (decimal.Decimal, bool) {
	if schedule, ok := as.schedules[key]; ok {
		if v, ok := schedule[period]; ok {
			return v, true
		}
	}
	return as.Get(key)
}

// Has reports whether the key carries a scalar or a schedule.
func (as *AssumptionSet) Has(key string) bool {
	if _, ok := as.scalars[key]; ok {
		return true
	}
	_, ok := as.schedules[key]
	return ok
}

// Clone deep-copies the set.
func (as *AssumptionSet) Clone() *AssumptionSet {
	clone := NewAssumptionSet()
	for k, v := range as.scalars {
		clone.scalars[k] = v
	}
	for k, schedule := range as.schedules {
		clone.SetSchedule(k, schedule)
	}
	return clone
}

// Override returns a new set equal to the receiver with the given
// scalar overrides applied. The receiver is not modified.
func (as *AssumptionSet) Override(overrides map[string]decimal.Decimal) *AssumptionSet {
	clone := as.Clone()
	for k, v := range overrides {
		clone.scalars[k] = v
	}
	return clone
}
