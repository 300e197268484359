package domain

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
)

// ItemNotFoundError reports a lookup for an item name no statement holds.
type ItemNotFoundError struct {
	Name string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("financial item %q not found", e.Name)
}

// DuplicateItemNameError reports an item name that appears in more than
// one statement, which would make the flat cross-statement namespace
// ambiguous.
type DuplicateItemNameError struct {
	Name string
}

func (e *DuplicateItemNameError) Error() string {
	return fmt.Sprintf("financial item %q is defined in more than one statement", e.Name)
}

// Statement holds the named line items of one financial statement.
type Statement struct {
	Name  string
	Items map[string]*FinancialItem
	order []string
}

// NewStatement creates an empty statement.
func NewStatement(name string) *Statement {
	return &Statement{
		Name:  name,
		Items: make(map[string]*FinancialItem),
	}
}

// AddItem registers an item under its (sanitized) name. Re-adding a name
// replaces the previous item.
func (s *Statement) AddItem(item *FinancialItem) {
	if _, exists := s.Items[item.Name]; !exists {
		s.order = append(s.order, item.Name)
	}
	s.Items[item.Name] = item
}

// GetItem looks up an item by name.
func (s *Statement) GetItem(name string) (*FinancialItem, error) {
	item, ok := s.Items[name]
	if !ok {
		return nil, &ItemNotFoundError{Name: name}
	}
	return item, nil
}

// ItemNames returns item names in insertion order.
func (s *Statement) ItemNames() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// Clone deep-copies the statement and every item in it.
func (s *Statement) Clone() *Statement {
	clone := NewStatement(s.Name)
	for _, name := range s.order {
		clone.AddItem(s.Items[name].Clone())
	}
	return clone
}

// Company groups the three financial statements of one company. Item
// names form a single flat namespace across all three statements; the
// index is rebuilt on mutation and rejects cross-statement collisions.
type Company struct {
	Name     string
	Ticker   string
	Currency string

	IncomeStatement   *Statement
	BalanceSheet      *Statement
	CashFlowStatement *Statement

	index map[string]*FinancialItem
}

// NewCompany creates a company with three empty statements.
func NewCompany(name, ticker, currency string) *Company {
	return &Company{
		Name:              name,
		Ticker:            ticker,
		Currency:          currency,
		IncomeStatement:   NewStatement("Income Statement"),
		BalanceSheet:      NewStatement("Balance Sheet"),
		CashFlowStatement: NewStatement("Cash Flow Statement"),
	}
}

// Statements returns the three statements in fixed order.
func (c *Company) Statements() []*Statement {
	return []*Statement{c.IncomeStatement, c.BalanceSheet, c.CashFlowStatement}
}

// BuildIndex constructs the flat name index over all three statements,
// failing on a name that appears in more than one statement.
func (c *Company) BuildIndex() error {
	index := make(map[string]*FinancialItem)
	for _, stmt := range c.Statements() {
		for _, name := range stmt.ItemNames() {
			if _, collides := index[name]; collides {
				return &DuplicateItemNameError{Name: name}
			}
			index[name] = stmt.Items[name]
		}
	}
	c.index = index
	return nil
}

// FindItem resolves an item name against the flat namespace.
func (c *Company) FindItem(name string) (*FinancialItem, error) {
	if c.index == nil {
		if err := c.BuildIndex(); err != nil {
			return nil, err
		}
	}
	item, ok := c.index[name]
	if !ok {
		return nil, &ItemNotFoundError{Name: name}
	}
	return item, nil
}

// HasItem reports whether the flat namespace resolves the name.
func (c *Company) HasItem(name string) bool {
	_, err := c.FindItem(name)
	return err == nil
}

// ItemNames returns every item name across all statements, sorted.
func (c *Company) ItemNames() []string {
	var names []string
	for _, stmt := range c.Statements() {
		names = append(names, stmt.ItemNames()...)
	}
	sort.Strings(names)
	return names
}

// LastHistoricalPeriod returns the latest historical period across every
// item, or false if no item carries historical data.
func (c *Company) LastHistoricalPeriod() (Period, bool) {
	var last Period
	found := false
	for _, stmt := range c.Statements() {
		for _, name := range stmt.ItemNames() {
			if p, ok := stmt.Items[name].LastHistoricalPeriod(); ok {
				if !found || last.Before(p) {
					last = p
					found = true
				}
			}
		}
	}
	return last, found
}

// Clone deep-copies the company: scenario runs write forecasted values
// into their own clone, never into a shared base.
func (c *Company) Clone() *Company {
	clone := &Company{
		Name:              c.Name,
		Ticker:            c.Ticker,
		Currency:          c.Currency,
		IncomeStatement:   c.IncomeStatement.Clone(),
		BalanceSheet:      c.BalanceSheet.Clone(),
		CashFlowStatement: c.CashFlowStatement.Clone(),
	}
	// Index is rebuilt lazily; a valid base index implies a valid clone index.
	return clone
}

// companySnapshot is the JSON wire form of a company.
type companySnapshot struct {
	Name       string                      `json:"name"`
	Ticker     string                      `json:"ticker"`
	Currency   string                      `json:"currency"`
	Financials map[string][]*FinancialItem `json:"financials"`
}

// SaveSnapshot writes the company, including forecasted values, to a
// JSON file.
func (c *Company) SaveSnapshot(path string) error {
	snap := companySnapshot{
		Name:       c.Name,
		Ticker:     c.Ticker,
		Currency:   c.Currency,
		Financials: make(map[string][]*FinancialItem, 3),
	}
	for _, stmt := range c.Statements() {
		for _, name := range stmt.ItemNames() {
			snap.Financials[stmt.Name] = append(snap.Financials[stmt.Name], stmt.Items[name])
		}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode company snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write company snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a company back from a JSON snapshot file.
func LoadSnapshot(path string) (*Company, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read company snapshot: %w", err)
	}
	var snap companySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode company snapshot: %w", err)
	}
	company := NewCompany(snap.Name, snap.Ticker, snap.Currency)
	for _, stmt := range company.Statements() {
		for _, item := range snap.Financials[stmt.Name] {
			if item.Historical == nil {
				item.Historical = make(map[Period]decimal.Decimal)
			}
			if item.Forecasted == nil {
				item.Forecasted = make(map[Period]decimal.Decimal)
			}
			stmt.AddItem(item)
		}
	}
	if err := company.BuildIndex(); err != nil {
		return nil, err
	}
	return company, nil
}
