package kpi

import "fmt"

// InvalidFormulaSyntaxError reports a malformed KPI formula, caught at
// registration time.
type InvalidFormulaSyntaxError struct {
	Formula string
	Pos     int
	Message string
}

func (e *InvalidFormulaSyntaxError) Error() string {
	return fmt.Sprintf("invalid formula %q at position %d: %s", e.Formula, e.Pos, e.Message)
}

// UnknownIdentifierError reports a formula identifier that resolves to
// neither a KPI nor a financial item.
type UnknownIdentifierError struct {
	KPI        string
	Identifier string
}

func (e *UnknownIdentifierError) Error() string {
	return fmt.Sprintf("KPI %q references unknown identifier %q", e.KPI, e.Identifier)
}

// DuplicateKPIError reports a second registration of a KPI name.
type DuplicateKPIError struct {
	Name string
}

func (e *DuplicateKPIError) Error() string {
	return fmt.Sprintf("KPI %q is already defined", e.Name)
}

// UndefinedKPIError reports a calculation request for a KPI name that
// was never registered.
type UndefinedKPIError struct {
	Name string
}

func (e *UndefinedKPIError) Error() string {
	return fmt.Sprintf("KPI %q is not defined", e.Name)
}
