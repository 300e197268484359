package forecast

import (
	"fmt"
	"time"

	"github.com/rgehrsitz/finmodel/internal/domain"
)

// DuplicateTargetError reports a second rule registered for an item
// that already has one.
type DuplicateTargetError struct {
	Target string
}

func (e *DuplicateTargetError) Error() string {
	return fmt.Sprintf("a forecast rule already targets item %q", e.Target)
}

// RuleConfigError reports an invalid rule definition, rejected at
// construction before any period is computed.
type RuleConfigError struct {
	Target  string
	Message string
}

func (e *RuleConfigError) Error() string {
	return fmt.Sprintf("invalid rule for %q: %s", e.Target, e.Message)
}

// RuleEvaluationError reports a rule that could not produce a value for
// a period, aborting the whole forecast run.
type RuleEvaluationError struct {
	Target string
	Period domain.Period
	Cause  error
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule for %q failed at period %s: %v", e.Target, e.Period, e.Cause)
}

func (e *RuleEvaluationError) Unwrap() error {
	return e.Cause
}

// CustomRuleExecutionError wraps a failure raised by a caller-supplied
// custom rule function, naming the rule's target and period.
type CustomRuleExecutionError struct {
	Target string
	Period domain.Period
	Cause  error
}

func (e *CustomRuleExecutionError) Error() string {
	return fmt.Sprintf("custom rule for %q failed at period %s: %v", e.Target, e.Period, e.Cause)
}

func (e *CustomRuleExecutionError) Unwrap() error {
	return e.Cause
}

// CustomRuleTimeoutError reports a custom rule exceeding the
// orchestrator's deadline.
type CustomRuleTimeoutError struct {
	Target  string
	Period  domain.Period
	Timeout time.Duration
}

func (e *CustomRuleTimeoutError) Error() string {
	return fmt.Sprintf("custom rule for %q exceeded %s at period %s", e.Target, e.Timeout, e.Period)
}
