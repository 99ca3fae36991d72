package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/foodcsp/internal/engine"
	"github.com/roach88/foodcsp/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Flow steps for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFlow:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", event.Step, event.Op, event.Subject)
			if event.Outcome != "" {
				fmt.Fprintf(&buf, " => %s", event.Outcome)
			}
			buf.WriteString("\n")
		}
	}

	return buf.String()
}

// AssertionContext gives assertions access to the final session.
type AssertionContext struct {
	Session *engine.Session
	Ctx     context.Context
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluateAssertion(result.Trace, a, actx); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluateAssertion(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertSolutionCount:
		return assertSolutionCount(trace, a, actx)
	case AssertInfeasible:
		return assertInfeasible(trace, actx)
	case AssertConstraintCount:
		return assertConstraintCount(trace, a, actx)
	case AssertConstraintPresent, AssertConstraintAbsent:
		return assertConstraintPresence(trace, a, actx)
	case AssertHistoryOrder:
		return assertHistoryOrder(trace, a, actx)
	case AssertHistoryCount:
		return assertHistoryCount(trace, a, actx)
	}
	return fmt.Errorf("unknown assertion type: %s", a.Type)
}

func assertSolutionCount(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	report, err := actx.Session.FindSolutions(actx.Ctx, engine.FindOptions{})
	if err != nil {
		return fmt.Errorf("solution_count: %w", err)
	}
	if report.Count != a.Count {
		return &AssertionError{
			Type:     AssertSolutionCount,
			Expected: fmt.Sprintf("%d solution(s)", a.Count),
			Actual:   fmt.Sprintf("%d solution(s)", report.Count),
			Trace:    trace,
		}
	}
	return nil
}

func assertInfeasible(trace []TraceEvent, actx *AssertionContext) error {
	report, err := actx.Session.FindSolutions(actx.Ctx, engine.FindOptions{})
	if err != nil {
		return fmt.Errorf("infeasible: %w", err)
	}
	if report.Feasible() {
		return &AssertionError{
			Type:     AssertInfeasible,
			Expected: "no solutions",
			Actual:   fmt.Sprintf("%s with %d solution(s)", report.Status, report.Count),
			Trace:    trace,
		}
	}
	return nil
}

func assertConstraintCount(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	records := actx.Session.ListConstraints()
	if len(records) != a.Count {
		return &AssertionError{
			Type:     AssertConstraintCount,
			Expected: fmt.Sprintf("%d stored constraint(s)", a.Count),
			Actual:   fmt.Sprintf("%d stored constraint(s)", len(records)),
			Trace:    trace,
		}
	}
	return nil
}

func assertConstraintPresence(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	found := false
	for _, r := range actx.Session.ListConstraints() {
		if r.Description == a.Description {
			found = true
			break
		}
	}

	want := a.Type == AssertConstraintPresent
	if found == want {
		return nil
	}
	expected, actual := "present", "absent"
	if !want {
		expected, actual = actual, expected
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%q %s", a.Description, expected),
		Actual:   actual,
		Trace:    trace,
	}
}

// assertHistoryOrder checks that the journal ops appear in the given order.
// Ops don't need to be consecutive (intervening entries are allowed).
func assertHistoryOrder(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	entries, err := actx.Session.History(actx.Ctx)
	if err != nil {
		return fmt.Errorf("history_order: %w", err)
	}

	next := 0
	for _, e := range entries {
		if next < len(a.Ops) && string(e.Op) == a.Ops[next] {
			next++
		}
	}
	if next == len(a.Ops) {
		return nil
	}

	return &AssertionError{
		Type:     AssertHistoryOrder,
		Expected: fmt.Sprintf("ops in order %v", a.Ops),
		Actual:   fmt.Sprintf("journal %v (matched %d of %d)", opsOf(entries), next, len(a.Ops)),
		Trace:    trace,
	}
}

// assertHistoryCount checks that a journal op occurs exactly Count times.
func assertHistoryCount(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	entries, err := actx.Session.History(actx.Ctx)
	if err != nil {
		return fmt.Errorf("history_count: %w", err)
	}

	count := 0
	for _, e := range entries {
		if string(e.Op) == a.Op {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertHistoryCount,
			Expected: fmt.Sprintf("%s occurs %d time(s)", a.Op, a.Count),
			Actual:   fmt.Sprintf("%s occurs %d time(s)", a.Op, count),
			Trace:    trace,
		}
	}
	return nil
}

func opsOf(entries []store.Entry) []string {
	ops := make([]string, len(entries))
	for i, e := range entries {
		ops[i] = string(e.Op)
	}
	return ops
}
