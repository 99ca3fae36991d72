package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/foodcsp/internal/compiler"
	"github.com/roach88/foodcsp/internal/engine"
	"github.com/roach88/foodcsp/internal/render"
	"github.com/roach88/foodcsp/internal/testutil"
)

// Harness executes one scenario against a fresh session.
type Harness struct {
	session *engine.Session
	logger  *slog.Logger
	out     strings.Builder
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh session with an in-memory journal,
// sequential IDs and a step clock, so the transcript is reproducible.
//
// Execution flow:
// 1. Load the scenario domain, or the embedded default
// 2. Start a session holding the domain defaults
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions against the final session
//
// A failing expect clause or assertion marks the result as failed; an
// error is returned only when the scenario could not be run at all.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	domain, err := loadDomain(scenario.Domain)
	if err != nil {
		return nil, fmt.Errorf("failed to load domain: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	session, err := engine.NewSession(ctx, domain.Registry, domain.Defaults, engine.Options{
		Logger:   logger,
		IDs:      testutil.NewSequentialIDs("rec"),
		EntryIDs: testutil.NewSequentialIDs("entry"),
		Clock:    testutil.NewDeterministicClock(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	defer session.Close()

	h := &Harness{session: session, logger: logger}
	result := NewResult()

	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	h.out.WriteString("\n")
	if err := render.Listing(&h.out, session.ListConstraints()); err != nil {
		return nil, err
	}
	result.Transcript = h.out.String()

	actx := &AssertionContext{Session: session, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func loadDomain(path string) (*compiler.Domain, error) {
	if path == "" {
		return compiler.DefaultDomain()
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return compiler.LoadDomain(src, path)
}

// executeFlow runs all flow steps and validates expect clauses. Step errors
// are compared against the expect clause rather than aborting the run.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		n := i + 1
		var (
			ev  TraceEvent
			got observed
			err error
		)
		switch {
		case step.Add != nil:
			ev, got, err = h.add(ctx, n, step)
		case step.Remove != nil:
			ev, got, err = h.remove(ctx, n, *step.Remove)
		case step.Rationale != nil:
			ev, got, err = h.rationale(ctx, n, *step.Rationale)
		case step.Solve != nil:
			ev, got, err = h.solve(ctx, n, *step.Solve)
		case step.Rebuild:
			ev = TraceEvent{Step: n, Op: "rebuild"}
			fmt.Fprintf(&h.out, "[%d] rebuild\n", n)
			if got.err = h.session.RebuildModel(ctx); got.err == nil {
				h.out.WriteString("  => rebuilt\n")
			}
		}
		if err != nil {
			return fmt.Errorf("flow step %d: %w", n, err)
		}

		if got.err != nil {
			ev.Error = got.err.Error()
			fmt.Fprintf(&h.out, "  => error: %s\n", got.err)
		}
		result.AddTrace(ev)

		for _, msg := range checkExpect(step.Expect, got) {
			result.AddError(fmt.Sprintf("flow step %d (%s): %s", n, ev.Op, msg))
		}

		h.logger.Info("flow step completed",
			"step", n,
			"op", ev.Op,
			"outcome", ev.Outcome,
		)
	}
	return nil
}

// observed collects what a step did for expect checks. err holds session
// errors the scenario may expect; the error return of the step helpers is
// reserved for harness failures.
type observed struct {
	err       error
	outcome   string
	conflicts *int
	removed   *int
	protected *int
	shadowed  *bool
	count     *int
	status    string
}

func (h *Harness) add(ctx context.Context, n int, step FlowStep) (TraceEvent, observed, error) {
	rec := step.Add.Record()
	ev := TraceEvent{Step: n, Op: "add", Subject: rec.Description}
	fmt.Fprintf(&h.out, "[%d] add: %s\n", n, subjectOf(rec.Description, step.Add))

	confirmer := engine.NeverConfirm
	if step.Confirm {
		confirmer = engine.AlwaysConfirm
	}
	res, err := h.session.AddConstraint(ctx, rec, confirmer)
	if err != nil {
		return ev, observed{err: err}, nil
	}

	for _, c := range res.Conflicts {
		fmt.Fprintf(&h.out, "  conflict: %s\n", c.Reason)
	}
	for _, r := range res.Removed {
		fmt.Fprintf(&h.out, "  removed: %s\n", r.Description)
	}
	switch {
	case res.Outcome == engine.OutcomeAborted:
		fmt.Fprintf(&h.out, "  => aborted: %s\n", res.Reason)
	case res.Shadowed:
		fmt.Fprintf(&h.out, "  => %s %s (shadowed)\n", res.Outcome, res.Record.ID)
	default:
		fmt.Fprintf(&h.out, "  => %s %s\n", res.Outcome, res.Record.ID)
	}
	if res.Warning != nil {
		fmt.Fprintf(&h.out, "  warning: %s\n", res.Warning)
	}

	ev.Subject = res.Record.Description
	ev.Outcome = string(res.Outcome)
	conflicts, removed, shadowed := len(res.Conflicts), len(res.Removed), res.Shadowed
	return ev, observed{
		outcome:   string(res.Outcome),
		conflicts: &conflicts,
		removed:   &removed,
		shadowed:  &shadowed,
	}, nil
}

func subjectOf(description string, spec *RecordSpec) string {
	if description != "" {
		return description
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s %s %s", spec.Kind, spec.Participant1, spec.Participant2, spec.Shop))
}

func (h *Harness) remove(ctx context.Context, n int, spec RemoveSpec) (TraceEvent, observed, error) {
	ev := TraceEvent{Step: n, Op: "remove", Subject: spec.String()}
	fmt.Fprintf(&h.out, "[%d] remove: %s\n", n, spec)

	var (
		res engine.RemoveResult
		err error
	)
	if spec == (RemoveSpec{ID: spec.ID}) {
		res, err = h.session.RemoveByID(ctx, spec.ID)
	} else {
		res, err = h.session.RemoveConstraint(ctx, spec.Matches)
	}
	if err != nil {
		return ev, observed{err: err}, nil
	}

	for _, r := range res.Removed {
		fmt.Fprintf(&h.out, "  removed: %s\n", r.Description)
	}
	for _, r := range res.Protected {
		fmt.Fprintf(&h.out, "  protected: %s\n", r.Description)
	}
	fmt.Fprintf(&h.out, "  => %d removed\n", len(res.Removed))

	ev.Count = len(res.Removed)
	removed, protected := len(res.Removed), len(res.Protected)
	return ev, observed{removed: &removed, protected: &protected}, nil
}

func (h *Harness) rationale(ctx context.Context, n int, spec RationaleSpec) (TraceEvent, observed, error) {
	ev := TraceEvent{Step: n, Op: "rationale", Subject: spec.ID}
	fmt.Fprintf(&h.out, "[%d] rationale: %s\n", n, spec.ID)

	rec, err := h.session.SetRationale(ctx, spec.ID, spec.Text)
	if err != nil {
		return ev, observed{err: err}, nil
	}
	fmt.Fprintf(&h.out, "  => %s: %s\n", rec.Description, rec.Rationale)
	return ev, observed{}, nil
}

func (h *Harness) solve(ctx context.Context, n int, spec SolveSpec) (TraceEvent, observed, error) {
	ev := TraceEvent{Step: n, Op: "solve"}
	fmt.Fprintf(&h.out, "[%d] solve\n", n)

	report, err := h.session.FindSolutions(ctx, spec.Options())
	if err != nil {
		var se *engine.SessionError
		if errors.As(err, &se) {
			return ev, observed{err: err}, nil
		}
		return ev, observed{}, err
	}

	if spec.Show {
		if err := render.Report(&h.out, h.session.Registry(), report); err != nil {
			return ev, observed{}, err
		}
	}
	fmt.Fprintf(&h.out, "  => %s, %d solution(s)\n", report.Status, report.Count)

	ev.Outcome = report.Status.String()
	ev.Count = report.Count
	count := report.Count
	return ev, observed{count: &count, status: report.Status.String()}, nil
}

// checkExpect compares a step's observations with its expect clause.
func checkExpect(expect *ExpectClause, got observed) []string {
	if expect == nil {
		if got.err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", got.err)}
		}
		return nil
	}

	var errs []string
	if expect.Error != "" {
		switch {
		case got.err == nil:
			errs = append(errs, fmt.Sprintf("expected error containing %q, got none", expect.Error))
		case !strings.Contains(got.err.Error(), expect.Error):
			errs = append(errs, fmt.Sprintf("expected error containing %q, got %q", expect.Error, got.err))
		}
		return errs
	}
	if got.err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", got.err)}
	}

	if expect.Outcome != "" && expect.Outcome != got.outcome {
		errs = append(errs, fmt.Sprintf("outcome: expected %q, got %q", expect.Outcome, got.outcome))
	}
	if expect.Status != "" && !strings.EqualFold(expect.Status, got.status) {
		errs = append(errs, fmt.Sprintf("status: expected %q, got %q", expect.Status, got.status))
	}
	errs = appendIntMismatch(errs, "conflicts", expect.Conflicts, got.conflicts)
	errs = appendIntMismatch(errs, "removed", expect.Removed, got.removed)
	errs = appendIntMismatch(errs, "protected", expect.Protected, got.protected)
	errs = appendIntMismatch(errs, "count", expect.Count, got.count)
	if expect.Shadowed != nil {
		switch {
		case got.shadowed == nil:
			errs = append(errs, "shadowed: not reported by this step")
		case *expect.Shadowed != *got.shadowed:
			errs = append(errs, fmt.Sprintf("shadowed: expected %t, got %t", *expect.Shadowed, *got.shadowed))
		}
	}
	return errs
}

func appendIntMismatch(errs []string, field string, want, got *int) []string {
	if want == nil {
		return errs
	}
	if got == nil {
		return append(errs, fmt.Sprintf("%s: not reported by this step", field))
	}
	if *want != *got {
		return append(errs, fmt.Sprintf("%s: expected %d, got %d", field, *want, *got))
	}
	return errs
}
