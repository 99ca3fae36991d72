package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/foodcsp/internal/compiler"
	"github.com/roach88/foodcsp/internal/engine"
	"github.com/roach88/foodcsp/internal/ir"
	"github.com/roach88/foodcsp/internal/solver"
)

// CheckResult holds the outcome of checking a domain file.
type CheckResult struct {
	Valid     bool                       `json:"valid"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
	Applied   []string                   `json:"applied,omitempty"`
	Replaced  []string                   `json:"replaced,omitempty"`
	Aborted   []string                   `json:"aborted,omitempty"`
	Conflicts []string                   `json:"conflicts,omitempty"`
	Status    solver.Status              `json:"status"`
	Count     int                        `json:"count"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <domain.cue>",
		Short: "Validate a domain file and dry-run its constraints",
		Long: `Validate a CUE domain file, then add its custom constraints one by one
to a fresh session the way the shell would, without confirming any
override of a default.

Reports validation errors with line numbers, conflicts between
constraints, and the number of solutions that remain.

Exit codes:
  0 - All constraints valid and applied, model feasible
  1 - Validation errors, declined overrides or an infeasible model
  2 - Command error (file not found, CUE syntax error, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	domain, err := LoadDomainFile(path)
	if err != nil {
		return formatter.Fail("load domain", err)
	}
	formatter.VerboseLog("Loaded %s: %d default(s), %d constraint(s)", path, len(domain.Defaults), len(domain.Constraints))

	result, err := checkDomain(cmd.Context(), opts, domain, cmd)
	if err != nil {
		return formatter.Fail("check domain", err)
	}

	if err := formatter.Render(result, func(w io.Writer) error {
		return writeCheckText(w, result)
	}); err != nil {
		return err
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "check failed")
	}
	return nil
}

// checkDomain validates every custom constraint, then adds the valid ones
// to a session holding the domain defaults.
func checkDomain(ctx context.Context, opts *RootOptions, domain *compiler.Domain, cmd *cobra.Command) (*CheckResult, error) {
	result := &CheckResult{Valid: true}

	var valid []ir.Record
	for i, rec := range domain.Constraints {
		errs := compiler.Validate(rec, domain.Registry)
		if len(errs) == 0 {
			valid = append(valid, rec)
			continue
		}
		for _, e := range errs {
			if i < len(domain.ConstraintPos) && domain.ConstraintPos[i].IsValid() {
				e.Line = domain.ConstraintPos[i].Line()
			}
			result.Errors = append(result.Errors, e)
		}
	}

	session, err := engine.NewSession(ctx, domain.Registry, domain.Defaults, engine.Options{
		Logger: newLogger(opts, cmd.ErrOrStderr()),
	})
	if err != nil {
		return nil, err
	}
	defer session.Close()

	for _, rec := range valid {
		res, err := session.AddConstraint(ctx, rec, engine.NeverConfirm)
		if err != nil {
			return nil, err
		}
		for _, c := range res.Conflicts {
			result.Conflicts = append(result.Conflicts, fmt.Sprintf("%s: %s", res.Record.Description, c.Reason))
		}
		switch res.Outcome {
		case engine.OutcomeAborted:
			result.Aborted = append(result.Aborted, res.Record.Description)
		case engine.OutcomeConflictsResolved:
			for _, r := range res.Removed {
				result.Replaced = append(result.Replaced, r.Description)
			}
			result.Applied = append(result.Applied, res.Record.Description)
		default:
			result.Applied = append(result.Applied, res.Record.Description)
		}
	}

	report, err := session.FindSolutions(ctx, engine.FindOptions{})
	if err != nil {
		return nil, err
	}
	result.Status = report.Status
	result.Count = report.Count

	result.Valid = len(result.Errors) == 0 && len(result.Aborted) == 0 && report.Feasible()
	return result, nil
}

func writeCheckText(w io.Writer, result *CheckResult) error {
	if len(result.Errors) > 0 {
		fmt.Fprintln(w, "✗ Validation failed")
		fmt.Fprintln(w)
		for _, err := range result.Errors {
			if err.Line > 0 {
				fmt.Fprintf(w, "line %d\n", err.Line)
			}
			fmt.Fprintf(w, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
		}
	}

	for _, desc := range result.Applied {
		fmt.Fprintf(w, "✓ %s\n", desc)
	}
	for _, desc := range result.Replaced {
		fmt.Fprintf(w, "  Removed conflicting constraint: %s\n", desc)
	}
	for _, desc := range result.Aborted {
		fmt.Fprintf(w, "✗ %s (conflicts with a default constraint)\n", desc)
	}
	if len(result.Conflicts) > 0 {
		fmt.Fprintln(w, "\nConflicts:")
		for _, c := range result.Conflicts {
			fmt.Fprintf(w, "  - %s\n", c)
		}
	}

	fmt.Fprintf(w, "\nTotal solutions found: %d\n", result.Count)
	if result.Status == solver.StatusInfeasible {
		fmt.Fprintln(w, "The problem is infeasible - no valid solutions exist with these constraints.")
	}
	if result.Valid {
		fmt.Fprintln(w, "✓ Domain valid")
	}
	return nil
}
