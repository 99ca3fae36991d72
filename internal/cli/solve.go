package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/foodcsp/internal/engine"
	"github.com/roach88/foodcsp/internal/render"
)

// SolveOptions holds flags for the solve command.
type SolveOptions struct {
	*RootOptions
	Participants   []string // display only these participants
	Shops          []string // display only these shops
	Filter         string   // "Participant:Shop=Item,Item" item filter
	Where          string   // CEL predicate over sel[participant][shop]
	CountOnly      bool     // print the total without grids
	FailInfeasible bool     // exit 1 when no solution exists
}

// NewSolveCommand creates the solve command.
func NewSolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Enumerate every assignment satisfying the constraints",
		Long: `Enumerate every assignment satisfying the constraints in force.

Filters only apply to this run; the stored constraints are not changed.

Exit codes:
  0 - Solutions listed (or none, without --fail-infeasible)
  1 - No solution exists and --fail-infeasible was given
  2 - Command error (bad domain file, bad filter, etc.)

Examples:
  foodcsp solve
  foodcsp solve --shop "Dish Shop" --participant Bobby
  foodcsp solve --filter "Adam:Fruit Shop=Papaya,Quenepa"
  foodcsp solve --where 'sel["Dean"]["Fruit Shop"] != "Salak"' --count`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Participants, "participant", "p", nil, "show only these participants")
	cmd.Flags().StringSliceVarP(&opts.Shops, "shop", "s", nil, "show only these shops")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", `keep solutions where a participant picks one of the items ("Participant:Shop=Item,Item")`)
	cmd.Flags().StringVar(&opts.Where, "where", "", "keep solutions matching a CEL expression over sel[participant][shop]")
	cmd.Flags().BoolVar(&opts.CountOnly, "count", false, "print only the number of solutions")
	cmd.Flags().BoolVar(&opts.FailInfeasible, "fail-infeasible", false, "exit 1 when no solution exists")

	return cmd
}

func runSolve(opts *SolveOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	find := engine.FindOptions{
		Display: engine.DisplayFilter{Participants: opts.Participants, Shops: opts.Shops},
		Where:   opts.Where,
	}
	if opts.Filter != "" {
		items, err := ParseItemFilter(opts.Filter)
		if err != nil {
			_ = formatter.Error(ErrCodeInvalidFilter, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid --filter", err)
		}
		find.Items = items
	}

	session, _, err := openSession(cmd.Context(), opts.RootOptions, cmd)
	if err != nil {
		return formatter.Fail("open session", err)
	}
	defer session.Close()

	formatter.VerboseLog("Searching for solutions...")
	report, err := session.FindSolutions(cmd.Context(), find)
	if err != nil {
		return formatter.Fail("find solutions", err)
	}

	err = formatter.Render(report, func(w io.Writer) error {
		if opts.CountOnly {
			return render.Summary(w, report)
		}
		return render.Report(w, session.Registry(), report)
	})
	if err != nil {
		return err
	}

	if opts.FailInfeasible && !report.Feasible() {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: no solution exists", ErrCodeInfeasible))
	}
	return nil
}

// ParseItemFilter parses "Participant:Shop=Item,Item". Names are trimmed;
// shop names may contain spaces.
func ParseItemFilter(s string) (*engine.ItemFilter, error) {
	who, items, ok := strings.Cut(s, "=")
	if !ok {
		return nil, fmt.Errorf("filter %q: expected Participant:Shop=Item,Item", s)
	}
	participant, shop, ok := strings.Cut(who, ":")
	if !ok {
		return nil, fmt.Errorf("filter %q: expected Participant:Shop before '='", s)
	}

	f := &engine.ItemFilter{
		Participant: strings.TrimSpace(participant),
		Shop:        strings.TrimSpace(shop),
	}
	for _, item := range strings.Split(items, ",") {
		if item = strings.TrimSpace(item); item != "" {
			f.Items = append(f.Items, item)
		}
	}
	if f.Participant == "" || f.Shop == "" || len(f.Items) == 0 {
		return nil, fmt.Errorf("filter %q: participant, shop and at least one item are required", s)
	}
	return f, nil
}
