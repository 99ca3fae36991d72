package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/foodcsp/internal/compiler"
	"github.com/roach88/foodcsp/internal/engine"
	"github.com/roach88/foodcsp/internal/ir"
	"github.com/roach88/foodcsp/internal/render"
)

// Shell menu entries.
const (
	menuAdd     = "Add Constraint"
	menuRemove  = "Remove Constraint"
	menuView    = "View Constraints"
	menuSolve   = "Find Solutions"
	menuEdit    = "Edit Descriptions"
	menuHistory = "History"
	menuExit    = "Exit"
)

var shellMenu = []string{menuAdd, menuRemove, menuView, menuSolve, menuEdit, menuHistory, menuExit}

// Find Solutions options.
const (
	solveAll   = "Show all solutions"
	solveShops = "Show solutions for specific shops"
	solveItems = "Show solutions with specific items selected"
	solveWhere = "Show solutions matching an expression"
)

var solveMenu = []string{solveAll, solveShops, solveItems, solveWhere}

// NewShellCommand creates the interactive shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Edit constraints and explore solutions interactively",
		Long: `Start an interactive session on the domain.

Menus are answered by number or by name. Constraints added here live for
the session only; pass --journal to keep a record of every edit.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(rootOpts, cmd)
		},
	}
}

func runShell(opts *RootOptions, cmd *cobra.Command) error {
	session, _, err := openSession(cmd.Context(), opts, cmd)
	if err != nil {
		return newFormatter(opts, cmd).Fail("open session", err)
	}
	defer session.Close()

	sh := &shell{
		session: session,
		prompt:  NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout()),
		out:     cmd.OutOrStdout(),
	}
	return sh.run(cmd.Context())
}

type shell struct {
	session *engine.Session
	prompt  *Prompter
	out     io.Writer
}

func (sh *shell) run(ctx context.Context) error {
	fmt.Fprintln(sh.out, "Food ordering constraint shell")
	if err := render.Listing(sh.out, sh.session.ListConstraints()); err != nil {
		return err
	}

	for {
		choice, err := sh.prompt.Choose("\nSelect an action:", shellMenu, false)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch choice {
		case menuAdd:
			err = sh.add(ctx)
		case menuRemove:
			err = sh.remove(ctx)
		case menuView:
			err = render.Listing(sh.out, sh.session.ListConstraints())
		case menuSolve:
			err = sh.solve(ctx)
		case menuEdit:
			err = sh.edit(ctx)
		case menuHistory:
			err = sh.history(ctx)
		case menuExit:
			return nil
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, ErrSkipped):
			fmt.Fprintln(sh.out, "Cancelled.")
		case recoverable(err):
			fmt.Fprintf(sh.out, "Error: %v\n", err)
		default:
			return err
		}
	}
}

// recoverable reports errors the user can fix by trying again.
func recoverable(err error) bool {
	return compiler.IsValidationError(err) || engine.IsUnknownRecord(err) || engine.IsInvalidFilter(err)
}

func (sh *shell) add(ctx context.Context) error {
	reg := sh.session.Registry()

	labels := make([]string, len(ir.Kinds))
	for i, k := range ir.Kinds {
		labels[i] = k.Label()
	}
	label, err := sh.prompt.Choose("Select constraint type:", labels, false)
	if err != nil {
		return err
	}
	kind := ir.Kinds[slices.Index(labels, label)]

	p1, err := sh.prompt.Choose("Select first person:", reg.Participants(), false)
	if err != nil {
		return err
	}

	rationale, err := sh.prompt.Text("Enter a strict preference explanation for this constraint", true)
	if err != nil && !errors.Is(err, ErrSkipped) {
		return err
	}

	shopName, err := sh.prompt.Choose("Select shop:", reg.ShopNames(), false)
	if err != nil {
		return err
	}

	var (
		p2    string
		items []string
	)
	switch {
	case kind.IsRelational():
		others := slices.DeleteFunc(slices.Clone(reg.Participants()), func(p string) bool { return p == p1 })
		if p2, err = sh.prompt.Choose("Select second person:", others, false); err != nil {
			return err
		}
	case kind.IsItemSet():
		shop, _ := reg.Shop(shopName)
		if items, err = sh.prompt.ChooseMany("Select items:", shop.Items, false); err != nil {
			return err
		}
	}

	rec, err := ir.NewRecord(kind, p1, p2, shopName, items)
	if err != nil {
		return err
	}
	rec = rec.WithRationale(rationale)

	res, err := sh.session.AddConstraint(ctx, rec, sh.prompt)
	if err != nil {
		if !compiler.IsValidationError(err) {
			return err
		}
		fmt.Fprintf(sh.out, "Error adding constraint: %v\n", err)
		again, cerr := sh.prompt.Confirm("Would you like to try again?")
		if cerr != nil {
			return cerr
		}
		if again {
			return sh.add(ctx)
		}
		return nil
	}

	switch res.Outcome {
	case engine.OutcomeAborted:
		fmt.Fprintf(sh.out, "Constraint not added: %v\n", res.Reason)
	case engine.OutcomeConflictsResolved:
		for _, r := range res.Removed {
			fmt.Fprintf(sh.out, "Removed conflicting constraint: %s\n", r.Description)
		}
		fmt.Fprintln(sh.out, "Constraint added and model rebuilt successfully.")
	default:
		fmt.Fprintf(sh.out, "Constraint added successfully: %s\n", res.Record.Description)
		if res.Shadowed {
			fmt.Fprintln(sh.out, "Note: an earlier constraint of this kind already applies here, so this one does not change the solutions.")
		}
	}
	if res.Warning != nil {
		fmt.Fprintf(sh.out, "Warning: %v\n", res.Warning)
	}
	return nil
}

func (sh *shell) remove(ctx context.Context) error {
	var (
		options []string
		ids     []string
	)
	for i, r := range sh.session.ListConstraints() {
		if r.Default {
			continue
		}
		options = append(options, fmt.Sprintf("%d. %s", i+1, r.Description))
		ids = append(ids, r.ID)
	}
	if len(options) == 0 {
		fmt.Fprintln(sh.out, "No custom constraints to remove.")
		return nil
	}

	choice, err := sh.prompt.Choose("Select constraint to remove:", options, true)
	if err != nil {
		return err
	}
	res, err := sh.session.RemoveByID(ctx, ids[slices.Index(options, choice)])
	if err != nil {
		return err
	}
	for _, r := range res.Removed {
		fmt.Fprintf(sh.out, "Removed constraint: %s\n", r.Description)
	}
	fmt.Fprintln(sh.out, "Model rebuilt with updated constraints.")
	return nil
}

func (sh *shell) solve(ctx context.Context) error {
	reg := sh.session.Registry()

	choice, err := sh.prompt.Choose("Select solution display option:", solveMenu, false)
	if err != nil {
		return err
	}

	var opts engine.FindOptions
	switch choice {
	case solveShops:
		shops, err := sh.prompt.ChooseMany("Select shops to show solutions for:", reg.ShopNames(), true)
		if err != nil && !errors.Is(err, ErrSkipped) {
			return err
		}
		people, err := sh.prompt.ChooseMany("Select people to show solutions for:", reg.Participants(), true)
		if err != nil && !errors.Is(err, ErrSkipped) {
			return err
		}
		opts.Display = engine.DisplayFilter{Participants: people, Shops: shops}

	case solveItems:
		shopName, err := sh.prompt.Choose("Select shop:", reg.ShopNames(), true)
		if err != nil {
			return err
		}
		shop, _ := reg.Shop(shopName)
		items, err := sh.prompt.ChooseMany("Select items to filter solutions for:", shop.Items, true)
		if err != nil {
			return err
		}
		person, err := sh.prompt.Choose("Select person to filter solutions for:", reg.Participants(), true)
		if err != nil {
			return err
		}
		opts.Items = &engine.ItemFilter{Participant: person, Shop: shopName, Items: items}

	case solveWhere:
		expr, err := sh.prompt.Text(`Enter an expression over sel[participant][shop], e.g. sel["Dean"]["Fruit Shop"] == "Salak"`, true)
		if err != nil {
			return err
		}
		opts.Where = expr
	}

	fmt.Fprintln(sh.out, "Searching for solutions...")
	report, err := sh.session.FindSolutions(ctx, opts)
	if err != nil {
		return err
	}
	return render.Report(sh.out, reg, report)
}

func (sh *shell) edit(ctx context.Context) error {
	records := sh.session.ListConstraints()
	if err := render.Listing(sh.out, records); err != nil {
		return err
	}

	options := make([]string, len(records))
	for i, r := range records {
		options[i] = fmt.Sprintf("%d. %s", i+1, r.Description)
	}
	choice, err := sh.prompt.Choose("Select constraint to edit:", options, true)
	if err != nil {
		return err
	}
	idx, _ := strconv.Atoi(strings.SplitN(choice, ".", 2)[0])
	rec := records[idx-1]

	changes, err := sh.session.RecordHistory(ctx, rec.ID)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current description: %s\n", rec.Description)
	if rec.Rationale != "" {
		fmt.Fprintf(&b, "Current note: %s\n", rec.Rationale)
	}
	if len(changes) > 0 {
		b.WriteString("Changes:\n")
		for _, e := range changes {
			fmt.Fprintf(&b, "  [%d] %s", e.Seq, e.Op)
			if e.Note != "" {
				fmt.Fprintf(&b, " (%s)", e.Note)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\nEnter new note (or leave blank to keep current):")

	text, err := sh.prompt.Text(b.String(), true)
	if errors.Is(err, ErrSkipped) {
		fmt.Fprintln(sh.out, "Description unchanged.")
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := sh.session.SetRationale(ctx, rec.ID, text); err != nil {
		return err
	}
	fmt.Fprintln(sh.out, "Description updated successfully!")
	return render.Listing(sh.out, sh.session.ListConstraints())
}

func (sh *shell) history(ctx context.Context) error {
	entries, err := sh.session.History(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, "History:")
	for _, e := range entries {
		subject := e.Record.Description
		if subject == "" {
			subject = e.Note
		} else if e.Note != "" {
			subject += " (" + e.Note + ")"
		}
		fmt.Fprintf(sh.out, "  [%d] %s: %s\n", e.Seq, e.Op, subject)
	}
	return nil
}
