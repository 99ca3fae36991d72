// Package render writes constraint listings and solution grids as text.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/foodcsp/internal/engine"
	"github.com/roach88/foodcsp/internal/ir"
)

const (
	selectedMark   = "Selected"
	unselectedMark = "-"
	nameWidth      = 9
	cellWidth      = 8
)

// Listing writes the records in two numbered sections, defaults first.
// Numbers are store positions, so they stay stable across sections.
func Listing(w io.Writer, records []ir.Record) error {
	var b strings.Builder

	b.WriteString("Current Constraints:\n")
	b.WriteString("\nDefault Constraints:\n")
	for i, r := range records {
		if !r.Default {
			continue
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Description)
		if r.Rationale != "" {
			fmt.Fprintf(&b, "   Strict Preference: %s\n", r.Rationale)
		}
	}

	b.WriteString("\nCustom Constraints:\n")
	custom := false
	for i, r := range records {
		if r.Default {
			continue
		}
		custom = true
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Description)
		if r.Rationale != "" {
			fmt.Fprintf(&b, "   Note: %s\n", r.Rationale)
		}
	}
	if !custom {
		b.WriteString("No custom constraints added yet.\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Solution writes one assignment as a grid per displayed shop.
func Solution(w io.Writer, reg *ir.Registry, a engine.Assignment) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\nSolution %d:\n", a.Index)

	for _, shopName := range shopsOf(a) {
		shop, ok := reg.Shop(shopName)
		if !ok {
			return fmt.Errorf("render solution %d: unknown shop %q", a.Index, shopName)
		}

		header := row("Person", shop.Items)
		fmt.Fprintf(&b, "\n%s\n%s\n%s\n", shop.Name, header, strings.Repeat("-", len(header)))

		for _, c := range a.Cells {
			if c.Shop != shopName {
				continue
			}
			cells := make([]string, len(shop.Items))
			for i, item := range shop.Items {
				switch c.Item {
				case engine.NotApplicable:
					cells[i] = engine.NotApplicable
				case item:
					cells[i] = selectedMark
				default:
					cells[i] = unselectedMark
				}
			}
			b.WriteString(row(c.Participant, cells))
			b.WriteByte('\n')
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Report writes every solution in the report followed by the total. An
// infeasible report ends with the listing of the records in force.
func Report(w io.Writer, reg *ir.Registry, report *engine.SolutionReport) error {
	for _, a := range report.Solutions {
		if err := Solution(w, reg, a); err != nil {
			return err
		}
	}
	return Summary(w, report)
}

// Summary writes the total and, for an infeasible report, the listing.
func Summary(w io.Writer, report *engine.SolutionReport) error {
	if _, err := fmt.Fprintf(w, "\nTotal solutions found: %d\n", report.Count); err != nil {
		return err
	}
	if report.Feasible() {
		return nil
	}
	if _, err := io.WriteString(w, "The problem is infeasible - no valid solutions exist with these constraints.\n"+
		"\nCurrent constraints that might be causing the conflict:\n"); err != nil {
		return err
	}
	return Listing(w, report.Listing)
}

// OverridePrompt is the question asked before a default is removed.
func OverridePrompt(existing ir.Record) string {
	return fmt.Sprintf("This conflicts with default constraint:\n%s\n\nDo you want to override it?", existing.Description)
}

func row(name string, cells []string) string {
	padded := make([]string, len(cells))
	for i, c := range cells {
		padded[i] = fmt.Sprintf("%-*s", cellWidth, c)
	}
	line := fmt.Sprintf("%-*s| %s", nameWidth, name, strings.Join(padded, " | "))
	return strings.TrimRight(line, " ")
}

// shopsOf returns the shops an assignment covers, in cell order.
func shopsOf(a engine.Assignment) []string {
	var shops []string
	seen := make(map[string]bool)
	for _, c := range a.Cells {
		if !seen[c.Shop] {
			seen[c.Shop] = true
			shops = append(shops, c.Shop)
		}
	}
	return shops
}
