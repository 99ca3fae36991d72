package compiler

import (
	"fmt"

	"github.com/roach88/foodcsp/internal/ir"
)

// ConflictReport describes one existing record that overlaps a candidate.
//
// Exactly one of Opposite and Duplicate is set. Default mirrors
// Existing.Default so callers can apply the override policy without
// re-reading the record.
type ConflictReport struct {
	Existing  ir.Record `json:"existing"`
	Reason    string    `json:"reason"`
	Opposite  bool      `json:"opposite,omitempty"`
	Duplicate bool      `json:"duplicate,omitempty"`
	Default   bool      `json:"default,omitempty"`
}

// DetectConflicts compares candidate against every existing record.
//
// The detector is pure: it never mutates its inputs and returns the same
// reports, in the order of existing, for the same arguments. It recognizes:
//   - ordering kinds on the same participant and shop (opposite or duplicate)
//   - relational kinds on the same unordered participant pair and shop
//     (same vs different is opposite, identical kinds are duplicates)
//   - a must_select candidate whose items intersect an existing
//     cannot_select for the same participant and shop
//
// The item-set check is a heuristic; it does not prove the combined rules
// unsatisfiable.
func DetectConflicts(candidate ir.Record, existing []ir.Record) []ConflictReport {
	var reports []ConflictReport

	for _, ex := range existing {
		if report, ok := compareRecords(candidate, ex); ok {
			reports = append(reports, report)
		}
	}

	return reports
}

func compareRecords(candidate, ex ir.Record) (ConflictReport, bool) {
	report := ConflictReport{Existing: ex.Clone(), Default: ex.Default}

	switch {
	case candidate.Kind.IsOrdering() && ex.Kind.IsOrdering():
		if candidate.Participant1 != ex.Participant1 || candidate.Shop != ex.Shop {
			return ConflictReport{}, false
		}
		if opposes(candidate.Kind, ex.Kind) {
			report.Opposite = true
			report.Reason = fmt.Sprintf("Conflicts with: %s (opposite order requirement)", ex.Description)
		} else {
			report.Duplicate = true
			report.Reason = fmt.Sprintf("Duplicate constraint: %s", ex.Description)
		}
		return report, true

	case candidate.Kind.IsRelational() && ex.Kind.IsRelational():
		if !candidate.SamePair(ex) || candidate.Shop != ex.Shop {
			return ConflictReport{}, false
		}
		if opposes(candidate.Kind, ex.Kind) {
			report.Opposite = true
			report.Reason = fmt.Sprintf("Direct opposite of: %s", ex.Description)
		} else {
			report.Duplicate = true
			report.Reason = fmt.Sprintf("Duplicate constraint: %s", ex.Description)
		}
		return report, true

	case candidate.Kind == ir.KindMustSelect && opposes(candidate.Kind, ex.Kind):
		if candidate.Participant1 != ex.Participant1 || candidate.Shop != ex.Shop {
			return ConflictReport{}, false
		}
		if !intersects(candidate.Items, ex.Items) {
			return ConflictReport{}, false
		}
		report.Opposite = true
		report.Reason = fmt.Sprintf("Conflicts with: %s (opposite item selection)", ex.Description)
		return report, true
	}

	return ConflictReport{}, false
}

func opposes(a, b ir.Kind) bool {
	opp, ok := a.Opposite()
	return ok && opp == b
}

func intersects(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, item := range a {
		set[item] = true
	}
	for _, item := range b {
		if set[item] {
			return true
		}
	}
	return false
}
