package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/foodcsp/internal/compiler"
	"github.com/roach88/foodcsp/internal/ir"
	"github.com/roach88/foodcsp/internal/predicate"
	"github.com/roach88/foodcsp/internal/solver"
)

// NotApplicable is reported for a participant and shop with no variable.
const NotApplicable = "N/A"

// DisplayFilter selects the participant × shop cells reported per solution.
// An empty list selects everything on that axis.
type DisplayFilter struct {
	Participants []string `json:"participants,omitempty" yaml:"participants,omitempty"`
	Shops        []string `json:"shops,omitempty" yaml:"shops,omitempty"`
}

// ItemFilter keeps only solutions where Participant picks one of Items in Shop.
type ItemFilter struct {
	Participant string   `json:"participant" yaml:"participant"`
	Shop        string   `json:"shop" yaml:"shop"`
	Items       []string `json:"items" yaml:"items"`
}

// EnumerateOptions controls one enumeration.
type EnumerateOptions struct {
	Display DisplayFilter
	Items   *ItemFilter
	Where   *predicate.Predicate
}

// Cell is one participant's pick in one shop.
type Cell struct {
	Participant string `json:"participant"`
	Shop        string `json:"shop"`
	Item        string `json:"item"`
}

// Assignment is one solution restricted to the displayed cells.
type Assignment struct {
	Index int    `json:"index"`
	Cells []Cell `json:"cells"`
}

// Item returns the displayed pick for participant in shop.
func (a Assignment) Item(participant, shop string) (string, bool) {
	for _, c := range a.Cells {
		if c.Participant == participant && c.Shop == shop {
			return c.Item, true
		}
	}
	return "", false
}

// EnumerateResult summarizes an enumeration. Status is StatusInfeasible
// when no solution was delivered.
type EnumerateResult struct {
	Status   solver.Status `json:"status"`
	Count    int           `json:"count"`
	Branches int64         `json:"branches"`
}

// Enumerate visits every solution of cm, calling fn once per solution with
// the cells selected by opts.Display. Solutions are numbered from 1 in
// visiting order.
//
// An item filter is posted on a clone of cm; cm itself is never modified.
// A where predicate sees every eligible pick regardless of the display
// filter; solutions it rejects are not delivered or counted.
func Enumerate(ctx context.Context, cm *compiler.CompiledModel, opts EnumerateOptions, fn func(Assignment)) (EnumerateResult, error) {
	reg := cm.Registry

	participants, shops, err := resolveDisplay(reg, opts.Display)
	if err != nil {
		return EnumerateResult{}, err
	}

	model := cm.Model
	if opts.Items != nil {
		filtered := cm.Clone()
		if err := postItemFilter(filtered, *opts.Items); err != nil {
			return EnumerateResult{}, err
		}
		model = filtered.Model
	}

	keys := cm.Vars.Keys()

	var (
		count   int
		evalErr error
	)
	res, err := solver.SearchAll(ctx, model, func(s solver.Solution) {
		if evalErr != nil {
			return
		}
		picks := make(map[ir.VarKey]string, len(keys))
		for _, k := range keys {
			v, _ := cm.Vars.Lookup(k.Participant, k.Shop)
			shop, _ := reg.Shop(k.Shop)
			item, _ := shop.Item(s.Value(v))
			picks[k] = item
		}

		if opts.Where != nil {
			ok, err := opts.Where.Eval(selection(picks))
			if err != nil {
				evalErr = err
				return
			}
			if !ok {
				return
			}
		}

		count++
		if fn == nil {
			return
		}
		a := Assignment{Index: count}
		for _, shop := range shops {
			for _, p := range participants {
				item, ok := picks[ir.VarKey{Participant: p, Shop: shop}]
				if !ok {
					item = NotApplicable
				}
				a.Cells = append(a.Cells, Cell{Participant: p, Shop: shop, Item: item})
			}
		}
		fn(a)
	})
	if err != nil {
		return EnumerateResult{Count: count, Status: res.Status, Branches: res.Branches}, fmt.Errorf("enumerate solutions: %w", err)
	}
	if evalErr != nil {
		return EnumerateResult{}, newFilterError("where predicate failed: %v", evalErr)
	}

	out := EnumerateResult{Status: solver.StatusFeasible, Count: count, Branches: res.Branches}
	if count == 0 {
		out.Status = solver.StatusInfeasible
	}
	return out, nil
}

func selection(picks map[ir.VarKey]string) predicate.Selection {
	sel := make(predicate.Selection)
	for k, item := range picks {
		if sel[k.Participant] == nil {
			sel[k.Participant] = make(map[string]string)
		}
		sel[k.Participant][k.Shop] = item
	}
	return sel
}

// resolveDisplay expands an empty filter axis to the full registry list and
// keeps registry order.
func resolveDisplay(reg *ir.Registry, f DisplayFilter) (participants, shops []string, err error) {
	for _, p := range f.Participants {
		if !reg.HasParticipant(p) {
			return nil, nil, newFilterError("unknown participant %q", p)
		}
	}
	for _, s := range f.Shops {
		if _, ok := reg.Shop(s); !ok {
			return nil, nil, newFilterError("unknown shop %q", s)
		}
	}

	for _, p := range reg.Participants() {
		if len(f.Participants) == 0 || slices.Contains(f.Participants, p) {
			participants = append(participants, p)
		}
	}
	for _, s := range reg.ShopNames() {
		if len(f.Shops) == 0 || slices.Contains(f.Shops, s) {
			shops = append(shops, s)
		}
	}
	return participants, shops, nil
}

// postItemFilter restricts the filter's participant to its items using the
// same indicator encoding as must_select.
func postItemFilter(cm *compiler.CompiledModel, f ItemFilter) error {
	shop, ok := cm.Registry.Shop(f.Shop)
	if !ok {
		return newFilterError("unknown shop %q", f.Shop)
	}
	x, ok := cm.Vars.Lookup(f.Participant, f.Shop)
	if !ok {
		return newFilterError("%s does not select from %s", f.Participant, f.Shop)
	}
	if len(f.Items) == 0 {
		return newFilterError("item filter needs at least one item")
	}

	codes := make([]int64, 0, len(f.Items))
	for _, item := range f.Items {
		c, ok := shop.Code(item)
		if !ok {
			return newFilterError("unknown item %q in %s", item, shop.Name)
		}
		if !slices.Contains(codes, c) {
			codes = append(codes, c)
		}
	}

	compiler.PostOneOf(cm.Model, x, "filter_"+f.Participant, shop, codes)
	return nil
}
